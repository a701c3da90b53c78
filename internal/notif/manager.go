package notif

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"goconverse/internal/common"
	"goconverse/internal/logger"
)

// Observer receives every event published on the bus. Known listeners:
// unread-count cache invalidation and websocket broadcast, both owned by
// other services.
type Observer interface {
	Update(event common.Event) error
	Name() string
}

// Manager is the in-process event bus. Publishing is non-blocking: events
// flow through a buffered channel into a worker pool, and the event is
// dropped (with a log line) when the buffer is full. Slow observers can
// therefore never hold up a message send.
type Manager struct {
	observers    map[string]Observer
	eventChannel chan common.Event
	workerPool   int
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

func NewManager(workerPoolSize, bufferSize int) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		observers:    make(map[string]Observer),
		eventChannel: make(chan common.Event, bufferSize),
		workerPool:   workerPoolSize,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 0; i < workerPoolSize; i++ {
		m.wg.Add(1)
		go m.processEvents()
	}

	return m
}

func (m *Manager) Subscribe(observer Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[observer.Name()] = observer
	logger.Info("observer subscribed", zap.String("observer", observer.Name()))
}

func (m *Manager) Unsubscribe(observer Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, observer.Name())
	logger.Info("observer unsubscribed", zap.String("observer", observer.Name()))
}

// Publish implements common.EventBus.
func (m *Manager) Publish(event common.Event) {
	select {
	case m.eventChannel <- event:

	case <-m.ctx.Done():
		return
	default:
		logger.Warn("event channel full, dropping event", zap.String("event", string(event.Name)))
	}
}

// Dispatch delivers an event to every observer synchronously.
func (m *Manager) Dispatch(event common.Event) {
	m.mu.RLock()
	observers := make([]Observer, 0, len(m.observers))
	for _, obs := range m.observers {
		observers = append(observers, obs)
	}
	m.mu.RUnlock()

	for _, observer := range observers {
		if err := observer.Update(event); err != nil {
			logger.Warn("observer update failed",
				zap.String("observer", observer.Name()),
				zap.String("event", string(event.Name)),
				zap.Error(err))
		}
	}
}

func (m *Manager) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.eventChannel:
			m.Dispatch(event)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
	logger.Info("event manager shutdown complete")
}
