package di

import (
	"gorm.io/gorm"

	"goconverse/internal/chat/service"
	"goconverse/internal/common"
	"goconverse/internal/config"
	"goconverse/internal/notif"
	"goconverse/internal/presence"
	"goconverse/internal/storage"
)

// Application is the wired object graph for the chat service.
type Application struct {
	Config        *config.Config
	DB            *gorm.DB
	Conversations service.ConversationService
	Messages      service.MessageService
	Reactions     service.ReactionService
	Presence      *presence.Tracker
	Bus           *notif.Manager
	Mongo         *storage.MongoClient
}

func provideClock() common.Clock { return common.SystemClock{} }

// No subscription backend ships with the core; the override flag stays
// inert until a checker is bound here.
func provideSubscriptionChecker() common.SubscriptionChecker { return nil }

func provideManager(cfg *config.Config) *notif.Manager {
	return notif.NewManager(cfg.Notification.Workers, cfg.Notification.ChannelBufferSize)
}

func provideTracker(cfg *config.Config) (*presence.Tracker, error) {
	cache, err := presence.NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	return presence.NewTracker(cache), nil
}
