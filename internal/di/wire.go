//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"goconverse/internal/chat/repository"
	"goconverse/internal/chat/service"
	"goconverse/internal/common"
	"goconverse/internal/config"
	"goconverse/internal/dbmysql"
	"goconverse/internal/notif"
	"goconverse/internal/storage"
)

// InitializeApplication builds the full service graph.
func InitializeApplication() (*Application, error) {
	wire.Build(
		config.Load,
		provideClock,
		provideSubscriptionChecker,
		provideManager,
		provideTracker,
		dbmysql.NewMySQL,
		storage.NewMongoConnection,
		storage.NewGridFSStore,
		repository.NewTxManager,
		repository.NewConversationRepository,
		repository.NewMessageRepository,
		repository.NewReactionRepository,
		repository.NewMetricRepository,
		repository.NewUserRepository,
		service.NewPolicyAuthorizer,
		service.NewAnalyticsService,
		service.NewAttachmentService,
		service.NewReactionService,
		service.NewConversationService,
		service.NewMessageService,
		notif.NewLogSink,
		wire.Bind(new(common.EventBus), new(*notif.Manager)),
		wire.Bind(new(common.NotificationSink), new(*notif.LogSink)),
		wire.Bind(new(common.Authorizer), new(*service.PolicyAuthorizer)),
		wire.Bind(new(common.TempUploadStore), new(*storage.GridFSStore)),
		wire.Bind(new(common.ObjectStorage), new(*storage.GridFSStore)),
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}
