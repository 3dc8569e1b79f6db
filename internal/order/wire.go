package order

import (
	"go.uber.org/zap"

	"ordertrack/internal/config"
	"ordertrack/internal/metrics"
	"ordertrack/internal/order/controller"
	orderrepo "ordertrack/internal/order/repository"
	"ordertrack/internal/order/service"
	"ordertrack/internal/order/usecase"
)

// Remote is the part of the remote API the engine consumes.
type Remote interface {
	service.SnapshotSource
	usecase.RemoteCommands
	usecase.RemoteReader
}

func NewModule(
	remote Remote,
	sessions usecase.SessionReader,
	catalog StatusCatalog,
	cfg *config.Config,
	m *metrics.Registry,
	logger *zap.Logger,
) (*controller.OrderController, *Engine) {
	logger = logger.With(zap.String("component", "engine"))
	orderRepo := orderrepo.NewMemoryOrderRepository()

	syncSvc := service.NewSyncService(
		orderRepo,
		remote,
		catalog,
		cfg.Snapshot.PageSize,
		m,
		logger,
	)

	engine := &Engine{
		sync:       syncSvc,
		catalog:    catalog,
		create:     usecase.NewCreateOrderUseCase(remote, sessions, m, logger),
		transition: usecase.NewTransitionStatusUseCase(remote, syncSvc, catalog, sessions, m, logger),
		query:      usecase.NewQueryUseCase(orderRepo, remote, syncSvc, catalog, logger),
		logger:     logger,
	}

	return controller.NewOrderController(engine, logger), engine
}
