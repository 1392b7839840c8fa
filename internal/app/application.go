package app

import (
	"context"
	"fmt"

	"github.com/winddownhq/winddown/internal/app/services/routines"
	"github.com/winddownhq/winddown/internal/app/services/sleeplogs"
	"github.com/winddownhq/winddown/internal/app/storage"
	"github.com/winddownhq/winddown/internal/app/storage/memory"
	"github.com/winddownhq/winddown/internal/app/system"
	"github.com/winddownhq/winddown/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Routines  storage.RoutineStore
	SleepLogs storage.SleepLogStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Routines  *routines.Service
	SleepLogs *sleeplogs.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Routines == nil {
		stores.Routines = mem
	}
	if stores.SleepLogs == nil {
		stores.SleepLogs = mem
	}

	manager := system.NewManager()

	routineService := routines.New(stores.Routines, log)
	sleepLogService := sleeplogs.New(stores.SleepLogs, stores.Routines, log)

	for _, name := range []string{"routines", "sleeplogs"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Routines:  routineService,
		SleepLogs: sleepLogService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
