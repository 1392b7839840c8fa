package system

import (
	"context"
	"fmt"
	"sync"
)

// Manager owns the lifecycle of registered services. Services start in
// registration order and stop in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	names    map[string]bool
	started  int
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]bool)}
}

// Register adds a service. It fails once Start has run or when a service
// with the same name is already registered.
func (m *Manager) Register(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started > 0 {
		return fmt.Errorf("manager already started; cannot register %s", svc.Name())
	}
	if m.names[svc.Name()] {
		return fmt.Errorf("service %s already registered", svc.Name())
	}

	m.names[svc.Name()] = true
	m.services = append(m.services, svc)
	return nil
}

// Start brings up every registered service in order. When one fails, the
// services already running are stopped in reverse before the error returns.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.started = i + 1
	}
	return nil
}

// Stop shuts down started services in reverse order. All services are
// stopped even when one fails; the first failure is returned.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for i := m.started - 1; i >= 0; i-- {
		svc := m.services[i]
		if err := svc.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
		}
	}
	m.started = 0
	return firstErr
}

// NoopService satisfies Service for components without lifecycle needs.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string { return n.ServiceName }

func (n NoopService) Start(_ context.Context) error { return nil }

func (n NoopService) Stop(_ context.Context) error { return nil }
