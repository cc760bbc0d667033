package serverregistration

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

// Service keeps the local registration alive.
type Service struct {
	store   *Store
	address string
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a registration service. address is informational.
func NewService(store *Store, address string, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		address: address,
		logger:  log.Component("server_registration"),
		now:     time.Now,
	}
}

// Touch refreshes identity's registration and deactivates servers that have
// not been seen for staleAfter.
func (s *Service) Touch(ctx context.Context, identity string, staleAfter time.Duration) error {
	now := s.now()
	if err := s.store.Touch(ctx, identity, s.address, now); err != nil {
		return fmt.Errorf("touch registration: %w", err)
	}
	if staleAfter <= 0 {
		return nil
	}
	n, err := s.store.DeactivateStale(ctx, now.Add(-staleAfter))
	if err != nil {
		return fmt.Errorf("deactivate stale registrations: %w", err)
	}
	if n > 0 {
		s.logger.Info("deactivated stale server registrations",
			logger.Field{Key: "count", Value: n},
			logger.Field{Key: "stale_after", Value: staleAfter.String()})
	}
	return nil
}

// Unregister marks identity inactive, typically on shutdown.
func (s *Service) Unregister(ctx context.Context, identity string) error {
	if err := s.store.Deactivate(ctx, identity); err != nil {
		return fmt.Errorf("unregister: %w", err)
	}
	return nil
}

// ElectedRoleAccessor derives this server's role from the active
// registrations. The oldest active server schedules; the rest subscribe.
// The role is cached between refreshes.
type ElectedRoleAccessor struct {
	store    *Store
	identity string
	role     atomic.Int32
}

// NewElectedRoleAccessor creates an accessor reporting RoleUnknown until the
// first Refresh.
func NewElectedRoleAccessor(store *Store, identity string) *ElectedRoleAccessor {
	a := &ElectedRoleAccessor{store: store, identity: identity}
	a.role.Store(int32(runtime.RoleUnknown))
	return a
}

func (a *ElectedRoleAccessor) CurrentServerRole() runtime.ServerRole {
	return runtime.ServerRole(a.role.Load())
}

// Refresh re-reads the registrations and returns the new role.
func (a *ElectedRoleAccessor) Refresh(ctx context.Context) (runtime.ServerRole, error) {
	active, err := a.store.GetActive(ctx)
	if err != nil {
		return a.CurrentServerRole(), fmt.Errorf("load active servers: %w", err)
	}
	role := Elect(active, a.identity)
	a.role.Store(int32(role))
	return role, nil
}

// Elect picks identity's role given the active registrations ordered
// oldest first.
func Elect(active []*Registration, identity string) runtime.ServerRole {
	for i, r := range active {
		if r.Identity != identity {
			continue
		}
		if i == 0 {
			return runtime.RoleSchedulingPublisher
		}
		return runtime.RoleSubscriber
	}
	return runtime.RoleUnknown
}
