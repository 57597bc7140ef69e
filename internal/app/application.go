package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/user_board/internal/app/auth"
	"github.com/R3E-Network/user_board/internal/app/services/users"
	"github.com/R3E-Network/user_board/internal/app/storage"
	"github.com/R3E-Network/user_board/internal/app/storage/memory"
	"github.com/R3E-Network/user_board/internal/app/system"
	"github.com/R3E-Network/user_board/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Sessions auth.SessionStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Tokens   *auth.Manager
	Sessions auth.SessionStore
	Users    *users.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, authCfg auth.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("app", "info", "json")
	}

	if stores.Users == nil {
		stores.Users = memory.New()
	}
	if stores.Sessions == nil {
		stores.Sessions = auth.NewMemorySessionStore()
	}

	tokens, err := auth.NewManager(authCfg, stores.Sessions)
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}

	return &Application{
		manager:  system.NewManager(),
		log:      log,
		Tokens:   tokens,
		Sessions: stores.Sessions,
		Users:    users.New(stores.Users, tokens, log),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	a.log.WithFields(map[string]interface{}{"services": a.manager.Names()}).Info("starting application services")
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
