package main

import (
	"context"
	"database/sql"

	"github.com/focuspact/focuspact/go/internal/auth"
	"github.com/focuspact/focuspact/go/internal/focus"
	"github.com/focuspact/focuspact/go/internal/gateway"
	"github.com/focuspact/focuspact/go/internal/groups"
	"github.com/focuspact/focuspact/go/internal/members"
	"github.com/focuspact/focuspact/go/internal/pacts"
	"github.com/focuspact/focuspact/go/internal/scoring"
	"github.com/focuspact/focuspact/go/internal/violations"
	"github.com/google/uuid"
)

type Services struct {
	Auth       *auth.Handlers
	AuthSvc    *auth.Service
	Groups     *groups.Service
	Pacts      *pacts.Service
	Violations *violations.Service
	Focus      *focus.Service

	Coordinator *focus.Coordinator
	Manager     *gateway.ConnectionManager
	WebSocket   *gateway.WebSocketHandler
}

// membershipDirectory satisfies the membership lookups the coordinator and
// the violations app need, composed from the groups app and the members
// repository.
type membershipDirectory struct {
	groups  *groups.App
	members *members.Repository
}

func (d *membershipDirectory) IsMember(ctx context.Context, memberID, groupID uuid.UUID) (bool, error) {
	return d.groups.IsMember(ctx, memberID, groupID)
}

func (d *membershipDirectory) MemberName(ctx context.Context, memberID uuid.UUID) (string, error) {
	return d.members.MemberName(ctx, memberID)
}

func setupServices(database *sql.DB, config *Config) *Services {
	// Database layer -> Repository layer -> App layer -> Service layer

	membersRepo := members.NewRepository(database)

	authService := auth.NewService(membersRepo, []byte(config.Auth.Secret))
	authHandlers := auth.NewHandlers(authService, auth.NewRateLimiter(config.Auth.RateLimitRPS))

	groupsRepo := groups.NewRepository(database)
	groupsApp := groups.NewApp(groupsRepo)
	groupsService := groups.NewService(groupsApp)

	pactsRepo := pacts.NewRepository(database)
	pactsApp := pacts.NewApp(pactsRepo, groupsApp)
	pactsService := pacts.NewService(pactsApp)

	directory := &membershipDirectory{groups: groupsApp, members: membersRepo}
	ledger := scoring.NewLedger(database)

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	violationsRepo := violations.NewRepository(database)
	violationsApp := violations.NewApp(violationsRepo, directory, ledger, pactsApp, manager)
	violationsService := violations.NewService(violationsApp)

	coordinator := focus.NewCoordinator(focus.Deps{
		Sessions:    focus.NewRepository(database),
		Members:     directory,
		Ledger:      ledger,
		Rules:       pactsApp,
		Violations:  violationsApp,
		Presence:    focus.NewRegistry(),
		Broadcaster: manager,
	})
	manager.SetHooks(coordinator)

	return &Services{
		Auth:        authHandlers,
		AuthSvc:     authService,
		Groups:      groupsService,
		Pacts:       pactsService,
		Violations:  violationsService,
		Focus:       focus.NewService(coordinator),
		Coordinator: coordinator,
		Manager:     manager,
		WebSocket:   gateway.NewWebSocketHandler(manager, authService),
	}
}
