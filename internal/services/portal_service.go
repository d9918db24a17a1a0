package services

import (
	"context"
	"fmt"
	"log/slog"

	"fusionbi/internal/infrastructure"
	"fusionbi/pkg/contracts/domain"
)

// PortalStore reads the landing page data from the ADM schema.
type PortalStore interface {
	Profile(ctx context.Context, userID int64) (domain.UserProfile, error)
	ModulesForUser(ctx context.Context, userID int64) ([]domain.Module, error)
	CanAccessURL(ctx context.Context, userID int64, url string) (bool, error)
}

// HomePage is everything the landing page shows.
type HomePage struct {
	User        *domain.User       `json:"user"`
	DisplayName string             `json:"display_name"`
	Profile     domain.UserProfile `json:"profile"`
	KPIs        []domain.KPITile   `json:"kpis"`
	Modules     []domain.Module    `json:"modules"`
}

// PortalService serves the landing page and module access checks.
type PortalService struct {
	store  PortalStore
	logger *slog.Logger
}

// NewPortalService creates the service.
func NewPortalService(store PortalStore, logger *slog.Logger) *PortalService {
	return &PortalService{
		store:  store,
		logger: infrastructure.WithComponent(logger, "portal_service"),
	}
}

// Home loads the profile, KPI tiles and modules of user.
func (s *PortalService) Home(ctx context.Context, user *domain.User) (*HomePage, error) {
	profile, err := s.store.Profile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	modules, err := s.store.ModulesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}

	s.logger.DebugContext(ctx, "home page loaded",
		slog.Int64("user_id", user.ID),
		slog.Int("modules", len(modules)))

	return &HomePage{
		User:        user,
		DisplayName: user.DisplayName(),
		Profile:     profile,
		KPIs:        KPIsForUser(user.ID),
		Modules:     modules,
	}, nil
}

// KPIsForUser returns the landing page tiles.
// TODO: replace the demo tiles once the Projects and Finance tables exist.
func KPIsForUser(userID int64) []domain.KPITile {
	return []domain.KPITile{
		{Title: "Active Projects", Value: "14", Hint: "Demo KPI - wire to Projects table"},
		{Title: "Budget Variance", Value: "€1.2M", Hint: "Demo KPI - wire to Finance module"},
		{Title: "Open Risks", Value: "8", Hint: "Demo KPI - wire to Risk register"},
		{Title: "Delivery Score", Value: "92%", Hint: "Demo KPI - computed metric"},
	}
}

// CanAccessURL reports whether the user may open a module URL.
func (s *PortalService) CanAccessURL(ctx context.Context, userID int64, url string) (bool, error) {
	ok, err := s.store.CanAccessURL(ctx, userID, url)
	if err != nil {
		return false, fmt.Errorf("check module access: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "module access denied",
			slog.Int64("user_id", userID),
			slog.String("url", url))
	}
	return ok, nil
}
