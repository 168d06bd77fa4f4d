package services

import (
	"context"
	"log/slog"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/seasons"
)

type ManagerService struct {
	resolver seasons.StoreResolver
	logger   *slog.Logger
}

func NewManagerService(resolver seasons.StoreResolver, logger *slog.Logger) *ManagerService {
	return &ManagerService{resolver: resolver, logger: logger}
}

// ManagerProfile — менеджер вместе с его составами в сезоне.
type ManagerProfile struct {
	Manager *models.Manager  `json:"manager"`
	Rosters []*models.Roster `json:"rosters"`
}

func (s *ManagerService) GetByID(ctx context.Context, season, id int) (*models.Manager, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	manager, err := stores.Managers.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapManagerError(err)
	}
	return manager, nil
}

// Profile returns the manager and every roster they currently hold.
func (s *ManagerService) Profile(ctx context.Context, season, id int) (*ManagerProfile, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	manager, err := stores.Managers.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapManagerError(err)
	}
	rosters, err := stores.Rosters.ListByManager(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ManagerProfile{Manager: manager, Rosters: rosters}, nil
}

// Leaderboard lists the season's managers by points, best first.
func (s *ManagerService) Leaderboard(ctx context.Context, season int) ([]*models.Manager, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	return stores.Managers.List(ctx)
}

// Delete removes a manager. Admin-only at the routing layer.
func (s *ManagerService) Delete(ctx context.Context, season, id int) error {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return mapSeasonError(err)
	}
	if err := stores.Managers.Delete(ctx, id); err != nil {
		return mapManagerError(err)
	}
	s.logger.Info("manager deleted", slog.Int("season", season), slog.Int("manager_id", id))
	return nil
}
