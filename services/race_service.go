package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/seasons"
)

// RaceInput — административный ввод для создания/изменения этапа.
type RaceInput struct {
	RoundNumber        int       `json:"round_number"`
	Name               string    `json:"name"`
	SubmissionDeadline time.Time `json:"submission_deadline"`
	IsLocked           bool      `json:"is_locked"`
}

type RaceService struct {
	resolver seasons.StoreResolver
	logger   *slog.Logger
}

func NewRaceService(resolver seasons.StoreResolver, logger *slog.Logger) *RaceService {
	return &RaceService{resolver: resolver, logger: logger}
}

func (s *RaceService) Create(ctx context.Context, season int, input RaceInput) (*models.Race, error) {
	if err := validateRaceInput(input); err != nil {
		return nil, err
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	race := &models.Race{
		RoundNumber:        input.RoundNumber,
		Name:               input.Name,
		SubmissionDeadline: input.SubmissionDeadline,
		IsLocked:           input.IsLocked,
	}
	if err := stores.Races.Create(ctx, nil, race); err != nil {
		return nil, err
	}
	s.logger.Info("race created",
		slog.Int("season", season),
		slog.Int("race_id", race.ID),
		slog.Int("round", race.RoundNumber))
	return race, nil
}

// Update edits schedule fields. The processed flag is out of reach here;
// only the settlement engine moves it, and only forward.
func (s *RaceService) Update(ctx context.Context, season, id int, input RaceInput) (*models.Race, error) {
	if err := validateRaceInput(input); err != nil {
		return nil, err
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	race, err := stores.Races.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRaceError(err)
	}
	race.RoundNumber = input.RoundNumber
	race.Name = input.Name
	race.SubmissionDeadline = input.SubmissionDeadline
	race.IsLocked = input.IsLocked
	if err := stores.Races.Update(ctx, nil, race); err != nil {
		return nil, mapRaceError(err)
	}
	return race, nil
}

func (s *RaceService) SetLocked(ctx context.Context, season, id int, locked bool) error {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return mapSeasonError(err)
	}
	if err := stores.Races.SetLocked(ctx, id, locked); err != nil {
		return mapRaceError(err)
	}
	s.logger.Info("race lock changed",
		slog.Int("season", season),
		slog.Int("race_id", id),
		slog.Bool("locked", locked))
	return nil
}

func (s *RaceService) GetByID(ctx context.Context, season, id int) (*models.Race, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	race, err := stores.Races.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRaceError(err)
	}
	return race, nil
}

func (s *RaceService) List(ctx context.Context, season int) ([]*models.Race, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	return stores.Races.List(ctx)
}

func (s *RaceService) Delete(ctx context.Context, season, id int) error {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return mapSeasonError(err)
	}
	if err := stores.Races.Delete(ctx, id); err != nil {
		return mapRaceError(err)
	}
	return nil
}

func validateRaceInput(input RaceInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: race name is required", ErrValidationFailed)
	}
	if input.RoundNumber <= 0 {
		return fmt.Errorf("%w: round number must be positive", ErrValidationFailed)
	}
	if input.SubmissionDeadline.IsZero() {
		return fmt.Errorf("%w: submission deadline is required", ErrValidationFailed)
	}
	return nil
}
