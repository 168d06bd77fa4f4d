package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/repositories"
	"github.com/openlaps/apexfantasy/seasons"
)

// DefaultVenuePoints — базовый пул очков, разыгрываемый на одном этапе.
const DefaultVenuePoints = 930.0

// SettlementNotifier receives the settlement record after it commits.
type SettlementNotifier interface {
	BroadcastSettlement(season int, race *models.Race)
}

// SettlementService — движок переоценки стоимости (PPM).
//
// PPM = venuePoints / Σ currentValue. Each driver's expectation is its own
// value share of the venue pool; its value then scales by the relative
// over- or under-performance against that expectation:
//
//	expected = currentValue * ppm
//	change   = (gained − expected) / expected   (0 when expected is 0)
//	newValue = max(0, currentValue * (1 + change))
//
// A settlement commits every driver update together with the race's
// processed flag, or nothing at all.
type SettlementService struct {
	resolver seasons.StoreResolver
	notifier SettlementNotifier
	logger   *slog.Logger
}

func NewSettlementService(resolver seasons.StoreResolver, notifier SettlementNotifier, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
	}
}

// Settle re-prices the season's whole driver pool against one race's
// results. The race row is locked first, so of two concurrent attempts
// exactly one commits and the other observes ErrAlreadyProcessed.
func (s *SettlementService) Settle(ctx context.Context, season, raceID int, venuePoints float64, results []models.RaceResult) (*models.PPMData, error) {
	venuePoints, err := normalizeVenuePoints(venuePoints)
	if err != nil {
		return nil, err
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}

	var data *models.PPMData
	var race *models.Race
	err = stores.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		race, err = stores.Races.GetByIDForUpdate(ctx, exec, raceID)
		if err != nil {
			return mapRaceError(err)
		}
		if race.IsProcessed {
			return ErrAlreadyProcessed
		}

		drivers, err := stores.Drivers.ListForUpdate(ctx, exec)
		if err != nil {
			return err
		}
		data, err = computeSettlement(drivers, results, venuePoints)
		if err != nil {
			return err
		}

		for i, d := range drivers {
			update := data.Updates[i]
			if err := stores.Drivers.UpdateValuation(ctx, exec, d.ID,
				update.OldValue, update.NewValue, d.Points+update.PointsGained); err != nil {
				return err
			}
		}
		if err := stores.Races.MarkProcessed(ctx, exec, race.ID, data); err != nil {
			if errors.Is(err, repositories.ErrRaceAlreadyProcessed) {
				return ErrAlreadyProcessed
			}
			return err
		}
		race.IsProcessed = true
		race.PPMData = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("race settled",
		slog.Int("season", season),
		slog.Int("race_id", raceID),
		slog.Float64("ppm", data.PPM),
		slog.Float64("total_driver_value", data.TotalDriverValue),
		slog.Int("drivers", len(data.Updates)))

	if s.notifier != nil {
		s.notifier.BroadcastSettlement(season, race)
	}
	return data, nil
}

// Simulate runs the settlement formula read-only for preview purposes.
// Nothing is persisted and the race's processed state is irrelevant.
func (s *SettlementService) Simulate(ctx context.Context, season, raceID int, venuePoints float64, results []models.RaceResult) (*models.PPMData, error) {
	venuePoints, err := normalizeVenuePoints(venuePoints)
	if err != nil {
		return nil, err
	}
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	if _, err := stores.Races.GetByID(ctx, nil, raceID); err != nil {
		return nil, mapRaceError(err)
	}
	drivers, err := stores.Drivers.List(ctx)
	if err != nil {
		return nil, err
	}
	return computeSettlement(drivers, results, venuePoints)
}

// History returns the most recently processed races, newest round first.
func (s *SettlementService) History(ctx context.Context, season, limit int) ([]*models.Race, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	return stores.Races.ListProcessed(ctx, limit)
}

// DriverRacePerformance — строка анализа по одному этапу.
type DriverRacePerformance struct {
	RaceID         int     `json:"race_id"`
	RoundNumber    int     `json:"round_number"`
	RaceName       string  `json:"race_name"`
	PointsGained   float64 `json:"points_gained"`
	ExpectedPoints float64 `json:"expected_points"`
	Change         float64 `json:"change"`
	OldValue       float64 `json:"old_value"`
	NewValue       float64 `json:"new_value"`
}

// DriverAnalysis aggregates a driver's expected-vs-actual record across
// every processed race of the season.
type DriverAnalysis struct {
	DriverID            int                     `json:"driver_id"`
	DriverName          string                  `json:"driver_name"`
	Races               []DriverRacePerformance `json:"races"`
	TotalPointsGained   float64                 `json:"total_points_gained"`
	TotalExpectedPoints float64                 `json:"total_expected_points"`
	AverageChange       float64                 `json:"average_change"`
	OverPerformances    int                     `json:"over_performances"`
	UnderPerformances   int                     `json:"under_performances"`
}

// DriverAnalysis replays the stored settlement records for one driver.
func (s *SettlementService) DriverAnalysis(ctx context.Context, season, driverID int) (*DriverAnalysis, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	driver, err := stores.Drivers.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repositories.ErrDriverNotFound) {
			return nil, &UnknownDriversError{IDs: []int{driverID}}
		}
		return nil, err
	}
	races, err := stores.Races.ListProcessed(ctx, 0)
	if err != nil {
		return nil, err
	}

	analysis := &DriverAnalysis{
		DriverID:   driver.ID,
		DriverName: driver.Name,
		Races:      []DriverRacePerformance{},
	}
	for _, race := range races {
		if race.PPMData == nil {
			continue
		}
		for _, update := range race.PPMData.Updates {
			if update.DriverID != driverID {
				continue
			}
			analysis.Races = append(analysis.Races, DriverRacePerformance{
				RaceID:         race.ID,
				RoundNumber:    race.RoundNumber,
				RaceName:       race.Name,
				PointsGained:   update.PointsGained,
				ExpectedPoints: update.ExpectedPoints,
				Change:         update.Change,
				OldValue:       update.OldValue,
				NewValue:       update.NewValue,
			})
			analysis.TotalPointsGained += update.PointsGained
			analysis.TotalExpectedPoints += update.ExpectedPoints
			switch {
			case update.Change > 0:
				analysis.OverPerformances++
			case update.Change < 0:
				analysis.UnderPerformances++
			}
		}
	}
	if n := len(analysis.Races); n > 0 {
		var sum float64
		for _, r := range analysis.Races {
			sum += r.Change
		}
		analysis.AverageChange = sum / float64(n)
	}
	return analysis, nil
}

// computeSettlement is the pure half of the engine, shared by Settle and
// Simulate. Updates are returned in the same order as the driver slice.
func computeSettlement(drivers []*models.Driver, results []models.RaceResult, venuePoints float64) (*models.PPMData, error) {
	if len(drivers) == 0 {
		return nil, ErrEmptyDriverPool
	}
	var total float64
	for _, d := range drivers {
		total += d.CurrentValue
	}
	if total == 0 {
		return nil, ErrDegenerateValuation
	}

	gained := make(map[int]float64, len(results))
	for _, r := range results {
		gained[r.DriverID] = r.PointsGained
	}

	ppm := venuePoints / total
	data := &models.PPMData{
		PPM:              ppm,
		VenuePoints:      venuePoints,
		TotalDriverValue: total,
		Updates:          make([]models.DriverUpdate, len(drivers)),
		ProcessedAt:      time.Now().UTC(),
	}

	for i, d := range drivers {
		points := gained[d.ID] // drivers absent from the results gained 0
		expected := d.CurrentValue * ppm
		var change float64
		if expected != 0 {
			change = (points - expected) / expected
		}
		newValue := d.CurrentValue * (1 + change)
		if newValue < 0 {
			newValue = 0
		}
		data.Updates[i] = models.DriverUpdate{
			DriverID:       d.ID,
			DriverName:     d.Name,
			PointsGained:   points,
			ExpectedPoints: expected,
			Change:         change,
			OldValue:       d.CurrentValue,
			NewValue:       newValue,
		}
	}
	return data, nil
}

func normalizeVenuePoints(venuePoints float64) (float64, error) {
	if venuePoints == 0 {
		return DefaultVenuePoints, nil
	}
	if venuePoints < 0 {
		return 0, ErrInvalidVenuePoints
	}
	return venuePoints, nil
}
