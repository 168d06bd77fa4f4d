package seasons

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openlaps/apexfantasy/models"
)

// CollectionDrivers и другие имена коллекций, принимаемые Copier.Copy.
const (
	CollectionDrivers  = "drivers"
	CollectionManagers = "managers"
	CollectionRaces    = "races"
)

// CopySummary reports what a season copy managed to move. Per-collection
// failures land in Errors instead of aborting the copy; the operation is
// best-effort by contract, not atomic.
type CopySummary struct {
	Source      int            `json:"source"`
	Target      int            `json:"target"`
	Counts      map[string]int `json:"counts"`
	Errors      []string       `json:"errors"`
	Collections []string       `json:"collections"`
}

// Copier moves entity collections between seasons, resetting everything
// season-relative on the way (points, locks, settlement records, budgets).
type Copier struct {
	resolver      StoreResolver
	openingBudget float64
	logger        *slog.Logger
}

func NewCopier(resolver StoreResolver, openingBudget float64, logger *slog.Logger) *Copier {
	return &Copier{
		resolver:      resolver,
		openingBudget: openingBudget,
		logger:        logger,
	}
}

// Copy duplicates the named collections from source into target.
// Both years must be valid; resolving the target also creates its tables.
func (c *Copier) Copy(ctx context.Context, source, target int, collections []string) (*CopySummary, error) {
	if source == target {
		return nil, fmt.Errorf("%w: source and target are both %d", ErrInvalidSeason, source)
	}
	src, err := c.resolver.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}
	dst, err := c.resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	summary := &CopySummary{
		Source:      source,
		Target:      target,
		Counts:      make(map[string]int),
		Errors:      []string{},
		Collections: collections,
	}

	for _, collection := range collections {
		switch collection {
		case CollectionDrivers:
			c.copyDrivers(ctx, src, dst, summary)
		case CollectionManagers:
			c.copyManagers(ctx, src, dst, summary)
		case CollectionRaces:
			c.copyRaces(ctx, src, dst, summary)
		default:
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: unknown or uncopyable collection", collection))
		}
	}

	c.logger.Info("season copy finished",
		slog.Int("source", source),
		slog.Int("target", target),
		slog.Any("counts", summary.Counts),
		slog.Int("errors", len(summary.Errors)))
	return summary, nil
}

// Driver copies start the new season with zero points and the value
// snapshot collapsed onto the current value.
func (c *Copier) copyDrivers(ctx context.Context, src, dst *Stores, summary *CopySummary) {
	drivers, err := src.Drivers.List(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("drivers: %v", err))
		return
	}
	for _, d := range drivers {
		copied := models.Driver{
			Name:          d.Name,
			CurrentValue:  d.CurrentValue,
			PreviousValue: d.CurrentValue,
			Points:        0,
			Categories:    d.Categories,
			Country:       d.Country,
			ImageKey:      d.ImageKey,
		}
		if err := dst.Drivers.Create(ctx, nil, &copied); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("drivers: %q: %v", d.Name, err))
			continue
		}
		summary.Counts[CollectionDrivers]++
	}
}

// Manager copies keep credentials and role but reset budget and points; a
// fresh season has no rosters, so the conservation law demands the full
// opening budget.
func (c *Copier) copyManagers(ctx context.Context, src, dst *Stores, summary *CopySummary) {
	managers, err := src.Managers.List(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("managers: %v", err))
		return
	}
	for _, m := range managers {
		copied := models.Manager{
			Username:     m.Username,
			PasswordHash: m.PasswordHash,
			Role:         m.Role,
			Budget:       c.openingBudget,
			Points:       0,
		}
		if err := dst.Managers.Create(ctx, nil, &copied); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("managers: %q: %v", m.Username, err))
			continue
		}
		summary.Counts[CollectionManagers]++
	}
}

// Race copies reset lock and settlement state to initial.
func (c *Copier) copyRaces(ctx context.Context, src, dst *Stores, summary *CopySummary) {
	races, err := src.Races.List(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("races: %v", err))
		return
	}
	for _, race := range races {
		copied := models.Race{
			RoundNumber:        race.RoundNumber,
			Name:               race.Name,
			SubmissionDeadline: race.SubmissionDeadline,
			IsLocked:           false,
		}
		if err := dst.Races.Create(ctx, nil, &copied); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("races: round %d: %v", race.RoundNumber, err))
			continue
		}
		summary.Counts[CollectionRaces]++
	}
}
