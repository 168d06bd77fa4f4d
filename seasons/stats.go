package seasons

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SeasonStats — агрегированная статистика одного сезона.
type SeasonStats struct {
	Year               int     `json:"year"`
	Drivers            int     `json:"drivers"`
	Managers           int     `json:"managers"`
	Races              int     `json:"races"`
	Rosters            int     `json:"rosters"`
	TotalDriverValue   float64 `json:"total_driver_value"`
	TotalManagerBudget float64 `json:"total_manager_budget"`
}

// Stats gathers the per-season counts and sums concurrently; the queries
// touch disjoint tables so they parallelize cleanly.
func Stats(ctx context.Context, resolver StoreResolver, year int) (*SeasonStats, error) {
	stores, err := resolver.Resolve(ctx, year)
	if err != nil {
		return nil, err
	}

	stats := &SeasonStats{Year: year}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := stores.Drivers.Count(gCtx)
		stats.Drivers = n
		return err
	})
	g.Go(func() error {
		v, err := stores.Drivers.TotalValue(gCtx)
		stats.TotalDriverValue = v
		return err
	})
	g.Go(func() error {
		n, err := stores.Managers.Count(gCtx)
		stats.Managers = n
		return err
	})
	g.Go(func() error {
		v, err := stores.Managers.TotalBudget(gCtx)
		stats.TotalManagerBudget = v
		return err
	})
	g.Go(func() error {
		n, err := stores.Races.Count(gCtx)
		stats.Races = n
		return err
	})
	g.Go(func() error {
		n, err := stores.Rosters.Count(gCtx)
		stats.Rosters = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
