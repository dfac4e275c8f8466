// Package report summarizes interaction-log activity for operators.
package report

import (
	"context"
	"fmt"
	"time"

	"linkedin-optimizer/internal/storage"
)

// Usage covers the trailing window ending at the time of generation.
type Usage struct {
	Since time.Time
	Turns int
	Users int
}

func (u Usage) String() string {
	return fmt.Sprintf("usage since %s: %d turns from %d users",
		u.Since.Format("2006-01-02 15:04 MST"), u.Turns, u.Users)
}

type Generator struct {
	store storage.Store
	sink  func(string)
}

// New creates a generator that writes summaries through sink (a logger by
// default when sink is nil).
func New(store storage.Store, sink func(string)) *Generator {
	return &Generator{store: store, sink: sink}
}

// Daily computes the trailing 24h summary.
func (g *Generator) Daily(ctx context.Context) (Usage, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	turns, users, err := g.store.CountInteractionsSince(ctx, since)
	if err != nil {
		return Usage{}, fmt.Errorf("count interactions: %w", err)
	}
	return Usage{Since: since, Turns: turns, Users: users}, nil
}

// Run generates the daily summary and pushes it to the sink. Wired as the
// scheduler's report function.
func (g *Generator) Run(ctx context.Context) error {
	u, err := g.Daily(ctx)
	if err != nil {
		return err
	}
	if g.sink != nil {
		g.sink(u.String())
	}
	return nil
}
