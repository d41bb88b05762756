package report

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Summary runs the three dashboard aggregates concurrently: completed order
// sales from the membership source, enrolments and completions from the
// LMS. A failure in any aggregate fails the whole summary.
func (m *Merger) Summary(ctx context.Context, fromUTC, toUTC *time.Time, categoryID *int64) (Summary, error) {
	var summary Summary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := m.wordpress.SalesTotal(gctx, fromUTC, toUTC)
		if err != nil {
			return err
		}
		summary.SalesTotal = total
		return nil
	})
	g.Go(func() error {
		count, err := m.moodle.EnrolmentCount(gctx, fromUTC, toUTC, categoryID)
		if err != nil {
			return err
		}
		summary.EnrolmentCount = count
		return nil
	})
	g.Go(func() error {
		count, err := m.moodle.CompletionCount(gctx, fromUTC, toUTC, categoryID)
		if err != nil {
			return err
		}
		summary.CompletionCount = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return summary, nil
}
