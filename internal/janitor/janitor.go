// Package janitor sweeps finished conversations out of the store once
// they pass the retention age. Only terminal conversations are touched;
// anything still running is left alone regardless of age.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/mkarag/venturo/internal/config"
	"github.com/mkarag/venturo/internal/store"
)

const listPageSize = 200

type Janitor struct {
	store    store.Store
	schedule string
	maxAge   time.Duration
	now      func() time.Time
}

func New(s store.Store, cfg config.RetentionConfig) (*Janitor, error) {
	if cfg.Schedule != "" && !gronx.New().IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid retention schedule %q", cfg.Schedule)
	}
	return &Janitor{
		store:    s,
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge.Duration(),
		now:      time.Now,
	}, nil
}

// Start runs sweeps on the cron schedule until the context ends. A missing
// schedule disables the janitor entirely.
func (j *Janitor) Start(ctx context.Context) {
	if j.schedule == "" || j.maxAge <= 0 {
		slog.Info("retention janitor disabled")
		return
	}

	slog.Info("retention janitor started", "schedule", j.schedule, "max_age", j.maxAge)

	for {
		next, err := gronx.NextTick(j.schedule, false)
		if err != nil {
			slog.Error("retention schedule tick failed", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			slog.Info("retention janitor stopped")
			return
		case <-time.After(time.Until(next)):
			if n, err := j.Sweep(); err != nil {
				slog.Error("retention sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("retention sweep removed conversations", "count", n)
			}
		}
	}
}

// Sweep deletes terminal conversations older than the retention age and
// reports how many went away.
func (j *Janitor) Sweep() (int, error) {
	cutoff := j.now().Add(-j.maxAge)

	// Collect first, delete after: deleting while paging would shift the
	// listing under us.
	var expired []string
	for offset := 0; ; offset += listPageSize {
		page, _, err := j.store.List(listPageSize, offset)
		if err != nil {
			return 0, fmt.Errorf("list conversations: %w", err)
		}
		for _, conv := range page {
			if terminal(conv.Status) && !conv.CreatedAt.After(cutoff) {
				expired = append(expired, conv.ID)
			}
		}
		if len(page) < listPageSize {
			break
		}
	}

	removed := 0
	for _, id := range expired {
		ok, err := j.store.Delete(id)
		if err != nil {
			return removed, fmt.Errorf("delete conversation %s: %w", id, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func terminal(status string) bool {
	return status == store.StatusCompleted || status == store.StatusError
}
