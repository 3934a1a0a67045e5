// Package jobs holds the background maintenance loops.
package jobs

import (
	"context"
	"time"

	"datebox-be/internal/catalog"
	"datebox-be/internal/logger"

	"go.uber.org/zap"
)

// EventSweeper periodically closes events whose date has passed so they stop
// showing up as purchasable.
type EventSweeper struct {
	catalog  catalog.Repository
	interval time.Duration
	now      func() time.Time
}

func NewEventSweeper(cat catalog.Repository, interval time.Duration) *EventSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &EventSweeper{catalog: cat, interval: interval, now: time.Now}
}

// Run blocks until ctx is canceled, sweeping once immediately and then on
// every tick.
func (s *EventSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep ends every open event whose scheduled end has passed.
func (s *EventSweeper) Sweep(ctx context.Context) {
	log := logger.FromCtx(ctx)

	events, err := s.catalog.ListOpenEvents(ctx)
	if err != nil {
		log.Error("event sweep failed to list events", zap.Error(err))
		return
	}

	now := s.now()
	for _, event := range events {
		end, ok := eventEnd(event)
		if !ok {
			log.Warn("event has unparseable schedule",
				zap.String("event_id", event.ID),
				zap.String("date", event.Date),
				zap.String("time", event.Time),
			)
			continue
		}
		if now.Before(end) {
			continue
		}
		if err := s.catalog.MarkEventEnded(ctx, event.ID); err != nil {
			log.Error("failed to end event", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		log.Info("event ended", zap.String("event_id", event.ID), zap.String("title", event.Title))
	}
}

// eventEnd derives when the event is over. Events without a start time are
// treated as running until the end of their day.
func eventEnd(event *catalog.Event) (time.Time, bool) {
	date, err := time.ParseInLocation("2006-01-02", event.Date, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	if event.Time == "" {
		return date.Add(24*time.Hour - time.Minute), true
	}
	start, err := time.Parse("15:04", event.Time)
	if err != nil {
		return date.Add(24*time.Hour - time.Minute), true
	}
	return date.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute), true
}
