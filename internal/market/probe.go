// Package market decides whether an instrument is currently tradeable.
// The probe layers a broker session calendar over a weekday/maintenance
// heuristic so it degrades gracefully when broker metadata is thin.
package market

import (
	"context"
	"sort"
	"time"

	"github.com/perceptrader/mt5-trader/internal/broker"
)

// Reason explains why a market is or is not tradeable.
type Reason string

const (
	ReasonOpen              Reason = "open"
	ReasonClosedWeekend     Reason = "closed_weekend"
	ReasonClosedMaintenance Reason = "closed_maintenance"
	ReasonClosedRestricted  Reason = "closed_restricted"
	ReasonNoPrice           Reason = "no_price"
	ReasonUnknown           Reason = "unknown"
)

// Status is the probe's answer for one instrument at one instant. Computed
// fresh on every check; broker state can change between polls.
type Status struct {
	Tradeable bool
	Reason    Reason
	NextOpen  time.Time     // zero when unknown
	Wait      time.Duration // time until NextOpen, zero when unknown
}

// maintenance window of the heuristic fallback, seconds from midnight
// server time.
const (
	maintenanceStart = 2 * 3600
	maintenanceEnd   = 3 * 3600
)

// Probe checks instrument tradeability against broker metadata.
type Probe struct {
	transport broker.Transport
	now       func() time.Time
}

// NewProbe creates a probe. A nil clock uses time.Now.
func NewProbe(transport broker.Transport, now func() time.Time) *Probe {
	if now == nil {
		now = time.Now
	}
	return &Probe{transport: transport, now: now}
}

// Check determines whether the symbol's market is currently tradeable.
// Missing metadata folds into an unknown, non-tradeable status rather than
// an error; an outright transport failure is indistinguishable from a
// missing symbol at this layer.
func (p *Probe) Check(ctx context.Context, symbol string) Status {
	info, err := p.transport.SymbolInfo(ctx, symbol)
	if err != nil || info == nil {
		return Status{Reason: ReasonUnknown}
	}

	if info.TradeMode != broker.TradeModeFull {
		return Status{Reason: ReasonClosedRestricted}
	}

	if info.Bid == 0 && info.Ask == 0 {
		return Status{Reason: ReasonNoPrice}
	}

	now := p.now()
	if info.Sessions != nil {
		return p.checkCalendar(info.Sessions, now)
	}
	return p.checkHeuristic(now)
}

func (p *Probe) checkCalendar(sessions map[time.Weekday][]broker.SessionWindow, now time.Time) Status {
	sec := secondOfDay(now)

	for _, w := range sessions[now.Weekday()] {
		if windowContains(w, sec) {
			return Status{Tradeable: true, Reason: ReasonOpen}
		}
	}
	// a window that started yesterday may wrap midnight into today
	yesterday := now.AddDate(0, 0, -1).Weekday()
	for _, w := range sessions[yesterday] {
		if w.Start > w.End && sec < w.End {
			return Status{Tradeable: true, Reason: ReasonOpen}
		}
	}

	reason := ReasonClosedRestricted
	if isWeekend(now.Weekday()) {
		reason = ReasonClosedWeekend
	}

	next, ok := nextSessionOpen(sessions, now)
	if !ok {
		return Status{Reason: reason}
	}
	return Status{Reason: reason, NextOpen: next, Wait: next.Sub(now)}
}

func (p *Probe) checkHeuristic(now time.Time) Status {
	if isWeekend(now.Weekday()) {
		next := midnight(now)
		for isWeekend(next.Weekday()) || !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return Status{Reason: ReasonClosedWeekend, NextOpen: next, Wait: next.Sub(now)}
	}

	sec := secondOfDay(now)
	if sec >= maintenanceStart && sec < maintenanceEnd {
		next := midnight(now).Add(maintenanceEnd * time.Second)
		return Status{Reason: ReasonClosedMaintenance, NextOpen: next, Wait: next.Sub(now)}
	}

	return Status{Tradeable: true, Reason: ReasonOpen}
}

// nextSessionOpen scans forward up to 7 days for the next window start.
func nextSessionOpen(sessions map[time.Weekday][]broker.SessionWindow, now time.Time) (time.Time, bool) {
	for d := 0; d <= 7; d++ {
		day := midnight(now).AddDate(0, 0, d)
		windows := append([]broker.SessionWindow(nil), sessions[day.Weekday()]...)
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
		for _, w := range windows {
			open := day.Add(time.Duration(w.Start) * time.Second)
			if open.After(now) {
				return open, true
			}
		}
	}
	return time.Time{}, false
}

// windowContains reports whether the second-of-day falls inside the window.
// A window with Start > End spans midnight: open from Start through
// midnight; the spill into the next day is handled by the caller.
func windowContains(w broker.SessionWindow, sec int) bool {
	if w.Start < w.End {
		return sec >= w.Start && sec < w.End
	}
	if w.Start > w.End {
		return sec >= w.Start
	}
	return false
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
