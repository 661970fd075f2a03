// Package gate holds the purely time-based entry predicates: session
// windows and news blackout windows. Gates only ever apply to NEW entries,
// never to managing an open position.
package gate

import (
	"fmt"
	"time"
)

// SessionWindow is a UTC trading session, hours in [Start, End).
type SessionWindow struct {
	Name      string
	StartHour int
	EndHour   int
}

func (s SessionWindow) contains(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= s.StartHour && h < s.EndHour
}

// BlackoutWindow suppresses entries around a weekly scheduled event, eg.
// the EIA petroleum report on Wednesday 15:30 UTC.
type BlackoutWindow struct {
	Name    string
	Weekday time.Weekday
	Hour    int
	Minute  int
	Before  time.Duration
	After   time.Duration
}

// eventAround returns the event times whose blackout window could contain
// t: the occurrences on the surrounding days matching the weekday.
func (b BlackoutWindow) eventAround(t time.Time) []time.Time {
	t = t.UTC()
	var events []time.Time
	for _, d := range []int{-1, 0, 1} {
		day := t.AddDate(0, 0, d)
		if day.Weekday() != b.Weekday {
			continue
		}
		events = append(events, time.Date(day.Year(), day.Month(), day.Day(), b.Hour, b.Minute, 0, 0, time.UTC))
	}
	return events
}

func (b BlackoutWindow) contains(t time.Time) bool {
	t = t.UTC()
	for _, ev := range b.eventAround(t) {
		if !t.Before(ev.Add(-b.Before)) && !t.After(ev.Add(b.After)) {
			return true
		}
	}
	return false
}

// Evaluator is a pure predicate over the current UTC time: entries are
// permitted inside the union of session windows and outside every blackout
// window.
type Evaluator struct {
	sessions  []SessionWindow
	blackouts []BlackoutWindow
}

func NewEvaluator(sessions []SessionWindow, blackouts []BlackoutWindow) *Evaluator {
	return &Evaluator{sessions: sessions, blackouts: blackouts}
}

// EntryAllowed reports whether a new entry is permitted at t, with a denial
// reason for status logging.
func (e *Evaluator) EntryAllowed(t time.Time) (bool, string) {
	for _, b := range e.blackouts {
		if b.contains(t) {
			return false, fmt.Sprintf("inside %s blackout window", b.Name)
		}
	}

	if len(e.sessions) == 0 {
		return true, ""
	}
	for _, s := range e.sessions {
		if s.contains(t) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("outside trading sessions (current hour %02d:00 UTC)", t.UTC().Hour())
}

// ActiveSessions returns the names of every session containing t.
func (e *Evaluator) ActiveSessions(t time.Time) []string {
	var active []string
	for _, s := range e.sessions {
		if s.contains(t) {
			active = append(active, s.Name)
		}
	}
	return active
}

// NextBlackout returns the start of the nearest upcoming (or current)
// blackout window after t, and false if none is configured.
func (e *Evaluator) NextBlackout(t time.Time) (time.Time, bool) {
	t = t.UTC()
	var next time.Time
	for _, b := range e.blackouts {
		for d := 0; d <= 7; d++ {
			day := t.AddDate(0, 0, d)
			if day.Weekday() != b.Weekday {
				continue
			}
			ev := time.Date(day.Year(), day.Month(), day.Day(), b.Hour, b.Minute, 0, 0, time.UTC)
			start := ev.Add(-b.Before)
			if ev.Add(b.After).Before(t) {
				continue
			}
			if next.IsZero() || start.Before(next) {
				next = start
			}
			break
		}
	}
	return next, !next.IsZero()
}
