// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

const (
	// MillisPerMinute converts planned session minutes to milliseconds.
	MillisPerMinute = 60_000
	// MaxMinutes is the longest session that can be created: one week.
	MaxMinutes = 7 * 24 * 60

	// maxDurationMinutes is the largest minute count a time.Duration holds.
	maxDurationMinutes = math.MaxInt64 / int64(time.Minute)
)

// Window is the authoritative range presence is measured against.
// A zero Start or End means that side is unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFromMillis builds a Window from optional epoch-millisecond bounds.
func WindowFromMillis(startMs, endMs *int64) Window {
	var w Window
	if startMs != nil {
		w.Start = time.UnixMilli(*startMs)
	}
	if endMs != nil {
		w.End = time.UnixMilli(*endMs)
	}
	return w
}

// HasStart reports whether the window is bounded below.
func (w Window) HasStart() bool { return !w.Start.IsZero() }

// HasEnd reports whether the window is bounded above.
func (w Window) HasEnd() bool { return !w.End.IsZero() }

// StayInterval is one continuous presence span for one participant.
// A nil EndAt means the participant is still present.
type StayInterval struct {
	StartAt time.Time  `json:"startAt"`
	EndAt   *time.Time `json:"endAt"`
}

// Open reports whether the stay has not been closed yet.
func (s StayInterval) Open() bool { return s.EndAt == nil }

// RankItem is one participant's aggregated presence.
type RankItem struct {
	UID         string  `json:"uid"`
	DisplayName *string `json:"displayName"`
	TotalMS     int64   `json:"totalMs"`
}

// Participant is a member of a session.
type Participant struct {
	UID         string  `json:"uid"`
	DisplayName *string `json:"displayName,omitempty"`
}

// Session is the metadata document of a timed group session.
type Session struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Tag            string        `json:"tag,omitempty"`
	HostUID        string        `json:"hostUid,omitempty"`
	Minutes        *int          `json:"minutes"`
	Participants   []Participant `json:"participants"`
	SessionStartAt *time.Time    `json:"sessionStartAt,omitempty"`
	CreatedAt      *time.Time    `json:"createdAt,omitempty"`
	ForceEndedAt   *time.Time    `json:"sessionForceEndedAt,omitempty"`
	FinalizedAt    *time.Time    `json:"finalizedAt,omitempty"`
}

// TimeSource projects the fields that drive the countdown.
func (s *Session) TimeSource() SessionTimeSource {
	return SessionTimeSource{
		Minutes:             s.Minutes,
		SessionStartAt:      s.SessionStartAt,
		CreatedAt:           s.CreatedAt,
		SessionForceEndedAt: s.ForceEndedAt,
	}
}

// PlannedMS is the planned session length in milliseconds.
func (s *Session) PlannedMS() int64 {
	return s.TimeSource().TotalMS()
}

// Window is the range presence is measured against once the session is over:
// the resolved start up to the effective (possibly force-shortened) end.
func (s *Session) Window(now time.Time) Window {
	src := s.TimeSource()
	start := src.ResolveStart(now)
	return Window{Start: start, End: src.EffectiveEnd(start)}
}

// Participant returns the member with uid, if any.
func (s *Session) Participant(uid string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.UID == uid {
			return p, true
		}
	}
	return Participant{}, false
}

// SessionTimeSource drives the countdown of a session.
type SessionTimeSource struct {
	Minutes             *int       `json:"minutes"`
	SessionStartAt      *time.Time `json:"sessionStartAt"`
	CreatedAt           *time.Time `json:"createdAt"`
	SessionForceEndedAt *time.Time `json:"sessionForceEndedAt"`
}

// TotalMS is max(0, minutes) in milliseconds; absent minutes count as zero.
func (s SessionTimeSource) TotalMS() int64 {
	return s.minutes() * MillisPerMinute
}

// minutes saturates at the longest length a time.Duration can express so
// the planned end never wraps before the start.
func (s SessionTimeSource) minutes() int64 {
	if s.Minutes == nil || *s.Minutes < 0 {
		return 0
	}
	return min(int64(*s.Minutes), maxDurationMinutes)
}

// ResolveStart picks sessionStartAt, then createdAt, then now.
func (s SessionTimeSource) ResolveStart(now time.Time) time.Time {
	switch {
	case s.SessionStartAt != nil:
		return *s.SessionStartAt
	case s.CreatedAt != nil:
		return *s.CreatedAt
	default:
		return now
	}
}

// PlannedEnd is start plus the planned length.
func (s SessionTimeSource) PlannedEnd(start time.Time) time.Time {
	return start.Add(time.Duration(s.minutes()) * time.Minute)
}

// EffectiveEnd is the planned end, shortened by a force-end when one exists.
// A force-end never extends the window.
func (s SessionTimeSource) EffectiveEnd(start time.Time) time.Time {
	planned := s.PlannedEnd(start)
	if s.SessionForceEndedAt != nil && s.SessionForceEndedAt.Before(planned) {
		return *s.SessionForceEndedAt
	}
	return planned
}

// XPInput is the input to the score calculator.
type XPInput struct {
	FocusMS   int64  `json:"focusMs"`
	PlannedMS int64  `json:"plannedMs"`
	Tag       string `json:"tag,omitempty"`
}
