package intent

import (
	"math"
	"time"
)

// DefaultSessionTimeout is the inactivity gap that closes a time session.
const DefaultSessionTimeout = 30 * time.Minute

// TimeSession is a maximal run of one user's events where each consecutive
// gap is within the session timeout. Built once, immutable afterward.
type TimeSession struct {
	Events []Event
}

// WindowSessions splits a time-ordered event sequence into time sessions:
// greedy accumulation, comparing each event against the previous event in the
// current session (not the session start). An unparsable timestamp on either
// side counts as an infinite gap and forces a new session.
func WindowSessions(events []Event, timeout time.Duration) []TimeSession {
	if len(events) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	var sessions []TimeSession
	current := TimeSession{Events: []Event{events[0]}}
	for _, ev := range events[1:] {
		prev := current.Events[len(current.Events)-1]
		if gapMinutes(prev.EventTime, ev.EventTime) <= timeout.Minutes() {
			current.Events = append(current.Events, ev)
			continue
		}
		sessions = append(sessions, current)
		current = TimeSession{Events: []Event{ev}}
	}
	return append(sessions, current)
}

// gapMinutes returns the gap between two nullable timestamps in minutes,
// +Inf when either side is unknown.
func gapMinutes(prev, cur *time.Time) float64 {
	if prev == nil || cur == nil {
		return math.Inf(1)
	}
	return cur.Sub(*prev).Minutes()
}
