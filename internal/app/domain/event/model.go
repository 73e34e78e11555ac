// Package event holds the client-side view of backend events and rosters.
package event

import "time"

// Status is the derived activity state of an event.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// StatusFromCode derives the event status from the backend status code.
// Only code 1 means active; every other value is inactive.
func StatusFromCode(code int) Status {
	if code == 1 {
		return StatusActive
	}
	return StatusInactive
}

// Event is the list-view projection of a backend event.
type Event struct {
	ID            int
	Name          string
	Description   string
	Start         time.Time
	End           time.Time
	Location      string
	Organizer     string
	Country       string
	Status        Status
	RawStatusCode int
}

// Active reports whether the event is in the active state.
func (e Event) Active() bool {
	return e.Status == StatusActive
}

// Detail extends Event with fields loaded on demand per event id.
type Detail struct {
	Event
	Address      string
	Requirements []string
}

// RosterEntry is a crew member assignment inside a planification, carrying
// both the planned schedule and any actual clock-in times.
type RosterEntry struct {
	CrewID         string
	FirstName      string
	LastName       string
	Role           string
	Department     string
	ScheduledEntry string
	ScheduledExit  string
	MarkedEntry    string
	MarkedExit     string
	Processed      bool
}

// Planification is the roster assigned to a single event.
type Planification struct {
	EventID       int
	TotalAssigned int
	Crew          []RosterEntry
}

// ScheduleState is the display state of a roster entry's times. The three
// states are mutually exclusive per person.
type ScheduleState int

const (
	// ScheduleNone means neither actual marks nor planned times exist.
	ScheduleNone ScheduleState = iota
	// SchedulePlanned means only the planned roster times exist.
	SchedulePlanned
	// ScheduleMarked means actual clock-in or clock-out times exist and
	// take priority over planned times.
	ScheduleMarked
)

// DisplayState resolves which schedule information to show for an entry.
// Actual marks always win over planned times.
func (r RosterEntry) DisplayState() ScheduleState {
	if r.MarkedEntry != "" || r.MarkedExit != "" {
		return ScheduleMarked
	}
	if r.ScheduledEntry != "" || r.ScheduledExit != "" {
		return SchedulePlanned
	}
	return ScheduleNone
}
