// Package attendance holds attendance marks and facial recognition results.
package attendance

import "github.com/crewmark/attendance-client/internal/app/domain/crew"

// MarkKind distinguishes clock-in from clock-out records.
type MarkKind string

const (
	MarkEntry MarkKind = "entrada"
	MarkExit  MarkKind = "salida"
)

// KindFromString normalises a backend mark type into a MarkKind. Unknown
// values are returned as-is so callers can still render them.
func KindFromString(raw string) MarkKind {
	switch raw {
	case "entrada", "entry", "in":
		return MarkEntry
	case "salida", "exit", "out":
		return MarkExit
	default:
		return MarkKind(raw)
	}
}

// Mark is a timestamped entry or exit record for a crew member at an event.
// Marks are read-only on the client; the recognition backend produces them.
type Mark struct {
	ID        int
	CrewID    string
	Date      string
	Time      string
	Kind      MarkKind
	EventName string
	Location  string
}

// CandidateMatch is one facial-match candidate with its similarity score.
type CandidateMatch struct {
	CrewID     string
	Name       string
	Confidence float64
	Distance   float64
}

// MarkInfo describes the mark the backend created for a successful
// recognition.
type MarkInfo struct {
	Kind MarkKind
	Time string
	Date string
}

// RecognitionResult is the transient outcome of a facial recognition call.
// It is consumed immediately to render a message and never persisted.
type RecognitionResult struct {
	Success          bool
	Message          string
	Matched          *crew.Member
	MarkInfo         *MarkInfo
	Candidates       []CandidateMatch
	ProcessingTimeMS float64
}

// TopCandidate returns the highest-confidence candidate, or nil when the
// backend reported none.
func (r RecognitionResult) TopCandidate() *CandidateMatch {
	var top *CandidateMatch
	for i := range r.Candidates {
		if top == nil || r.Candidates[i].Confidence > top.Confidence {
			top = &r.Candidates[i]
		}
	}
	return top
}
