// Package crew holds the client-side view of crew members.
package crew

// Member is a crew member assignable to event rosters, identified by crew id.
type Member struct {
	CrewID     string
	FirstName  string
	LastName   string
	NationalID string
	Email      string
	Phone      string
	Department string
	Role       string
	Active     bool
	Processed  bool
}

// FullName returns the display name for the member.
func (m Member) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	default:
		return m.FirstName + " " + m.LastName
	}
}
