package events

import (
	"encoding/json"
	"fmt"

	"github.com/crewmark/attendance-client/internal/app/domain/event"
)

// unmarshalData decodes an envelope's data field, tolerating a null payload.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

type eventDTO struct {
	ID          int    `json:"id_evento"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	Start       string `json:"fecha_inicio"`
	End         string `json:"fecha_fin"`
	Location    string `json:"lugar"`
	Organizer   string `json:"organizador"`
	Country     string `json:"pais"`
	StatusCode  int    `json:"estatus"`
}

func (d eventDTO) toDomain() event.Event {
	return event.Event{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Start:         parseEventTime(d.Start),
		End:           parseEventTime(d.End),
		Location:      d.Location,
		Organizer:     d.Organizer,
		Country:       d.Country,
		Status:        event.StatusFromCode(d.StatusCode),
		RawStatusCode: d.StatusCode,
	}
}

type detailDTO struct {
	eventDTO
	Address      string   `json:"direccion"`
	Requirements []string `json:"requisitos"`
}

func (d detailDTO) toDomain() event.Detail {
	return event.Detail{
		Event:        d.eventDTO.toDomain(),
		Address:      d.Address,
		Requirements: d.Requirements,
	}
}

type rosterEntryDTO struct {
	CrewID         string `json:"id_tripulante"`
	FirstName      string `json:"nombres"`
	LastName       string `json:"apellidos"`
	Role           string `json:"cargo"`
	Department     string `json:"departamento"`
	ScheduledEntry string `json:"hora_entrada_programada"`
	ScheduledExit  string `json:"hora_salida_programada"`
	MarkedEntry    string `json:"hora_entrada_marcada"`
	MarkedExit     string `json:"hora_salida_marcada"`
	Processed      bool   `json:"procesado"`
}

type planificationDTO struct {
	EventID       int              `json:"id_evento"`
	TotalAssigned int              `json:"total_asignados"`
	Crew          []rosterEntryDTO `json:"tripulantes"`
}

func (d planificationDTO) toDomain(eventID int) event.Planification {
	if d.EventID == 0 {
		d.EventID = eventID
	}
	crew := make([]event.RosterEntry, 0, len(d.Crew))
	for _, e := range d.Crew {
		crew = append(crew, event.RosterEntry{
			CrewID:         e.CrewID,
			FirstName:      e.FirstName,
			LastName:       e.LastName,
			Role:           e.Role,
			Department:     e.Department,
			ScheduledEntry: e.ScheduledEntry,
			ScheduledExit:  e.ScheduledExit,
			MarkedEntry:    e.MarkedEntry,
			MarkedExit:     e.MarkedExit,
			Processed:      e.Processed,
		})
	}
	total := d.TotalAssigned
	if total == 0 {
		total = len(crew)
	}
	return event.Planification{
		EventID:       d.EventID,
		TotalAssigned: total,
		Crew:          crew,
	}
}
