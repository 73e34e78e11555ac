// Package facial wraps the server-side facial recognition endpoints. The
// client never runs recognition locally; it only forwards photos.
package facial

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
	"github.com/crewmark/attendance-client/internal/app/domain/crew"
	"github.com/crewmark/attendance-client/internal/app/metrics"
)

// Service is a stateless facade over the /facial endpoints.
type Service struct {
	client *api.Client
}

// New constructs a facial service.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// Recognize uploads a captured photo for the given event and returns the
// backend's recognition verdict. The result is transient; callers render it
// and drop it.
func (s *Service) Recognize(ctx context.Context, eventID int, photo []byte, filename string) (attendance.RecognitionResult, error) {
	if len(photo) == 0 {
		return attendance.RecognitionResult{}, fmt.Errorf("photo is required")
	}
	if filename == "" {
		filename = "capture.jpg"
	}

	resp, err := s.client.PostMultipart(ctx, "/facial/recognize",
		map[string]string{"id_evento": strconv.Itoa(eventID)},
		[]api.FormFile{{
			Field:       "photo",
			Name:        filename,
			ContentType: "image/jpeg",
			Content:     photo,
		}},
	)
	if err != nil {
		metrics.RecordRecognition("transport_error")
		return attendance.RecognitionResult{}, err
	}

	result := parseRecognition(resp.Body)
	if result.Success {
		metrics.RecordRecognition("success")
	} else {
		metrics.RecordRecognition("rejected")
	}
	return result, nil
}

// CreateEmbedding registers a reference photo for a crew member.
func (s *Service) CreateEmbedding(ctx context.Context, crewID string, photo []byte, filename string) error {
	if filename == "" {
		filename = "reference.jpg"
	}
	resp, err := s.client.PostMultipart(ctx, "/facial/create-embedding",
		map[string]string{"id_tripulante": crewID},
		[]api.FormFile{{
			Field:       "photo",
			Name:        filename,
			ContentType: "image/jpeg",
			Content:     photo,
		}},
	)
	if err != nil {
		return err
	}
	env, err := resp.Envelope()
	if err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("create embedding: %s", env.Message)
	}
	return nil
}

// HasEmbedding reports whether the backend holds a face embedding for the
// crew member.
func (s *Service) HasEmbedding(ctx context.Context, crewID string) (bool, error) {
	resp, err := s.client.Get(ctx, "/facial/embedding/"+crewID, nil)
	if err != nil {
		if api.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	env, err := resp.Envelope()
	if err != nil {
		return false, err
	}
	return env.Success, nil
}

// parseRecognition extracts the recognition payload. The backend's shape has
// drifted across versions (Spanish and English key variants), so the parse is
// deliberately tolerant.
func parseRecognition(body []byte) attendance.RecognitionResult {
	root := gjson.ParseBytes(body)

	result := attendance.RecognitionResult{
		Success:          root.Get("success").Bool(),
		Message:          root.Get("message").String(),
		ProcessingTimeMS: firstFloat(root, "tiempo_procesamiento_ms", "processing_time_ms"),
	}

	if matched := firstResult(root, "tripulante", "matched_personnel", "crew_member"); matched.Exists() {
		result.Matched = &crew.Member{
			CrewID:    firstString(matched, "id_tripulante", "crew_id"),
			FirstName: firstString(matched, "nombres", "first_name"),
			LastName:  firstString(matched, "apellidos", "last_name"),
			Role:      firstString(matched, "cargo", "role"),
			Active:    true,
		}
	}

	if mark := firstResult(root, "marcacion", "mark_info"); mark.Exists() {
		result.MarkInfo = &attendance.MarkInfo{
			Kind: attendance.KindFromString(firstString(mark, "tipo", "kind")),
			Time: firstString(mark, "hora", "time"),
			Date: firstString(mark, "fecha", "date"),
		}
	}

	candidates := firstResult(root, "coincidencias", "candidate_matches", "candidates")
	candidates.ForEach(func(_, c gjson.Result) bool {
		result.Candidates = append(result.Candidates, attendance.CandidateMatch{
			CrewID:     firstString(c, "id_tripulante", "crew_id"),
			Name:       firstString(c, "nombre", "name"),
			Confidence: firstFloat(c, "confianza", "confidence"),
			Distance:   firstFloat(c, "distancia", "distance"),
		})
		return true
	})

	return result
}

func firstResult(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, keys ...string) string {
	return firstResult(r, keys...).String()
}

func firstFloat(r gjson.Result, keys ...string) float64 {
	return firstResult(r, keys...).Float()
}
