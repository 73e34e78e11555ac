package flow

import (
	"fmt"
	"strings"

	"github.com/crewmark/attendance-client/internal/api"
	"github.com/crewmark/attendance-client/internal/app/domain/attendance"
)

// Canned user-facing messages. The backend speaks Spanish to its users, so
// these mirror that locale.
const (
	MsgPermissionDenied = "Se necesita permiso de cámara para marcar asistencia."
	MsgCaptureCancelled = "Captura cancelada."
	MsgLowConfidence    = "No se pudo reconocer el rostro. Mejore la iluminación e intente nuevamente."
	MsgNotRostered      = "El tripulante no está planificado para este evento."
	MsgInvalidPayload   = "La solicitud no es válida. Verifique la foto e intente nuevamente."
	MsgServerFault      = "Error del servidor. Intente más tarde."
	MsgSessionExpired   = "Su sesión ha expirado. Inicie sesión nuevamente."
	MsgNoConnection     = "Sin conexión con el servidor. Verifique su red."
	MsgGenericError     = "No se pudo registrar la marcación."
)

// Backend machine codes for recognition failures. Classification prefers
// these over HTTP statuses and prose matching.
const (
	codeLowConfidence  = "LOW_CONFIDENCE"
	codeNotRostered    = "NOT_SCHEDULED"
	codeInvalidPayload = "INVALID_PAYLOAD"
	codeSessionExpired = "SESSION_EXPIRED"
	codeServerFault    = "SERVER_ERROR"
)

// successMessage renders the confirmation for a successful recognition,
// selecting the template by mark kind and appending the top match's
// confidence when available.
func successMessage(result attendance.RecognitionResult) string {
	crewID := ""
	if result.Matched != nil {
		crewID = result.Matched.CrewID
	}

	var msg string
	switch {
	case result.MarkInfo == nil:
		msg = fmt.Sprintf("Marcación registrada para %s.", crewID)
	case result.MarkInfo.Kind == attendance.MarkEntry:
		msg = fmt.Sprintf("Entrada registrada para %s a las %s.", crewID, result.MarkInfo.Time)
	case result.MarkInfo.Kind == attendance.MarkExit:
		msg = fmt.Sprintf("Salida registrada para %s a las %s.", crewID, result.MarkInfo.Time)
	default:
		msg = fmt.Sprintf("Marcación registrada para %s a las %s.", crewID, result.MarkInfo.Time)
	}

	if top := result.TopCandidate(); top != nil && top.Confidence > 0 {
		msg += fmt.Sprintf(" Confianza: %.0f%%.", top.Confidence*100)
	}
	return msg
}

// classifyError maps a failed recognition submission onto a canned
// explanation. It prefers the backend's machine code, then the HTTP status,
// then known message fragments, before giving up with a generic message.
func classifyError(err error) string {
	switch api.CodeOf(err) {
	case codeLowConfidence:
		return MsgLowConfidence
	case codeNotRostered:
		return MsgNotRostered
	case codeInvalidPayload:
		return MsgInvalidPayload
	case codeSessionExpired:
		return MsgSessionExpired
	case codeServerFault:
		return MsgServerFault
	}

	switch {
	case api.IsNotFound(err):
		// The recognition endpoint answers 404 when no face matched.
		return MsgLowConfidence
	case api.IsAuthExpired(err):
		return MsgSessionExpired
	case api.IsValidation(err):
		return MsgInvalidPayload
	case api.IsServerFault(err):
		return MsgServerFault
	case api.IsTimeout(err), api.IsUnreachable(err):
		return MsgNoConnection
	}

	return classifyMessage(err.Error())
}

// classifyMessage falls back to prose matching for backends that emit
// neither a code nor a useful status.
func classifyMessage(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "no está planificado"), strings.Contains(lower, "not scheduled"):
		return MsgNotRostered
	case strings.Contains(lower, "confianza"), strings.Contains(lower, "confidence"):
		return MsgLowConfidence
	case strings.Contains(lower, "http 404"):
		return MsgLowConfidence
	default:
		return MsgGenericError
	}
}

// classifyRejection renders a message for a submission the backend answered
// but rejected (success=false in the payload).
func classifyRejection(result attendance.RecognitionResult) string {
	if result.Message == "" {
		return MsgGenericError
	}
	if msg := classifyMessage(result.Message); msg != MsgGenericError {
		return msg
	}
	return result.Message
}
