// Package session holds the authenticated session and user profile.
package session

import "strconv"

// Profile is the authenticated user's profile as returned by the backend.
// Unknown fields are kept so the profile round-trips through the keystore.
type Profile map[string]interface{}

// Session pairs the access token with the profile it was issued for.
type Session struct {
	Token string
	User  Profile
}

// binaryProfileKeys are profile fields that may carry embedded photos or
// other binary payloads. They are stripped before the profile is persisted.
var binaryProfileKeys = []string{
	"foto",
	"foto_perfil",
	"photo",
	"photo_url_data",
	"imagen",
	"avatar_base64",
	"embedding",
	"face_embedding",
}

// CleanProfile returns a copy of the profile with all photo/binary-bearing
// keys removed. It is idempotent: cleaning a cleaned profile is a no-op.
func CleanProfile(p Profile) Profile {
	if p == nil {
		return nil
	}
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range binaryProfileKeys {
		delete(out, k)
	}
	return out
}

// DisplayName picks a human-readable name out of the profile. It prefers a
// full-name field and falls back to joining first and last name.
func (p Profile) DisplayName() string {
	for _, key := range []string{"nombre_completo", "name", "username"} {
		if v, ok := p[key].(string); ok && v != "" {
			return v
		}
	}
	first := p.firstString("nombre", "nombres")
	last := p.firstString("apellido", "apellidos")
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

func (p Profile) firstString(keys ...string) string {
	for _, key := range keys {
		if v, ok := p[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// CrewID returns the crew id embedded in the profile, if any.
func (p Profile) CrewID() string {
	for _, key := range []string{"id_tripulante", "crew_id"} {
		switch v := p[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				// Profile ids arrive as JSON numbers; render without a fraction.
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}
	return ""
}
