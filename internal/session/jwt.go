package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeClaims extracts the payload claims from a JWT without verifying the
// signature. The token is only used to recover the subject for a profile
// lookup; the backend verifies it on every request.
func DecodeClaims(token string) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("token has %d segments, want at least 2", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}
	return claims, nil
}

// subjectCandidates returns the claim values worth trying as a profile id,
// in lookup order.
func subjectCandidates(claims map[string]any) []string {
	var out []string
	for _, key := range []string{"sub", "user_id", "uid", "aud"} {
		if v, ok := claims[key].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}
