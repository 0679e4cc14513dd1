// Package cursor encodes listing continuation state for backends whose
// native page token is only valid together with the listed prefix.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type state struct {
	Prefix string `json:"p"`
	Token  string `json:"t"`
}

// Encode packs prefix and the backend token into an opaque cursor.
func Encode(prefix, token string) string {
	data, _ := json.Marshal(state{Prefix: prefix, Token: token})
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(cursor string) (prefix, token string, err error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("malformed cursor: %w", err)
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return "", "", fmt.Errorf("malformed cursor: %w", err)
	}
	if s.Token == "" {
		return "", "", fmt.Errorf("malformed cursor: empty token")
	}
	return s.Prefix, s.Token, nil
}
