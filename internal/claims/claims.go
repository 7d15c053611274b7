// Package claims extracts the payload of a bearer token for display and
// identity purposes. Nothing here verifies signatures or expiry: a decoded
// token must never be treated as trusted.
package claims

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded JSON payload of a token.
type Claims = jwt.MapClaims

// DecodeError reports a token whose payload could not be extracted.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
	}
	return "decode token: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Padding is accepted so that both raw and padded URL-safe segments decode.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Segments written with the standard alphabet are mapped onto the URL-safe
// one, so either encoding decodes.
var urlSafeAlphabet = strings.NewReplacer("+", "-", "/", "_")

// Decode returns the claims held in the second dot-separated segment of token.
func Decode(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, &DecodeError{Reason: "missing payload segment"}
	}

	payload, err := segmentParser.DecodeSegment(urlSafeAlphabet.Replace(parts[1]))
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON payload", Err: err}
	}
	if c == nil {
		return nil, &DecodeError{Reason: "payload is not a JSON object"}
	}

	return c, nil
}

// Clone returns an independent shallow copy of c.
func Clone(c Claims) Claims {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}
