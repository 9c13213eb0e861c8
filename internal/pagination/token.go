// Package pagination implements opaque keyset continuation tokens.
//
// A token encodes the sort-key tuple of a page boundary row plus the paging
// direction, nothing else. The caller supplies filter and sort context at
// decode time and re-runs the same query shape with the start position
// shifted; a token is not cryptographically bound to the query it came
// from, and reuse against an altered query is undefined beyond decode-time
// structural validity.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Key is the decoded boundary of a page: the ordered sort-field values of
// the boundary row (ending with the unique item id) and the direction.
type Key struct {
	Values   []any `json:"k"`
	Backward bool  `json:"b,omitempty"`
}

// TokenDecodeError is returned when a continuation token is malformed or
// tampered with. Decoding never silently yields an arbitrary page.
type TokenDecodeError struct {
	Token string
	Err   error
}

func (e *TokenDecodeError) Error() string {
	return fmt.Sprintf("invalid pagination token: %v", e.Err)
}

func (e *TokenDecodeError) Unwrap() error {
	return e.Err
}

// Encode renders a boundary key as an opaque URL-safe token.
func Encode(key *Key) string {
	if key == nil {
		return ""
	}
	data, err := json.Marshal(key)
	if err != nil {
		// A Key of JSON scalars cannot fail to marshal.
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// Decode parses a token back into a boundary key. Numeric key parts come
// back as float64, which is how executors must compare them.
func Decode(token string) (*Key, error) {
	if token == "" {
		return nil, &TokenDecodeError{Token: token, Err: fmt.Errorf("empty token")}
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, &TokenDecodeError{Token: token, Err: err}
	}
	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, &TokenDecodeError{Token: token, Err: err}
	}
	if len(key.Values) == 0 {
		return nil, &TokenDecodeError{Token: token, Err: fmt.Errorf("empty boundary key")}
	}
	return &key, nil
}
