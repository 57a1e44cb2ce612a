package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/phrazzld/task-api/internal/store"
)

// maxRequestBodyBytes caps JSON request bodies.
const maxRequestBodyBytes = 1 << 20 // 1MB

// DecodeJSON decodes a request body into the given value.
func DecodeJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes))
	return dec.Decode(v)
}

// DecodePatch decodes a request body into a field→value map and rejects the
// whole patch if any key is outside the allow-list. Nothing is applied when
// a single field is disallowed; the check runs before any write.
func DecodePatch(r *http.Request, allowed ...string) (map[string]json.RawMessage, error) {
	var patch map[string]json.RawMessage
	if err := DecodeJSON(r, &patch); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty update", store.ErrInvalidOperation)
	}

	for key := range patch {
		if !contains(allowed, key) {
			return nil, fmt.Errorf("%w: field %q cannot be updated", store.ErrInvalidOperation, key)
		}
	}
	return patch, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// unmarshalField decodes one raw patch value into its typed destination.
func unmarshalField(raw json.RawMessage, field string, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: field %q has the wrong type", store.ErrInvalidOperation, field)
	}
	return nil
}
