package dispatch

import (
	"bytes"
	"encoding/json"
)

// Args is the untyped argument mapping of one service request.
type Args map[string]any

// ServiceRequest selects one service of a registry and its arguments.
// An empty Service selects the registry's default service.
type ServiceRequest struct {
	Service string `json:"service,omitempty" yaml:"service,omitempty" toml:"service,omitempty"`
	Args    Args   `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
}

// Request maps registry name to the service request addressed to it.
// A registry without an entry runs its default service with no args.
type Request map[string]ServiceRequest

// Response is exactly one of a success carrying Result, or a failure
// carrying Error and, for domain errors, Details.
type Response struct {
	Result  any
	Error   string
	Details map[string]any
}

// Failed reports whether the response carries an error.
func (r Response) Failed() bool {
	return r.Error != ""
}

// MarshalJSON emits {"result": ...} on success (null results included) and
// {"error": ..., "details": ...} otherwise. details is omitted when nil,
// which is the case for GenericInternalError.
func (r Response) MarshalJSON() ([]byte, error) {
	if !r.Failed() {
		return marshalRaw(struct {
			Result any `json:"result"`
		}{Result: r.Result})
	}
	out := map[string]any{"error": r.Error}
	if r.Details != nil {
		out["details"] = r.Details
	}
	return marshalRaw(out)
}

// marshalRaw leaves HTML escaping to the outer encoder.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	var aux struct {
		Result  any            `json:"result"`
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Response{Result: aux.Result, Error: aux.Error, Details: aux.Details}
	return nil
}
