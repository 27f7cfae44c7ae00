package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"result", Response{Result: "ALEX"}, `{"result":"ALEX"}`},
		{"null result", Response{}, `{"result":null}`},
		{"domain error", Response{Error: "AuthError", Details: map[string]any{"msg": "I hate you"}},
			`{"details":{"msg":"I hate you"},"error":"AuthError"}`},
		{"empty details kept", Response{Error: "Stop", Details: map[string]any{}}, `{"details":{},"error":"Stop"}`},
		{"generic internal error", Response{Error: KindGenericInternalError}, `{"error":"GenericInternalError"}`},
		{"html left alone", Response{Result: "<b>&</b>"}, `{"result":"<b>&</b>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestResponse_UnmarshalJSON(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"error":"AuthError","details":{"msg":"x"}}`), &r))
	assert.True(t, r.Failed())
	assert.Equal(t, map[string]any{"msg": "x"}, r.Details)

	require.NoError(t, json.Unmarshal([]byte(`{"result":[1,"a"]}`), &r))
	assert.False(t, r.Failed())
	assert.Equal(t, []any{float64(1), "a"}, r.Result)
	assert.Nil(t, r.Details)
}

func TestRequest_DecodesOmittedFields(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"auth":{"args":{"username":"alex"}},"main":{}}`), &req))
	assert.Equal(t, ServiceRequest{Args: Args{"username": "alex"}}, req["auth"])
	assert.Equal(t, ServiceRequest{}, req["main"])
}
