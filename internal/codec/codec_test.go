package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
)

func TestDecodeRequest_Formats(t *testing.T) {
	want := dispatch.Request{
		"auth": {Service: "simple_auth", Args: dispatch.Args{"username": "alex"}},
		"main": {Service: "whoami", Args: dispatch.Args{"all_caps": true}},
	}

	tests := []struct {
		format Format
		doc    string
	}{
		{FormatJSON, `{"auth": {"service": "simple_auth", "args": {"username": "alex"}},
		               "main": {"service": "whoami", "args": {"all_caps": true}}}`},
		{FormatYAML, `
auth:
  service: simple_auth
  args:
    username: alex
main:
  service: whoami
  args: {all_caps: true}
`},
		{FormatTOML, `
[auth]
service = "simple_auth"
[auth.args]
username = "alex"

[main]
service = "whoami"
args = { all_caps = true }
`},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := DecodeRequest(strings.NewReader(tt.doc), tt.format)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeRequest_DefaultsAndNulls(t *testing.T) {
	got, err := DecodeRequest(strings.NewReader(`{"auth": null, "main": {"args": null}, "extra": {}}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, dispatch.ServiceRequest{}, got["auth"])
	assert.Equal(t, dispatch.ServiceRequest{}, got["main"])
	assert.Contains(t, got, "extra")
}

func TestDecodeRequest_NestedYAMLIsNormalized(t *testing.T) {
	doc := `
main:
  service: echo
  args:
    message:
      nested: {deep: [1, {k: v}]}
`
	got, err := DecodeRequest(strings.NewReader(doc), FormatYAML)
	require.NoError(t, err)

	msg, ok := got["main"].Args["message"].(map[string]any)
	require.True(t, ok, "nested mappings decode to map[string]any")
	nested, ok := msg["nested"].(map[string]any)
	require.True(t, ok)
	deep, ok := nested["deep"].([]any)
	require.True(t, ok)
	_, ok = deep[1].(map[string]any)
	assert.True(t, ok)
}

func TestDecodeRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		doc     string
		wantErr string
	}{
		{"unknown field", FormatJSON, `{"auth": {"service": "x", "argz": {}}}`, `unknown field "argz"`},
		{"service not string", FormatJSON, `{"auth": {"service": 1}}`, "service must be a string"},
		{"args not mapping", FormatJSON, `{"auth": {"args": [1, 2]}}`, "args: must be a mapping"},
		{"entry not mapping", FormatJSON, `{"auth": "simple_auth"}`, "must be a mapping"},
		{"trailing data", FormatJSON, `{} {}`, "unexpected data"},
		{"top level array", FormatJSON, `[]`, "decode json request"},
		{"bad yaml", FormatYAML, "auth: [", "decode yaml request"},
		{"non-string yaml key", FormatYAML, "auth:\n  args:\n    1: x\n", "non-string key"},
		{"nested non-string yaml key", FormatYAML, "auth:\n  args:\n    opts:\n      1: x\n", `args: "opts": non-string key 1`},
		{"non-string yaml key in list", FormatYAML, "auth:\n  args:\n    items:\n      - {true: x}\n", `"items": [0]: non-string key true`},
		{"bad toml", FormatTOML, "auth = ", "decode toml request"},
		{"unknown format", Format("xml"), `<a/>`, "unknown request format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(strings.NewReader(tt.doc), tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeRequestLimit(t *testing.T) {
	doc := `{"main": {"service": "echo", "args": {"message": "` + strings.Repeat("x", 100) + `"}}}`

	_, err := DecodeRequestLimit(strings.NewReader(doc), FormatJSON, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = DecodeRequestLimit(strings.NewReader(doc), FormatJSON, int64(len(doc)))
	assert.NoError(t, err, "exactly at the limit is allowed")

	_, err = DecodeRequestLimit(strings.NewReader(doc), FormatJSON, 0)
	assert.NoError(t, err, "zero selects the default limit")
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"req.json":           FormatJSON,
		"dir/req.YAML":       FormatYAML,
		"req.yml":            FormatYAML,
		"/tmp/requests.toml": FormatTOML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("request")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = FormatFromPath("request.xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEncodeResponse(t *testing.T) {
	tests := []struct {
		name string
		resp dispatch.Response
		want string
	}{
		{"result", dispatch.Response{Result: "ALEX"}, `{"result":"ALEX"}`},
		{"null result", dispatch.Response{}, `{"result":null}`},
		{"domain error", dispatch.Response{Error: "AuthError", Details: map[string]any{"msg": "I hate you"}},
			`{"details":{"msg":"I hate you"},"error":"AuthError"}`},
		{"generic", dispatch.Response{Error: dispatch.KindGenericInternalError}, `{"error":"GenericInternalError"}`},
		{"no html escaping", dispatch.Response{Result: "<a&b>"}, `{"result":"<a&b>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeResponse(&buf, tt.resp, false))
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func TestEncodeResponse_Pretty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, dispatch.Response{Result: map[string]any{"a": 1}}, true))
	assert.Equal(t, "{\n  \"result\": {\n    \"a\": 1\n  }\n}\n", buf.String())
}
