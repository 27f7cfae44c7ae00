// Package codec reads request documents and writes responses.
//
// A request document maps registry names to service requests:
//
//	auth:
//	  service: simple_auth
//	  args: {username: alex}
//	main:
//	  service: whoami
//
// JSON, YAML and TOML documents decode to the same dispatch.Request.
// Responses are always written as JSON.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
)

// DefaultMaxBytes bounds request documents.
const DefaultMaxBytes = 1 << 20

// Format names a request document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var (
	ErrUnknownFormat = errors.New("unknown request format")
	ErrTooLarge      = errors.New("request document too large")
)

// ParseFormat accepts json, yaml, yml and toml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// DecodeRequest reads a request document of at most DefaultMaxBytes.
func DecodeRequest(r io.Reader, format Format) (dispatch.Request, error) {
	return DecodeRequestLimit(r, format, DefaultMaxBytes)
}

// DecodeRequestLimit reads a request document of at most maxBytes. A
// non-positive maxBytes selects DefaultMaxBytes.
func DecodeRequestLimit(r io.Reader, format Format, maxBytes int64) (dispatch.Request, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	doc, err := parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("decode %s request: %w", format, err)
	}
	return toRequest(doc)
}

func parse(data []byte, format Format) (map[string]any, error) {
	var doc map[string]any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, errors.New("unexpected data after top-level value")
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return doc, nil
}

// toRequest validates the generic document shape. Each entry must be null
// or a mapping with only "service" and "args".
func toRequest(doc map[string]any) (dispatch.Request, error) {
	req := make(dispatch.Request, len(doc))
	for _, registry := range sortedKeys(doc) {
		sr, err := toServiceRequest(doc[registry])
		if err != nil {
			return nil, fmt.Errorf("registry %q: %w", registry, err)
		}
		req[registry] = sr
	}
	return req, nil
}

func toServiceRequest(v any) (dispatch.ServiceRequest, error) {
	var sr dispatch.ServiceRequest
	if v == nil {
		return sr, nil
	}
	m, err := toStringMap(v)
	if err != nil {
		return sr, fmt.Errorf("service request: %w", err)
	}
	for _, key := range sortedKeys(m) {
		switch key {
		case "service":
			if m[key] == nil {
				continue
			}
			name, ok := m[key].(string)
			if !ok {
				return sr, fmt.Errorf("service must be a string, got %T", m[key])
			}
			sr.Service = name
		case "args":
			if m[key] == nil {
				continue
			}
			args, err := toStringMap(m[key])
			if err != nil {
				return sr, fmt.Errorf("args: %w", err)
			}
			sr.Args = dispatch.Args(args)
		default:
			return sr, fmt.Errorf("unknown field %q", key)
		}
	}
	return sr, nil
}

// toStringMap accepts the mapping types produced by the three decoders and
// normalizes nested YAML maps so results are JSON-encodable. Mappings with
// non-string keys, at any depth, are rejected.
func toStringMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			nv, err := normalize(val)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			nv, err := normalize(val)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", ks, err)
			}
			out[ks] = nv
		}
		return out, nil
	}
	return nil, fmt.Errorf("must be a mapping, got %T", v)
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return toStringMap(t)
	case []any:
		return normalizeList(t)
	case []map[string]any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = e
		}
		return normalizeList(list)
	}
	return v, nil
}

func normalizeList(list []any) ([]any, error) {
	out := make([]any, len(list))
	for i, e := range list {
		nv, err := normalize(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = nv
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeResponse writes resp as a single JSON document followed by a
// newline.
func EncodeResponse(w io.Writer, resp dispatch.Response, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
