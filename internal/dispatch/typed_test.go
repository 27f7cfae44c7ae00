package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetArgs struct {
	Name    string        `arg:"name" validate:"min=1"`
	Times   int           `arg:"times,optional" validate:"min=1,max=3"`
	Loud    bool          `arg:"loud,optional"`
	Timeout time.Duration `arg:"timeout,optional"`
	Tags    []string      `arg:"tags,optional"`
	ignored string
	Skipped string `arg:"-"`
}

func greet(_ context.Context, _ *Context, a greetArgs) (any, error) {
	return a, nil
}

func TestTyped_Params(t *testing.T) {
	svc, err := NewService(TypedWithDefaults(greetArgs{Times: 1, Timeout: time.Second}, greet))
	require.NoError(t, err)

	assert.Equal(t, []Param{
		{Name: "name"},
		{Name: "times", Optional: true, Default: 1},
		{Name: "loud", Optional: true, Default: false},
		{Name: "timeout", Optional: true, Default: time.Second},
		{Name: "tags", Optional: true, Default: []string(nil)},
	}, svc.Params())
}

func TestTyped_Call(t *testing.T) {
	svc, err := NewService(TypedWithDefaults(greetArgs{Times: 1, Timeout: time.Second}, greet))
	require.NoError(t, err)

	tests := []struct {
		name string
		args Args
		want greetArgs
	}{
		{
			name: "defaults",
			args: Args{"name": "alex"},
			want: greetArgs{Name: "alex", Times: 1, Timeout: time.Second},
		},
		{
			name: "json numbers and strings convert",
			args: Args{"name": "alex", "times": float64(2), "timeout": "250ms", "tags": []any{"a", "b"}},
			want: greetArgs{Name: "alex", Times: 2, Timeout: 250 * time.Millisecond, Tags: []string{"a", "b"}},
		},
		{
			name: "explicit null zeroes the field",
			args: Args{"name": "alex", "loud": nil},
			want: greetArgs{Name: "alex", Times: 1, Timeout: time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Call(context.Background(), nil, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTyped_Errors(t *testing.T) {
	svc, err := NewService(TypedWithDefaults(greetArgs{Times: 1}, greet))
	require.NoError(t, err)

	tests := []struct {
		name     string
		args     Args
		wantKind string
		wantArg  string
		wantRule string
	}{
		{"missing", Args{}, KindMissingRequiredArgument, "name", ""},
		{"unknown", Args{"name": "a", "Skipped": "x"}, KindUnknownArgument, "Skipped", ""},
		{"wrong type", Args{"name": "a", "loud": "yes"}, KindInvalidArgument, "loud", ""},
		{"rule max", Args{"name": "a", "times": 4}, KindInvalidArgument, "times", "max"},
		{"rule min", Args{"name": ""}, KindInvalidArgument, "name", "min"},
		{"fractional number", Args{"name": "a", "times": 2.9}, KindInvalidArgument, "times", ""},
		{"number overflows", Args{"name": "a", "times": 1e20}, KindInvalidArgument, "times", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Call(context.Background(), nil, tt.args)
			require.Error(t, err)
			de, ok := err.(*Error)
			require.True(t, ok, "got %T: %v", err, err)
			assert.Equal(t, tt.wantKind, de.Kind())
			assert.Equal(t, tt.wantArg, de.Details()["arg"])
			if tt.wantRule != "" {
				assert.Equal(t, tt.wantRule, de.Details()["rule"])
			}
			if tt.wantKind == KindInvalidArgument && tt.wantRule == "" {
				assert.Contains(t, de.Details(), "reason")
			}
		})
	}
}

func TestTyped_InvalidSpecs(t *testing.T) {
	type dup struct {
		A string `arg:"a"`
		B string `arg:"a"`
	}

	tests := []struct {
		name string
		spec Spec
	}{
		{"nil func", Typed[greetArgs](nil)},
		{"non-struct", Typed(func(context.Context, *Context, int) (any, error) { return nil, nil })},
		{"duplicate arg", Typed(func(context.Context, *Context, dup) (any, error) { return nil, nil })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.spec)
			assert.Error(t, err)
		})
	}

	r := NewRegistry()
	assert.Error(t, r.Register("dup", Typed(func(context.Context, *Context, dup) (any, error) { return nil, nil })))
}

func TestTyped_DefaultsNotShared(t *testing.T) {
	svc, err := NewService(TypedWithDefaults(greetArgs{Times: 1, Tags: []string{"x"}}, func(_ context.Context, _ *Context, a greetArgs) (any, error) {
		a.Tags = append(a.Tags, "y")
		return len(a.Tags), nil
	}))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := svc.Call(context.Background(), nil, Args{"name": "a"})
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	}
}
