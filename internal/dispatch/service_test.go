package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoArgs returns the bound arguments so tests can inspect binding.
func echoArgs(_ context.Context, _ *Context, args Args) (any, error) {
	return args, nil
}

func TestNewService_InvalidParams(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr error
	}{
		{"nil func", NewSpec(nil), ErrNilFunc},
		{"empty param name", NewSpec(echoArgs, Required("")), ErrInvalidParams},
		{"duplicate param", NewSpec(echoArgs, Required("a"), Optional("a", 1)), ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.spec)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Signature(t *testing.T) {
	svc, err := NewService(NewSpec(echoArgs, Required("a"), Optional("b", 2), Required("c")))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, svc.Required())
	assert.Equal(t, []string{"a", "b", "c"}, svc.Allowed())
	assert.Equal(t, []Param{
		{Name: "a"},
		{Name: "b", Optional: true, Default: 2},
		{Name: "c"},
	}, svc.Params())

	req := svc.Required()
	req[0] = "mutated"
	assert.Equal(t, []string{"a", "c"}, svc.Required(), "returned slices are copies")
}

func TestService_Call(t *testing.T) {
	svc, err := NewService(NewSpec(echoArgs, Required("a"), Optional("b", "dflt")))
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    Args
		want    Args
		wantErr *Error
	}{
		{
			name: "default filled",
			args: Args{"a": 1},
			want: Args{"a": 1, "b": "dflt"},
		},
		{
			name: "explicit optional",
			args: Args{"a": 1, "b": "given"},
			want: Args{"a": 1, "b": "given"},
		},
		{
			name: "explicit nil is kept",
			args: Args{"a": nil},
			want: Args{"a": nil, "b": "dflt"},
		},
		{
			name:    "missing required",
			args:    Args{"b": "x"},
			wantErr: MissingRequiredArgument("a"),
		},
		{
			name:    "unknown argument",
			args:    Args{"a": 1, "zz": 1, "extra": 2},
			wantErr: UnknownArgument("extra"),
		},
		{
			name:    "missing reported before unknown",
			args:    Args{"zz": 1},
			wantErr: MissingRequiredArgument("a"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Call(context.Background(), NewContext(), tt.args)
			if tt.wantErr != nil {
				require.Error(t, err)
				var de DomainError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.wantErr.Kind(), de.Kind())
				assert.Equal(t, tt.wantErr.Details(), de.Details())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_CallDoesNotMutateArgs(t *testing.T) {
	svc, err := NewService(NewSpec(echoArgs, Optional("b", 2)))
	require.NoError(t, err)

	args := Args{}
	_, err = svc.Call(context.Background(), nil, args)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestService_CallPassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	svc, err := NewService(NewSpec(func(context.Context, *Context, Args) (any, error) {
		return nil, boom
	}))
	require.NoError(t, err)

	_, err = svc.Call(context.Background(), nil, Args{})
	assert.Same(t, boom, err)
}
