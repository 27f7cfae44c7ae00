package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/dispatchd/internal/config"
	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
	"github.com/fyrsmithlabs/dispatchd/internal/logging"
)

func newTestProcessor(t *testing.T, catchAll bool) (*dispatch.Processor, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger()
	cat, err := NewCatalog(Options{
		Tokens: map[string]config.Secret{"alex": "s3cret", "sam": "hunter2"},
		Logger: tl.Logger,
	})
	require.NoError(t, err)

	p, err := dispatch.NewProcessor(cat.Stages(), dispatch.WithCatchAll(catchAll), dispatch.WithLogger(tl.Logger))
	require.NoError(t, err)
	return p, tl
}

func TestCatalog_Requests(t *testing.T) {
	tests := []struct {
		name string
		req  dispatch.Request
		want dispatch.Response
	}{
		{
			name: "simple auth upper-cased",
			req: dispatch.Request{
				"main": {Service: "whoami", Args: dispatch.Args{"all_caps": true}},
				"auth": {Service: "simple_auth", Args: dispatch.Args{"username": "alex"}},
			},
			want: dispatch.Response{Result: "ALEX"},
		},
		{
			name: "whoami defaults to original case",
			req: dispatch.Request{
				"auth": {Service: "simple_auth", Args: dispatch.Args{"username": "alex"}},
				"main": {Service: "whoami"},
			},
			want: dispatch.Response{Result: "alex"},
		},
		{
			name: "token auth",
			req: dispatch.Request{
				"auth": {Service: "token_auth", Args: dispatch.Args{"token": "hunter2"}},
				"main": {Service: "whoami"},
			},
			want: dispatch.Response{Result: "sam"},
		},
		{
			name: "bad token",
			req: dispatch.Request{
				"auth": {Service: "token_auth", Args: dispatch.Args{"token": "nope"}},
				"main": {Service: "whoami"},
			},
			want: dispatch.Response{Error: KindAuthError, Details: map[string]any{"msg": "invalid token"}},
		},
		{
			name: "anonymous whoami",
			req:  dispatch.Request{"main": {Service: "whoami"}},
			want: dispatch.Response{Error: KindAuthError, Details: map[string]any{"msg": "not authenticated"}},
		},
		{
			name: "unknown service",
			req: dispatch.Request{
				"auth": {Service: "simple_auth", Args: dispatch.Args{"username": "alex"}},
				"main": {Service: "does_not_exist"},
			},
			want: dispatch.Response{
				Error:   dispatch.KindUnknownService,
				Details: map[string]any{"service": "does_not_exist"},
			},
		},
		{
			name: "missing username",
			req:  dispatch.Request{"auth": {Service: "simple_auth"}},
			want: dispatch.Response{
				Error:   dispatch.KindMissingRequiredArgument,
				Details: map[string]any{"arg": "username"},
			},
		},
		{
			name: "echo default repeat",
			req:  dispatch.Request{"main": {Service: "echo", Args: dispatch.Args{"message": "hi"}}},
			want: dispatch.Response{Result: "hi"},
		},
		{
			name: "echo repeat from json number",
			req:  dispatch.Request{"main": {Service: "echo", Args: dispatch.Args{"message": "hi", "repeat": float64(3)}}},
			want: dispatch.Response{Result: "hi hi hi"},
		},
		{
			name: "echo repeat out of range",
			req:  dispatch.Request{"main": {Service: "echo", Args: dispatch.Args{"message": "hi", "repeat": 11}}},
			want: dispatch.Response{
				Error:   dispatch.KindInvalidArgument,
				Details: map[string]any{"arg": "repeat", "rule": "max"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t, false)
			got, err := p.Process(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_EchoRepeatMustBeInteger(t *testing.T) {
	p, _ := newTestProcessor(t, false)
	for _, repeat := range []float64{2.9, 1e20} {
		got, err := p.Process(context.Background(), dispatch.Request{
			"main": {Service: "echo", Args: dispatch.Args{"message": "hi", "repeat": repeat}},
		})
		require.NoError(t, err)
		assert.Equal(t, dispatch.KindInvalidArgument, got.Error, "repeat %v", repeat)
		assert.Equal(t, "repeat", got.Details["arg"])
		assert.Contains(t, got.Details, "reason")
	}
}

func TestCatalog_Fail(t *testing.T) {
	req := dispatch.Request{"main": {Service: "fail"}}

	t.Run("propagates without catch-all", func(t *testing.T) {
		p, _ := newTestProcessor(t, false)
		_, err := p.Process(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrServiceFailed))

		var se *dispatch.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, MainRegistry, se.Registry)
		assert.Equal(t, "fail", se.Service)
	})

	t.Run("generic error with catch-all", func(t *testing.T) {
		p, tl := newTestProcessor(t, true)
		got, err := p.Process(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, dispatch.Response{Error: dispatch.KindGenericInternalError}, got)
		assert.Nil(t, got.Details)
		tl.AssertLogged(t, zapcore.ErrorLevel, "generic internal error")
	})
}

func TestCatalog_TokenNeverLogged(t *testing.T) {
	p, tl := newTestProcessor(t, false)
	_, err := p.Process(context.Background(), dispatch.Request{
		"auth": {Service: "token_auth", Args: dispatch.Args{"token": "not-a-token"}},
	})
	require.NoError(t, err)

	tl.AssertLogged(t, zapcore.InfoLevel, "token rejected")
	tl.AssertNoSecrets(t)
	for _, e := range tl.All() {
		for _, f := range e.Context {
			assert.NotEqual(t, "not-a-token", f.String)
		}
	}
}

func TestCatalog_TokensCopied(t *testing.T) {
	tokens := map[string]config.Secret{"alex": "s3cret"}
	cat, err := NewCatalog(Options{Tokens: tokens})
	require.NoError(t, err)
	delete(tokens, "alex")

	p, err := dispatch.NewProcessor(cat.Stages())
	require.NoError(t, err)
	got, err := p.Process(context.Background(), dispatch.Request{
		"auth": {Service: "token_auth", Args: dispatch.Args{"token": "s3cret"}},
	})
	require.NoError(t, err)
	assert.Equal(t, dispatch.Response{Result: nil}, got, "main default returns nil after auth succeeds")
}

func TestCatalog_Describe(t *testing.T) {
	cat, err := NewCatalog(Options{})
	require.NoError(t, err)

	got := cat.Describe()
	require.Len(t, got, 2)

	assert.Equal(t, AuthRegistry, got[0].Name)
	assert.Equal(t, []ServiceInfo{
		{Name: "simple_auth", Required: []string{"username"}},
		{Name: "system_auth"},
		{Name: "token_auth", Required: []string{"token"}},
		{Name: DefaultServiceName},
	}, got[0].Services)

	assert.Equal(t, MainRegistry, got[1].Name)
	assert.Equal(t, []ServiceInfo{
		{Name: "echo", Required: []string{"message"}, Optional: []ParamInfo{{Name: "repeat", Default: 1}}},
		{Name: "fail"},
		{Name: "owner_id"},
		{Name: "whoami", Optional: []ParamInfo{{Name: "all_caps", Default: false}}},
		{Name: DefaultServiceName},
	}, got[1].Services)
}
