package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v any) Spec {
	return NewSpec(func(context.Context, *Context, Args) (any, error) {
		return v, nil
	})
}

func TestRegistry_DefaultIsNoop(t *testing.T) {
	r := NewRegistry()

	got, err := r.Process(context.Background(), NewContext(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = r.Process(context.Background(), NewContext(), "", Args{"x": 1})
	assert.True(t, IsKind(err, KindUnknownArgument), "no-op default declares no params")
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("one", constant(1)))
	require.NoError(t, r.RegisterDefault(constant("dflt")))

	svc, ok := r.Lookup("one")
	require.True(t, ok)
	assert.NotNil(t, svc)

	def, ok := r.Lookup("")
	require.True(t, ok)
	assert.Same(t, r.Default(), def)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_Process(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("one", constant(1))
	r.MustRegisterDefault(constant("dflt"))

	got, err := r.Process(context.Background(), nil, "one", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = r.Process(context.Background(), nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "dflt", got)

	_, err = r.Process(context.Background(), nil, "nope", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnknownService))
	de := err.(*Error)
	assert.Equal(t, map[string]any{"service": "nope"}, de.Details())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("svc", constant(1))
	r.MustRegister("svc", constant(2))

	got, err := r.Process(context.Background(), nil, "svc", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, []string{"svc"}, r.Names())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", constant(1)), ErrEmptyServiceName)
	assert.ErrorIs(t, r.Register("x", NewSpec(nil)), ErrNilFunc)
	assert.ErrorIs(t, r.RegisterDefault(NewSpec(nil)), ErrNilFunc)

	assert.Panics(t, func() { r.MustRegister("", constant(1)) })
	assert.Panics(t, func() { r.MustRegisterDefault(NewSpec(nil)) })
}

func TestRegistry_NamesSortedWithoutDefault(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		r.MustRegister(name, constant(name))
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
}
