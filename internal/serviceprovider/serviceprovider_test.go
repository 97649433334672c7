package serviceprovider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct{ name string }

func TestStatic_ResolveKnownAndUnknown(t *testing.T) {
	p := NewStatic(map[string]any{"widget": &widget{name: "w1"}})

	v, ok := p.Resolve("widget")
	require.True(t, ok)
	require.Equal(t, "w1", v.(*widget).name)

	_, ok = p.Resolve("missing")
	require.False(t, ok)
}

func TestStatic_CreateScope_ResolvesSameRegistrations(t *testing.T) {
	p := NewStatic(map[string]any{"widget": &widget{name: "w1"}})

	scope, err := p.CreateScope()
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Close()) }()

	v, ok := scope.Resolve("widget")
	require.True(t, ok)
	require.Equal(t, "w1", v.(*widget).name)
}

func TestStatic_CopiesInputMap(t *testing.T) {
	src := map[string]any{"widget": 1}
	p := NewStatic(src)
	src["widget"] = 2

	v, _ := p.Resolve("widget")
	require.Equal(t, 1, v)
}
