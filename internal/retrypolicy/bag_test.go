package retrypolicy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/jobsched/internal/execution"
)

func TestBag_ZeroValueHasNoExecutionOrDefinition(t *testing.T) {
	var b Bag
	_, ok := b.Execution()
	require.False(t, ok)
	_, ok = b.Definition()
	require.False(t, ok)
}

func TestBag_CarriesExecutionAndDefinition(t *testing.T) {
	ex := execution.New("ex-1", "def-1", "Def One", context.Background(), time.Unix(0, 0))
	def := DefinitionInfo{ID: "def-1", Name: "Def One"}
	b := NewBag(ex, def)

	gotEx, ok := b.Execution()
	require.True(t, ok)
	require.Same(t, ex, gotEx)

	gotDef, ok := b.Definition()
	require.True(t, ok)
	require.Equal(t, def, gotDef)
}
