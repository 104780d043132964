package embeddings

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	src := map[string][]float64{"b": {1, 2}, "a": {3, 4}}
	table, err := NewTable(src)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Dimension())
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"a", "b"}, table.Names())

	v, err := table.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, v)

	// copies on the way in and out
	src["a"][0] = 100
	v[1] = 100
	again, err := table.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, again)

	_, err = table.Embed(context.Background(), "c")
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestNewTableRejectsRaggedVectors(t *testing.T) {
	_, err := NewTable(map[string][]float64{"a": {1}, "b": {1, 2}})
	require.Error(t, err)
}
