package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeduel/internal/domain"
)

func TestCatalogInfo(t *testing.T) {
	info := CatalogInfo()
	require.Len(t, info, len(domain.Catalog()))
	total := 0
	for _, c := range info {
		assert.NotEmpty(t, c.ID)
		assert.Positive(t, c.Count)
		total += c.Count
	}
	assert.Equal(t, len(domain.NewDeck(nil).Draw(1000)), total)
}

func TestQueryInsertions(t *testing.T) {
	res, err := QueryInsertions(InsertionQuery{Hand: []string{"x", "for"}})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Slots)
	assert.ElementsMatch(t, []string{"x", "for"}, res.Playable[0])
	assert.Equal(t, "", res.Code)

	again, err := QueryInsertions(InsertionQuery{Hand: []string{"x", "for"}})
	require.NoError(t, err)
	assert.Equal(t, res, again)

	zero := 0
	one := 1
	_, err = QueryInsertions(InsertionQuery{Hand: []string{"x"}, Index: &one})
	assert.ErrorIs(t, err, ErrInvalidMove)

	single, err := QueryInsertions(InsertionQuery{Hand: []string{"x"}, Index: &zero})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, single.Slots)

	_, err = QueryInsertions(InsertionQuery{Hand: []string{"nope"}})
	assert.ErrorIs(t, err, ErrInvalidMove)
	_, err = QueryInsertions(InsertionQuery{Sequence: []string{"nope"}})
	assert.ErrorIs(t, err, ErrInvalidMove)
}
