package blog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		total     int64
		wantPage  int
		wantPages int
	}{
		{"first page", 1, 25, 1, 3},
		{"middle page", 2, 25, 2, 3},
		{"last page", 3, 25, 3, 3},
		{"beyond last clamps to last", 99, 25, 3, 3},
		{"zero clamps to first", 0, 25, 1, 3},
		{"negative clamps to first", -5, 25, 1, 3},
		{"exact multiple", 2, 20, 2, 2},
		{"empty set has one page", 1, 0, 1, 1},
		{"empty set with wild page", 42, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pages := ClampPage(tt.page, tt.total, DefaultPageSize)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPages, pages)
		})
	}
}

func TestNewListing(t *testing.T) {
	l := newListing(nil, 25, 2, DefaultPageSize)
	assert.Equal(t, 2, l.Page)
	assert.Equal(t, 3, l.TotalPages)
	assert.True(t, l.HasNext)
	assert.True(t, l.HasPrevious)

	l = newListing(nil, 25, 1, DefaultPageSize)
	assert.False(t, l.HasPrevious)
	assert.True(t, l.HasNext)

	l = newListing(nil, 25, 3, DefaultPageSize)
	assert.True(t, l.HasPrevious)
	assert.False(t, l.HasNext)

	l = newListing(nil, 0, 1, DefaultPageSize)
	assert.Equal(t, 1, l.Page)
	assert.Equal(t, 1, l.TotalPages)
	assert.False(t, l.HasNext)
	assert.False(t, l.HasPrevious)
}
