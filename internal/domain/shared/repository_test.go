package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterNormalize(t *testing.T) {
	tests := []struct {
		name         string
		page         int
		pageSize     int
		wantPage     int
		wantPageSize int
	}{
		{"defaults applied", 0, 0, 1, DefaultPageSize},
		{"negative page", -3, 10, 1, 10},
		{"oversized page clamped", 2, MaxPageSize + 50, 2, MaxPageSize},
		{"in range untouched", 4, 25, 4, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Filter{Page: tt.page, PageSize: tt.pageSize}
			f.Normalize()
			assert.Equal(t, tt.wantPage, f.Page)
			assert.Equal(t, tt.wantPageSize, f.PageSize)
		})
	}
}

func TestFilterOffset(t *testing.T) {
	f := Filter{Page: 3, PageSize: 20}
	assert.Equal(t, 40, f.Offset())

	first := Filter{Page: 1, PageSize: 50}
	assert.Equal(t, 0, first.Offset())
}
