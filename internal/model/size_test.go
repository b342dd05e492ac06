package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
		ok   bool
	}{
		{"1280x720", Size{1280, 720}, true},
		{" 720X1280 ", Size{720, 1280}, true},
		{"720 x 1280", Size{720, 1280}, true},
		{"1280", Size{}, false},
		{"x720", Size{}, false},
		{"0x720", Size{}, false},
		{"-1x720", Size{}, false},
		{"wide", Size{}, false},
		{"", Size{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSizeOrientation(t *testing.T) {
	assert.Equal(t, Portrait, Size{720, 1280}.Orientation())
	assert.Equal(t, Landscape, Size{1280, 720}.Orientation())
	assert.Equal(t, Square, Size{1024, 1024}.Orientation())
}

func TestSizeString(t *testing.T) {
	s := Size{1792, 1024}
	assert.Equal(t, "1792x1024", s.String())
	parsed, err := ParseSize(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
	assert.InDelta(t, 1.75, s.Ratio(), 1e-9)
}
