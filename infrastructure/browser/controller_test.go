package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSliceTimeout(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      float64
		ok        bool
	}{
		{-5 * time.Millisecond, 0, false},
		{0, 0, false},
		{400 * time.Microsecond, 1, true},
		{1500 * time.Microsecond, 1, true},
		{120 * time.Millisecond, 120, true},
		{10 * time.Second, 250, true},
	}
	for _, tt := range tests {
		got, ok := sliceTimeout(tt.remaining, waitSlice)
		assert.Equal(t, tt.ok, ok, tt.remaining)
		assert.Equal(t, tt.want, got, tt.remaining)
	}
}
