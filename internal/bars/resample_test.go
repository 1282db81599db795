package bars

import (
	"testing"
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample_FiveMinute(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 2, 0, 0, brisbane)
	in := minuteBars(start, 8) // 09:02 .. 09:09

	out := Resample(in, 5*time.Minute)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, brisbane), first.Time)
	assert.Equal(t, in[0].Open, first.Open)
	assert.Equal(t, in[2].High, first.High)
	assert.Equal(t, in[0].Low, first.Low)
	assert.Equal(t, in[2].Close, first.Close)
	assert.Equal(t, int64(30), first.Volume)

	second := out[1]
	assert.Equal(t, time.Date(2024, 3, 4, 9, 5, 0, 0, brisbane), second.Time)
	assert.Equal(t, in[3].Open, second.Open)
	assert.Equal(t, in[7].Close, second.Close)
	assert.Equal(t, int64(50), second.Volume)

	// input untouched
	assert.Equal(t, start, in[0].Time)
}

func TestResample_KeepsGaps(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, brisbane)
	in := []core.Bar{
		{Time: start, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Time: start.Add(20 * time.Minute), Open: 1, High: 2, Low: 0.5, Close: 1.5},
	}
	out := Resample(in, 5*time.Minute)
	require.Len(t, out, 2)
	assert.Equal(t, start.Add(20*time.Minute), out[1].Time)
}

func TestResample_OneMinuteIsCopy(t *testing.T) {
	in := minuteBars(time.Date(2024, 3, 4, 9, 0, 0, 0, brisbane), 3)
	out := Resample(in, time.Minute)
	require.Equal(t, in, out)
	out[0].Close = 0
	assert.NotEqual(t, in[0].Close, out[0].Close)
}
