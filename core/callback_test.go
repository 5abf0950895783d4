package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallback_Modes(t *testing.T) {
	tests := []struct {
		name string
		cfg  CallbackConfig
		want error
	}{
		{"thru", CallbackConfig{Mode: ModeThru, Gain: 1}, nil},
		{"tone", CallbackConfig{Mode: ModeTone, ToneHz: 440, Gain: 0.5}, nil},
		{"silence", CallbackConfig{Mode: ModeSilence}, nil},
		{"empty means silence", CallbackConfig{}, nil},
		{"tone above nyquist", CallbackConfig{Mode: ModeTone, ToneHz: 30000}, ErrInvalidTone},
		{"tone without frequency", CallbackConfig{Mode: ModeTone}, ErrInvalidTone},
		{"unknown", CallbackConfig{Mode: "noise"}, ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := NewCallback(tt.cfg, 48000)
			if tt.want == nil {
				require.NoError(t, err)
				assert.NotNil(t, cb)
			} else {
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, cb)
			}
		})
	}
}

func TestThru(t *testing.T) {
	cb, err := NewCallback(CallbackConfig{Mode: ModeThru, Gain: 0.5}, 48000)
	require.NoError(t, err)

	in := [][]float32{{1, 2}, {3, 4}}
	out := [][]float32{{9, 9}, {9, 9}, {9, 9}, nil}
	cb(0, in, 2, out, 4, 2)
	assert.Equal(t, []float32{0.5, 1}, out[0])
	assert.Equal(t, []float32{1.5, 2}, out[1])
	assert.Equal(t, []float32{0.5, 1}, out[2], "inputs wrap around")

	out = [][]float32{{9, 9}}
	cb(0, nil, 0, out, 1, 2)
	assert.Equal(t, []float32{0, 0}, out[0])
}

func TestTone_PhaseContinuesAcrossCalls(t *testing.T) {
	const rate = 8000
	cb, err := NewCallback(CallbackConfig{Mode: ModeTone, ToneHz: 1000, Gain: 1}, rate)
	require.NoError(t, err)

	first := [][]float32{make([]float32, 3), make([]float32, 3)}
	second := [][]float32{make([]float32, 3)}
	cb(0, nil, 0, first, 2, 3)
	cb(0, nil, 0, second, 1, 3)

	assert.Equal(t, first[0], first[1])
	step := 2 * math.Pi * 1000 / rate
	for i, v := range append(first[0], second[0]...) {
		assert.InDelta(t, math.Sin(step*float64(i)), v, 1e-5, "sample %d", i)
	}
}

func TestSilence(t *testing.T) {
	cb, err := NewCallback(CallbackConfig{Mode: ModeSilence}, 48000)
	require.NoError(t, err)
	out := [][]float32{{1, 1, 1}, nil}
	cb(0, nil, 0, out, 2, 2)
	assert.Equal(t, []float32{0, 0, 1}, out[0])
}

func TestCallbacksDoNotAllocate(t *testing.T) {
	in := [][]float32{make([]float32, 256)}
	out := [][]float32{make([]float32, 256), make([]float32, 256)}
	for _, mode := range []string{ModeThru, ModeTone, ModeSilence} {
		cb, err := NewCallback(CallbackConfig{Mode: mode, ToneHz: 440, Gain: 1}, 48000)
		require.NoError(t, err)
		allocs := testing.AllocsPerRun(50, func() { cb(0, in, 1, out, 2, 256) })
		assert.Zero(t, allocs, mode)
	}
}
