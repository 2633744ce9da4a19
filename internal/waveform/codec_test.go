package waveform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instrument-control/internal/scpi"
)

func TestEncodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(5000)
		scale := math.Pow(10, float64(rng.Intn(6)-3))
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = (rng.Float64()*2 - 1) * scale
		}

		codes, high, low, err := Encode(samples)
		if high == low {
			continue
		}
		require.NoError(t, err)
		require.Len(t, codes, n)

		step := (high - low) / DACMax
		volts := DecodeDAC(codes, high, low)
		for i := range samples {
			assert.LessOrEqual(t, codes[i], uint16(DACMax))
			assert.InDelta(t, samples[i], volts[i], step)
		}
	}
}

func TestEncodeRange(t *testing.T) {
	samples := []float64{1, 2, 3, 2, 1, -1, -4}

	codes, high, low, err := Encode(samples)
	require.NoError(t, err)
	assert.Equal(t, 3.0, high)
	assert.Equal(t, -4.0, low)
	assert.Equal(t, uint16(DACMax), codes[2])
	assert.Equal(t, uint16(0), codes[6])
	assert.Equal(t, uint16(11702), codes[0])
}

func TestEncodeInvalid(t *testing.T) {
	_, _, _, err := Encode([]float64{0.5, 0.5, 0.5})
	assert.ErrorIs(t, err, scpi.ErrInvalidWaveform)

	_, _, _, err = Encode(nil)
	assert.ErrorIs(t, err, scpi.ErrInvalidWaveform)

	_, _, _, err = Encode([]float64{0, math.NaN(), 1})
	assert.ErrorIs(t, err, scpi.ErrInvalidWaveform)

	codes, _, _, err := Encode([]float64{-math.MaxFloat64, 0, math.MaxFloat64})
	assert.ErrorIs(t, err, scpi.ErrInvalidWaveform)
	assert.Nil(t, codes)
}

func TestChunks(t *testing.T) {
	for _, n := range []int{1, 100, ChunkSize, ChunkSize + 1, 3*ChunkSize + 17} {
		codes := make([]uint16, n)
		chunks := Chunks(codes, ChunkSize)

		require.Len(t, chunks, (n+ChunkSize-1)/ChunkSize, "n=%d", n)

		total := 0
		for i, c := range chunks {
			if i == len(chunks)-1 {
				assert.Equal(t, TagEnd, c.Tag)
			} else {
				assert.Equal(t, TagContinue, c.Tag)
				assert.Len(t, c.Codes, ChunkSize)
			}
			total += len(c.Codes)
		}
		assert.Equal(t, n, total)
	}
}

func TestPackDAC16(t *testing.T) {
	data := PackDAC16([]uint16{1, DACMax, 0x0a0b})
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0x3f, 0x0b, 0x0a}, data)
	assert.Equal(t, []uint16{1, DACMax, 0x0a0b}, UnpackDAC16(data))
}

func TestDecode(t *testing.T) {
	codes := SignedCodes([]byte{0xe7, 0x00, 0x19})
	assert.Equal(t, []int8{-25, 0, 25}, codes)

	w, err := Decode(codes, 2.0, 0.5, 1e3, -1e-3)
	require.NoError(t, err)
	require.Equal(t, 3, w.Len())

	assert.InDeltaSlice(t, []float64{-2.5, -0.5, 1.5}, w.Voltage, 1e-12)
	assert.InDeltaSlice(t, []float64{-1e-3, 0, 1e-3}, w.Time, 1e-12)

	assert.Equal(t, "s", w.XUnit)
	assert.Equal(t, "Time", w.XName)
	assert.Equal(t, "V", w.YUnit)
	assert.Equal(t, "Samples", w.YName)
	assert.Equal(t, 1e3, w.SampleRate)
	assert.Equal(t, -1e-3, w.TriggerOffset)

	_, err = Decode(codes, 2.0, 0, 0, 0)
	assert.ErrorIs(t, err, scpi.ErrInvalidWaveform)
}
