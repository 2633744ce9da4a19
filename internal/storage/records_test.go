package storage

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instrument-control/internal/waveform"
	"instrument-control/pkg/protocol"
)

func TestNewWaveformRecord(t *testing.T) {
	w, err := waveform.Decode([]int8{-25, 25}, 1, 0, 1e6, 0)
	require.NoError(t, err)

	rec := NewWaveformRecord("192.168.1.16", 1, w)
	_, err = uuid.Parse(rec.ID)
	assert.NoError(t, err)
	assert.Equal(t, protocol.KindWaveform, rec.Kind)
	assert.Equal(t, 1, rec.Channel)
	require.NotNil(t, rec.Waveform)
	assert.InDeltaSlice(t, []float64{-1, 1}, rec.Waveform.Voltage, 1e-12)
	assert.Equal(t, "Time", rec.Waveform.XName)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sample_rate":1000000`)
	assert.NotContains(t, string(data), `"measurements"`)
}

func TestNewMeasurementRecord(t *testing.T) {
	rec := NewMeasurementRecord("scope", 0, map[string]float64{"FREQ": 1000})
	assert.Equal(t, protocol.KindMeasurements, rec.Kind)
	assert.Nil(t, rec.Waveform)
	assert.Equal(t, 1000.0, rec.Measurements["FREQ"])

	other := NewMeasurementRecord("scope", 0, nil)
	assert.NotEqual(t, rec.ID, other.ID)
}

func TestListKey(t *testing.T) {
	assert.Equal(t, "instrument:192.168.1.16:captures", listKey("192.168.1.16"))
	assert.Equal(t, int64(1000), historyLimit(0))
	assert.Equal(t, int64(50), historyLimit(50))
}
