package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScientific(t *testing.T) {
	v, err := ParseScientific("SARA 2.00E+07Sa/s")
	require.NoError(t, err)
	assert.Equal(t, 2.0e7, v)

	// 通道号不能被当作数值
	v, err = ParseScientific("C1:OFST -1.50E-01V")
	require.NoError(t, err)
	assert.Equal(t, -0.15, v)

	v, err = ParseScientific("5.000000")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = ParseScientific("no number here")
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseNamedFields(t *testing.T) {
	fields := ParseNamedFields("PAVA FREQ,1.234E+03,PKPK,5.000E+00")
	assert.Equal(t, map[string]float64{"FREQ": 1234.0, "PKPK": 5.0}, fields)

	fields = ParseNamedFields("C1:PAVA MAX,1.00E+00V,MIN,-1.00E+00V,RISE,****")
	assert.Equal(t, map[string]float64{"MAX": 1.0, "MIN": -1.0}, fields)

	fields = ParseNamedFields("C1:PAVA ****")
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func TestParseState(t *testing.T) {
	on, err := ParseState("C1:TRA ON\n")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = ParseState("OFF")
	require.NoError(t, err)
	assert.False(t, on)

	_, err = ParseState("ERR")
	assert.ErrorIs(t, err, ErrUnrecognizedState)

	assert.Equal(t, "ON", FormatState(true))
	assert.Equal(t, "OFF", FormatState(false))
}

func TestSplitQuoted(t *testing.T) {
	fields := SplitQuoted("\"SIN,1000.0,5.0,0.0,0.0\"\n")
	assert.Equal(t, []string{"SIN", "1000.0", "5.0", "0.0", "0.0"}, fields)
}
