package scope

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instrument-control/internal/scpi"
	"instrument-control/internal/transport"
)

func newTestScope(t *testing.T, m *transport.Mock) *SiglentSDS {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	m.Reply("*IDN?", "Siglent Technologies,SDS1202X-E,SDSMMEBX000001,1.3.26")
	dev, err := New(m, "scope", log)
	require.NoError(t, err)
	return dev
}

func channel(t *testing.T, dev *SiglentSDS, i int) *Channel {
	t.Helper()
	ch, err := dev.Channel(i)
	require.NoError(t, err)
	return ch
}

func TestPhaseDelay(t *testing.T) {
	m := transport.NewMock().Reply("C1-C2:MEAD? PHA", "C1-C2:MEAD PHA,12.5degree\n", "C1-C2:MEAD FRR,1.00E-06S\n")
	dev := newTestScope(t, m)

	v, err := dev.PhaseDelay()
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = dev.PhaseDelay()
	assert.ErrorIs(t, err, scpi.ErrParse)
}

func TestParsePhaseDelay(t *testing.T) {
	v, err := parsePhaseDelay("C1-C2:MEAD PHA,-45degree")
	require.NoError(t, err)
	assert.Equal(t, -45.0, v)

	_, err = parsePhaseDelay("C1-C2:MEAD ****")
	assert.ErrorIs(t, err, scpi.ErrParse)
}

func TestTimeDelay(t *testing.T) {
	m := transport.NewMock().Reply("C1-C2:MEAD? FRR", "C1-C2:MEAD FRR,2.50E-04S")

	v, err := newTestScope(t, m).TimeDelay()
	require.NoError(t, err)
	assert.Equal(t, 2.5e-4, v)
}

func TestDeviceSettings(t *testing.T) {
	m := transport.NewMock().
		Reply("SARA?", "SARA 2.00E+07Sa/s").
		Reply("TRDL?", "TRDL -1.00E-03S").
		Reply("TDIV?", "TDIV 5.00E-04S").
		Reply("WFSU?", "WFSU SP,0,NP,0,FP,0")
	dev := newTestScope(t, m)

	rate, err := dev.SampleRate()
	require.NoError(t, err)
	assert.Equal(t, 2e7, rate)

	trig, err := dev.TriggerOffset()
	require.NoError(t, err)
	assert.Equal(t, -1e-3, trig)

	tdiv, err := dev.TimeDiv()
	require.NoError(t, err)
	assert.Equal(t, 5e-4, tdiv)

	setup, err := dev.WaveformSetup()
	require.NoError(t, err)
	assert.Equal(t, []string{"WFSU", "SP,0,NP,0,FP,0"}, setup)

	require.NoError(t, dev.SetTimeDiv(1e-4))
	require.NoError(t, dev.SetTriggerOffset(0))
	cmds := m.Commands()
	assert.Equal(t, []string{"TDIV 1.000000E-04", "TRDL 0.000000E+00"}, cmds[len(cmds)-2:])
}

func TestChannelAccessors(t *testing.T) {
	m := transport.NewMock().
		Reply("C2:TRA?", "C2:TRA ON", "C2:TRA ERR").
		Reply("C2:OFST?", "C2:OFST -2.50E-01V").
		Reply("C2:SKEW?", "C2:SKEW 1.00E-09S").
		Reply("C2:VOLT_DIV?", "C2:VOLT_DIV 5.00E-01V")
	ch := channel(t, newTestScope(t, m), 1)

	on, err := ch.Enabled()
	require.NoError(t, err)
	assert.True(t, on)
	_, err = ch.Enabled()
	assert.ErrorIs(t, err, scpi.ErrUnrecognizedState)

	off, err := ch.Offset()
	require.NoError(t, err)
	assert.Equal(t, -0.25, off)

	skew, err := ch.Skew()
	require.NoError(t, err)
	assert.Equal(t, 1e-9, skew)

	vdiv, err := ch.VoltsPerDiv()
	require.NoError(t, err)
	assert.Equal(t, 0.5, vdiv)

	require.NoError(t, ch.SetEnabled(false))
	require.NoError(t, ch.SetOffset(0.1))
	require.NoError(t, ch.SetSkew(1e-9))
	require.NoError(t, ch.SetVoltsPerDiv(0.5))

	cmds := m.Commands()
	assert.Equal(t, []string{
		"C2:TRA OFF",
		"C2:OFST 0.100000",
		"C2:SKEW 1.000000E-09",
		"C2:VOLT_DIV 5.000000E-01",
	}, cmds[len(cmds)-4:])
}

func TestMeasurements(t *testing.T) {
	m := transport.NewMock().
		Reply("C1:PAVA? ALL", "C1:PAVA FREQ,1.234E+03,PKPK,5.000E+00\n").
		Reply("C2:PAVA? ALL", "C2:PAVA ****\n")
	dev := newTestScope(t, m)

	values, err := channel(t, dev, 0).Measurements()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"FREQ": 1234.0, "PKPK": 5.0}, values)

	values, err = channel(t, dev, 1).Measurements()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestWaveform(t *testing.T) {
	m := transport.NewMock().
		Block("C1:WF? DAT2", []byte{0xe7, 0x00, 0x19}).
		Reply("C1:OFST?", "C1:OFST 5.00E-01V").
		Reply("C1:VOLT_DIV?", "C1:VOLT_DIV 2.00E+00V").
		Reply("SARA?", "SARA 1.00E+03Sa/s").
		Reply("TRDL?", "TRDL -1.00E-03S")
	ch := channel(t, newTestScope(t, m), 0)

	w, err := ch.Waveform()
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{-2.5, -0.5, 1.5}, w.Voltage, 1e-12)
	assert.InDeltaSlice(t, []float64{-1e-3, 0, 1e-3}, w.Time, 1e-12)
	assert.Equal(t, 2.0, w.VoltsPerDiv)
	assert.Equal(t, 0.5, w.VoltOffset)

	assert.Equal(t, []string{"C1:WF? DAT2", "C1:OFST?", "C1:VOLT_DIV?", "SARA?", "TRDL?"}, m.Commands()[1:])
}

func TestWaveformReadFailure(t *testing.T) {
	m := transport.NewMock().Fail("C1:WF? DAT2", io.ErrUnexpectedEOF)
	ch := channel(t, newTestScope(t, m), 0)

	_, err := ch.Waveform()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestChannelRange(t *testing.T) {
	dev := newTestScope(t, transport.NewMock())
	assert.Len(t, dev.Channels(), NumChannels)

	_, err := dev.Channel(2)
	assert.ErrorIs(t, err, scpi.ErrConfiguration)
}
