package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instrument-control/internal/config"
	"instrument-control/internal/simulator"
	"instrument-control/internal/waveform"
	"instrument-control/pkg/protocol"
)

func TestReadSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2.5\n-3e-1,\n\n4\n"), 0644))

	samples, err := readSamples(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -0.3, 4}, samples)

	require.NoError(t, os.WriteFile(path, []byte("1 x 2\n"), 0644))
	_, err = readSamples(path)
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	w, err := waveform.Decode([]int8{0, 25}, 1, 0, 1e3, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, w))
	assert.Equal(t, "Time (s),Samples (V)\n0,0\n0.001,1\n", buf.String())
}

func TestParseState(t *testing.T) {
	on, err := parseState("on")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = parseState("OFF")
	require.NoError(t, err)
	assert.False(t, on)

	_, err = parseState("maybe")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	log := setupLogger(config.LogConfig{Level: "warn", Format: "text"}, false)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log = setupLogger(config.LogConfig{Level: "warn", Format: "json"}, true)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	path := filepath.Join(t.TempDir(), "benchctl.log")
	log = setupLogger(config.LogConfig{Level: "bogus", Output: "file", FilePath: path}, false)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

func TestPrintMeasurements(t *testing.T) {
	var buf bytes.Buffer
	printMeasurements(&buf, 1, map[string]float64{"PKPK": 2, "FREQ": 1000})
	assert.Equal(t, "CH2\n  FREQ     1000\n  PKPK     2\n", buf.String())
}

func TestScopeMeasureAllPublishesBatch(t *testing.T) {
	mr := miniredis.RunT(t)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	sim := simulator.NewScope("")
	sim.SetMeasurements(1, map[string]float64{"FREQ": 50})
	sim.SetMeasurements(2, map[string]float64{"FREQ": 60})
	srv := simulator.NewServer(config.SimulatorConfig{Host: "127.0.0.1", ReadTimeout: 100 * time.Millisecond}, sim, quiet)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	cfg = config.GetDefaultConfig()
	cfg.Scope.Timeout = time.Second
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	log = quiet

	scopeAddr, scopeAll, scopePublish = srv.Addr(), true, true
	t.Cleanup(func() { scopeAddr, scopeAll, scopePublish = "", false, false })

	cmdScopeMeasure.SetContext(context.Background())
	require.NoError(t, runScopeMeasure(cmdScopeMeasure, nil))

	entries, err := mr.List("instrument:" + srv.Addr() + ":captures")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var newest protocol.CaptureRecord
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &newest))
	assert.Equal(t, 1, newest.Channel)
	assert.Equal(t, map[string]float64{"FREQ": 60}, newest.Measurements)
}
