package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/pcm-vad/internal/audio"
	"github.com/skypro1111/pcm-vad/internal/config"
	"github.com/skypro1111/pcm-vad/internal/vad"
)

func testSetup(t *testing.T) (*config.Config, *vad.Processor, *slog.Logger, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Directory = filepath.Join(dir, "out")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	processor, err := vad.NewProcessor(processorConfig(cfg), vad.WithLogger(logger))
	require.NoError(t, err)

	return cfg, processor, logger, dir
}

// voiceInput is one silent packet followed by a short packet inside the voice band
func voiceInput() []byte {
	input := make([]byte, 200)
	for i := 160; i < 200; i++ {
		input[i] = 20
	}
	return input
}

func TestOutputPaths(t *testing.T) {
	cfg := config.Default().Output
	cfg.Directory = "outputdata"

	data, flags := outputPaths(cfg, "inputdata/inputaudio3.data")
	assert.Equal(t, filepath.Join("outputdata", "inputaudio3.vad.data"), data)
	assert.Equal(t, filepath.Join("outputdata", "inputaudio3.vad.txt"), flags)
}

func TestProcessFileRaw(t *testing.T) {
	cfg, processor, logger, dir := testSetup(t)

	input := filepath.Join(dir, "speech.data")
	require.NoError(t, os.WriteFile(input, voiceInput(), 0644))

	report, err := processFile(context.Background(), logger, cfg, processor, input)
	require.NoError(t, err)
	require.NotNil(t, report.Result)

	data, err := os.ReadFile(report.DataOutput)
	require.NoError(t, err)
	assert.Equal(t, voiceInput(), data)

	flags, err := os.ReadFile(report.FlagsOutput)
	require.NoError(t, err)
	assert.Equal(t, "11", string(flags))
}

func TestProcessFileMissingInputCreatesNoOutput(t *testing.T) {
	cfg, processor, logger, dir := testSetup(t)

	report, err := processFile(context.Background(), logger, cfg, processor, filepath.Join(dir, "missing.data"))
	require.Error(t, err)
	assert.Nil(t, report.Result)
	assert.Zero(t, report.Elapsed())

	_, statErr := os.Stat(report.DataOutput)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(report.FlagsOutput)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessFileWAV(t *testing.T) {
	cfg, processor, logger, dir := testSetup(t)
	cfg.Audio.InputFormat = "wav"
	cfg.Audio.OutputFormat = "wav"

	samples := audio.BytesToSamples(voiceInput())
	encoded, err := audio.EncodeWAV(samples, 8000)
	require.NoError(t, err)

	input := filepath.Join(dir, "speech.wav")
	require.NoError(t, os.WriteFile(input, encoded, 0644))

	report, err := processFile(context.Background(), logger, cfg, processor, input)
	require.NoError(t, err)

	data, err := os.ReadFile(report.DataOutput)
	require.NoError(t, err)

	decoded, rate, err := audio.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, samples, decoded)
}

func TestRootCommand(t *testing.T) {
	dir := t.TempDir()

	input := filepath.Join(dir, "quiet.data")
	require.NoError(t, os.WriteFile(input, make([]byte, 500), 0644))

	outDir := filepath.Join(dir, "out")
	reportPath := filepath.Join(dir, "report.json")
	metricsPath := filepath.Join(dir, "vad.prom")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--output-dir", outDir,
		"--look-ahead", "2",
		"--workers", "2",
		"--report", reportPath,
		"--metrics-textfile", metricsPath,
		"--log-level", "error",
		input,
	})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(outDir, "quiet.vad.data"))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 500), data)

	flags, err := os.ReadFile(filepath.Join(outDir, "quiet.vad.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0000", string(flags))

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var reports []FileReport
	require.NoError(t, json.Unmarshal(raw, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, uint64(4), reports[0].Result.PacketsEmitted)

	metricsText, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "vad_packets_classified_total 4")
}

func TestRootCommandConfigFile(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
vad:
  look_ahead: 0
  look_back: 0
  packet_size: 80
logging:
  level: error
`), 0644))

	// One voiced packet followed by three silent ones
	input := filepath.Join(dir, "onset.data")
	data := make([]byte, 320)
	for i := 0; i < 80; i++ {
		data[i] = 20
	}
	require.NoError(t, os.WriteFile(input, data, 0644))

	outDir := filepath.Join(dir, "out")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", configPath, "--look-back", "2", "--output-dir", outDir, input})
	require.NoError(t, cmd.Execute())

	// packet_size 80 from the file gives four flags; look_back 2 from the
	// command line carries the voiced packet two packets forward.
	flags, err := os.ReadFile(filepath.Join(outDir, "onset.vad.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1110", string(flags))
}

func TestLoadConfigFlagOverride(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("vad:\n  look_back: 0\n  look_ahead: 3\n"), 0644))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", configPath, "--look-back", "2"}))

	var flags cliFlags
	flags.configPath, _ = cmd.Flags().GetString("config")
	flags.lookBack, _ = cmd.Flags().GetInt("look-back")

	cfg, err := loadConfig(cmd, &flags)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.VAD.LookBack)
	assert.Equal(t, 3, cfg.VAD.LookAhead)
}

func TestProcessFileRefusesToOverwriteInput(t *testing.T) {
	cfg, processor, logger, dir := testSetup(t)
	cfg.Output.Directory = dir
	cfg.Output.DataSuffix = ".data"

	input := filepath.Join(dir, "speech.data")
	require.NoError(t, os.WriteFile(input, voiceInput(), 0644))

	report, err := processFile(context.Background(), logger, cfg, processor, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would overwrite input")
	assert.Nil(t, report.Result)

	data, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, voiceInput(), data)

	_, statErr := os.Stat(report.FlagsOutput)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRejectsCollidingOutputs(t *testing.T) {
	cfg, _, logger, dir := testSetup(t)

	var inputs []string
	for _, sub := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0755))
		input := filepath.Join(dir, sub, "speech.data")
		require.NoError(t, os.WriteFile(input, voiceInput(), 0644))
		inputs = append(inputs, input)
	}

	err := run(context.Background(), logger, cfg, inputs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both write")

	_, statErr := os.Stat(cfg.Output.Directory)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessFileWAVKeepsInputRate(t *testing.T) {
	cfg, processor, logger, dir := testSetup(t)
	cfg.Audio.InputFormat = "wav"
	cfg.Audio.OutputFormat = "wav"

	samples := audio.BytesToSamples(voiceInput())
	encoded, err := audio.EncodeWAV(samples, 16000)
	require.NoError(t, err)

	input := filepath.Join(dir, "wideband.wav")
	require.NoError(t, os.WriteFile(input, encoded, 0644))

	report, err := processFile(context.Background(), logger, cfg, processor, input)
	require.NoError(t, err)

	data, err := os.ReadFile(report.DataOutput)
	require.NoError(t, err)

	info, err := audio.GetWAVInfo(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), info.SampleRate)

	decoded, rate, err := audio.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, samples, decoded)

	require.Len(t, report.Result.Segments, 1)
	assert.Equal(t, 12500*time.Microsecond, report.Result.Segments[0].End)
}

func TestRootCommandRequiresInput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "vadfilter 1.0.0\n", out.String())
}
