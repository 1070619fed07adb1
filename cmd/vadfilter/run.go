package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skypro1111/pcm-vad/internal/audio"
	"github.com/skypro1111/pcm-vad/internal/config"
	"github.com/skypro1111/pcm-vad/internal/vad"
)

// FileReport describes one processed input file
type FileReport struct {
	Input       string      `json:"input"`
	DataOutput  string      `json:"data_output"`
	FlagsOutput string      `json:"flags_output"`
	Result      *vad.Result `json:"result,omitempty"`
}

// Elapsed returns the processing time of the file, zero if it never ran
func (r *FileReport) Elapsed() time.Duration {
	if r == nil || r.Result == nil {
		return 0
	}
	return r.Result.Elapsed
}

// outputPaths derives the data and flag log paths for an input file
func outputPaths(cfg config.OutputConfig, input string) (string, string) {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(cfg.Directory, base+cfg.DataSuffix),
		filepath.Join(cfg.Directory, base+cfg.FlagsSuffix)
}

// inputStream is an opened input with the rate its samples were recorded at
type inputStream struct {
	reader     io.Reader
	sampleRate int
	close      func() error
}

// openInput opens the input as a raw 8-bit sample stream. Raw input carries
// no rate, so it plays at defaultRate; WAV input uses the rate in its header.
func openInput(logger *slog.Logger, path string, format string, defaultRate int) (*inputStream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	if format != "wav" {
		return &inputStream{reader: bufio.NewReader(file), sampleRate: defaultRate, close: file.Close}, nil
	}

	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	logger.Debug("WAV input",
		slog.String("input", path),
		slog.Uint64("sample_rate", uint64(info.SampleRate)),
		slog.Uint64("channels", uint64(info.Channels)),
		slog.Uint64("bits_per_sample", uint64(info.BitsPerSample)),
		slog.Uint64("samples", uint64(info.NumSamples)),
		slog.Float64("duration_seconds", info.Duration),
	)

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return &inputStream{
		reader:     bytes.NewReader(audio.SamplesToBytes(samples)),
		sampleRate: rate,
		close:      func() error { return nil },
	}, nil
}

// sameFile reports whether two paths name the same file. Paths that do not
// exist yet are compared by absolute path.
func sameFile(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}

	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(infoA, infoB), nil
}

// checkOutputs rejects runs where an output would overwrite an input or
// another file's output. It runs before any file is created.
func checkOutputs(cfg config.OutputConfig, inputs []string) error {
	owners := make(map[string]string, 2*len(inputs))
	for _, input := range inputs {
		dataPath, flagsPath := outputPaths(cfg, input)
		for _, out := range []string{dataPath, flagsPath} {
			for _, other := range inputs {
				same, err := sameFile(out, other)
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", out, err)
				}
				if same {
					return fmt.Errorf("output %s would overwrite input %s", out, other)
				}
			}

			abs, err := filepath.Abs(out)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", out, err)
			}
			if owner, ok := owners[abs]; ok && owner != input {
				return fmt.Errorf("inputs %s and %s both write %s", owner, input, out)
			}
			owners[abs] = input
		}
	}
	return nil
}

// processFile filters one input. The input is opened before any output file
// is created, so an unreadable input leaves no output behind.
func processFile(ctx context.Context, logger *slog.Logger, cfg *config.Config, processor *vad.Processor, input string) (*FileReport, error) {
	dataPath, flagsPath := outputPaths(cfg.Output, input)
	report := &FileReport{Input: input, DataOutput: dataPath, FlagsOutput: flagsPath}

	if err := checkOutputs(cfg.Output, []string{input}); err != nil {
		return report, err
	}

	stream, err := openInput(logger, input, cfg.Audio.InputFormat, processor.Config().SampleRate)
	if err != nil {
		return report, err
	}
	defer stream.close()

	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			return report, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	dataFile, err := os.Create(dataPath)
	if err != nil {
		return report, fmt.Errorf("failed to create data output: %w", err)
	}
	defer dataFile.Close()

	flagsFile, err := os.Create(flagsPath)
	if err != nil {
		return report, fmt.Errorf("failed to create flag log: %w", err)
	}
	defer flagsFile.Close()

	var out io.Writer = dataFile
	var wavBuf *bytes.Buffer
	if cfg.Audio.OutputFormat == "wav" {
		wavBuf = &bytes.Buffer{}
		out = wavBuf
	}

	logger.Info("Processing file",
		slog.String("input", input),
		slog.String("data_output", dataPath),
		slog.String("flags_output", flagsPath),
		slog.Int("sample_rate", stream.sampleRate),
	)

	result, err := processor.ProcessAt(ctx, stream.reader, out, flagsFile, stream.sampleRate)
	report.Result = result
	if err != nil {
		return report, err
	}

	if wavBuf != nil {
		encoded, err := audio.EncodeWAV(audio.BytesToSamples(wavBuf.Bytes()), stream.sampleRate)
		if err != nil {
			return report, fmt.Errorf("failed to encode output: %w", err)
		}
		if _, err := dataFile.Write(encoded); err != nil {
			return report, fmt.Errorf("failed to write data output: %w", err)
		}
	}

	if err := dataFile.Sync(); err != nil {
		return report, fmt.Errorf("failed to sync data output: %w", err)
	}

	logger.Info("File processed",
		slog.String("input", input),
		slog.Uint64("packets", result.PacketsEmitted),
		slog.Uint64("voiced", result.VoicedEmitted),
		slog.Int("segments", len(result.Segments)),
	)
	return report, nil
}

// writeReport writes the per-file results as indented JSON
func writeReport(path string, reports []FileReport) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
