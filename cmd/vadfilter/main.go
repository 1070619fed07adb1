package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skypro1111/pcm-vad/internal/config"
	"github.com/skypro1111/pcm-vad/internal/metrics"
	"github.com/skypro1111/pcm-vad/internal/vad"
)

const (
	serviceName    = "vadfilter"
	serviceVersion = "1.0.0"
)

type cliFlags struct {
	configPath      string
	outputDir       string
	lookAhead       int
	lookBack        int
	packetSize      int
	minFreq         float64
	maxFreq         float64
	workers         int
	inputFormat     string
	outputFormat    string
	reportPath      string
	metricsTextfile string
	logLevel        string
	logFormat       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   serviceName + " [flags] <input>...",
		Short: "Replace non-voice packets of 8-bit PCM files with silence",
		Long: `vadfilter reads signed 8-bit PCM files packet by packet, detects voice
activity from the peak spectral magnitude of each packet, and writes a copy in
which packets without voice nearby are zeroed, plus a '1'/'0' flag log.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				return err
			}

			logger := initLogger(cfg.Logging)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, logger, cfg, args); err != nil {
				logger.Error("Run failed", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "Path to YAML configuration file")
	f.StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for filtered data and flag logs")
	f.IntVar(&flags.lookAhead, "look-ahead", 1, "Packets of future context")
	f.IntVar(&flags.lookBack, "look-back", 1, "Packets of past context")
	f.IntVar(&flags.packetSize, "packet-size", vad.DefaultPacketSize, "Samples per packet")
	f.Float64Var(&flags.minFreq, "min-freq", vad.DefaultMinMagnitude, "Lower bound of the voice magnitude band")
	f.Float64Var(&flags.maxFreq, "max-freq", vad.DefaultMaxMagnitude, "Upper bound of the voice magnitude band")
	f.IntVarP(&flags.workers, "workers", "w", 1, "Concurrent packet classifiers")
	f.StringVar(&flags.inputFormat, "input-format", "raw", "Input format: raw or wav")
	f.StringVar(&flags.outputFormat, "output-format", "raw", "Output format: raw or wav")
	f.StringVar(&flags.reportPath, "report", "", "Write a JSON run report to this path")
	f.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this textfile")
	f.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, serviceVersion)
		},
	})

	return cmd
}

// loadConfig reads the config file, if any, and applies explicitly set flags on top
func loadConfig(cmd *cobra.Command, flags *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("output-dir") {
		cfg.Output.Directory = flags.outputDir
	}
	if changed("look-ahead") {
		cfg.VAD.LookAhead = flags.lookAhead
	}
	if changed("look-back") {
		cfg.VAD.LookBack = flags.lookBack
	}
	if changed("packet-size") {
		cfg.VAD.PacketSize = flags.packetSize
	}
	if changed("min-freq") {
		cfg.VAD.MinFreq = flags.minFreq
	}
	if changed("max-freq") {
		cfg.VAD.MaxFreq = flags.maxFreq
	}
	if changed("workers") {
		cfg.VAD.Workers = flags.workers
	}
	if changed("input-format") {
		cfg.Audio.InputFormat = flags.inputFormat
	}
	if changed("output-format") {
		cfg.Audio.OutputFormat = flags.outputFormat
	}
	if changed("report") {
		cfg.Output.ReportPath = flags.reportPath
	}
	if changed("metrics-textfile") {
		cfg.Output.MetricsPath = flags.metricsTextfile
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, inputs []string) error {
	logger.Info("Filter starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.Int("inputs", len(inputs)),
	)

	logger.Info("Configuration loaded",
		slog.Int("look_ahead", cfg.VAD.LookAhead),
		slog.Int("look_back", cfg.VAD.LookBack),
		slog.Int("packet_size", cfg.VAD.PacketSize),
		slog.Float64("min_freq", cfg.VAD.MinFreq),
		slog.Float64("max_freq", cfg.VAD.MaxFreq),
		slog.Int("workers", cfg.VAD.Workers),
		slog.String("input_format", cfg.Audio.InputFormat),
		slog.String("output_format", cfg.Audio.OutputFormat),
		slog.String("output_dir", cfg.Output.Directory),
	)

	appMetrics := metrics.NewMetrics()

	processor, err := vad.NewProcessor(processorConfig(cfg),
		vad.WithLogger(logger),
		vad.WithRecorder(appMetrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	if err := checkOutputs(cfg.Output, inputs); err != nil {
		return err
	}

	reports := make([]FileReport, 0, len(inputs))
	var runErr error
	for _, input := range inputs {
		report, err := processFile(ctx, logger, cfg, processor, input)
		appMetrics.RecordRun(err, report.Elapsed())
		if err != nil {
			runErr = fmt.Errorf("%s: %w", input, err)
			break
		}
		reports = append(reports, *report)
	}

	if cfg.Output.ReportPath != "" {
		if err := writeReport(cfg.Output.ReportPath, reports); err != nil {
			logger.Error("Failed to write report", slog.String("error", err.Error()))
		}
	}

	if cfg.Output.MetricsPath != "" {
		if err := appMetrics.WriteTextfile(cfg.Output.MetricsPath); err != nil {
			logger.Error("Failed to write metrics", slog.String("error", err.Error()))
		}
	}

	stats := processor.GetStats()
	logger.Info("Final statistics",
		slog.Int("files", len(reports)),
		slog.Uint64("packets", stats.TotalPackets),
		slog.Uint64("voice_packets", stats.VoicePackets),
		slog.Uint64("voiced_emitted", stats.VoicedEmitted),
		slog.Float64("voice_percentage", stats.VoicePercentage),
	)

	return runErr
}

func processorConfig(cfg *config.Config) vad.Config {
	return vad.Config{
		LookAhead:    cfg.VAD.LookAhead,
		LookBack:     cfg.VAD.LookBack,
		PacketSize:   cfg.VAD.PacketSize,
		MinMagnitude: cfg.VAD.MinFreq,
		MaxMagnitude: cfg.VAD.MaxFreq,
		SampleRate:   cfg.Audio.SampleRate,
		Workers:      cfg.VAD.Workers,
		BatchSize:    cfg.VAD.BatchSize,
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
