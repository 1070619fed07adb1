package vad

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/pcm-vad/internal/audio"
)

const (
	// DefaultPacketSize is 20ms of audio at 8kHz
	DefaultPacketSize = 160
	// DefaultSampleRate is the implied rate of the input stream
	DefaultSampleRate = 8000
	// DefaultBatchSize is the number of packets classified per parallel batch
	DefaultBatchSize = 64
)

const (
	flagVoice   = '1'
	flagSilence = '0'
)

// Config holds the processor parameters, fixed at construction
type Config struct {
	LookAhead    int     // packets of future context
	LookBack     int     // packets of past context
	PacketSize   int     // samples per packet
	MinMagnitude float64 // lower bound of the voice band (min_freq)
	MaxMagnitude float64 // upper bound of the voice band (max_freq)
	SampleRate   int     // default rate for segment timing
	Workers      int     // concurrent classifiers; 1 classifies inline
	BatchSize    int     // packets read ahead per parallel batch
}

// DefaultConfig returns the standard 20ms packet, one-packet margin setup
func DefaultConfig() Config {
	return Config{
		LookAhead:    1,
		LookBack:     1,
		PacketSize:   DefaultPacketSize,
		MinMagnitude: DefaultMinMagnitude,
		MaxMagnitude: DefaultMaxMagnitude,
		SampleRate:   DefaultSampleRate,
		Workers:      1,
		BatchSize:    DefaultBatchSize,
	}
}

// Validate checks the processor configuration
func (c Config) Validate() error {
	if c.LookAhead < 0 {
		return fmt.Errorf("look ahead cannot be negative, got %d", c.LookAhead)
	}
	if c.LookBack < 0 {
		return fmt.Errorf("look back cannot be negative, got %d", c.LookBack)
	}
	if c.PacketSize <= 0 {
		return fmt.Errorf("packet size must be positive, got %d", c.PacketSize)
	}
	if c.MaxMagnitude <= c.MinMagnitude {
		return fmt.Errorf("max magnitude (%f) must be greater than min magnitude (%f)",
			c.MaxMagnitude, c.MinMagnitude)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	return nil
}

// Recorder receives per-packet measurements. Implementations must be safe
// for concurrent use when Workers > 1.
type Recorder interface {
	RecordClassification(voiced bool, magnitude float64, seconds float64)
	RecordEmission(voiced bool, bytes int)
}

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// WithClassifier replaces the spectral classifier
func WithClassifier(c PacketClassifier) Option {
	return func(p *Processor) {
		p.classifier = c
	}
}

// Processor rewrites a PCM stream, replacing packets without nearby voice
// by silence. Construction does no I/O; each Process call is one run.
type Processor struct {
	config     Config
	classifier PacketClassifier
	logger     *slog.Logger
	recorder   Recorder

	// Statistics across runs
	totalPackets  uint64
	voicePackets  uint64
	voicedEmitted uint64
	lastProcessed time.Time

	mu sync.Mutex
}

// Result summarises one Process run
type Result struct {
	PacketsRead    uint64         `json:"packets_read"`
	PacketsEmitted uint64         `json:"packets_emitted"`
	VoicedEmitted  uint64         `json:"voiced_emitted"`
	BytesRead      uint64         `json:"bytes_read"`
	BytesWritten   uint64         `json:"bytes_written"`
	Segments       []VoiceSegment `json:"segments"`
	Elapsed        time.Duration  `json:"elapsed"`
}

// ProcessorStats represents processor statistics across runs
type ProcessorStats struct {
	TotalPackets    uint64    `json:"total_packets"`
	VoicePackets    uint64    `json:"voice_packets"`
	VoicedEmitted   uint64    `json:"voiced_emitted"`
	VoicePercentage float64   `json:"voice_percentage"`
	LastProcessed   time.Time `json:"last_processed"`
}

// NewProcessor creates a new VAD processor instance
func NewProcessor(config Config, opts ...Option) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.classifier == nil {
		c, err := NewClassifier(config.MinMagnitude, config.MaxMagnitude)
		if err != nil {
			return nil, err
		}
		p.classifier = c
	}

	return p, nil
}

// Config returns the processor configuration
func (p *Processor) Config() Config {
	return p.config
}

// Classify runs the configured classifier on one packet, recording timing
// and statistics. It satisfies PacketClassifier.
func (p *Processor) Classify(packet audio.Packet) (bool, float64) {
	start := time.Now()
	voiced, mag := p.classifier.Classify(packet)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.totalPackets++
	if voiced {
		p.voicePackets++
	}
	p.lastProcessed = time.Now()
	p.mu.Unlock()

	if p.recorder != nil {
		p.recorder.RecordClassification(voiced, mag, elapsed.Seconds())
	}
	return voiced, mag
}

// Process reads in packet by packet and writes the filtered stream to out
// and one '1'/'0' per packet to flagLog (which may be nil). Output length
// always equals input length. Already written bytes are flushed even when
// the run fails.
func (p *Processor) Process(ctx context.Context, in io.Reader, out io.Writer, flagLog io.Writer) (*Result, error) {
	return p.ProcessAt(ctx, in, out, flagLog, p.config.SampleRate)
}

// ProcessAt is Process for a stream recorded at sampleRate. The rate only
// affects segment and packet timing, never the decisions.
func (p *Processor) ProcessAt(ctx context.Context, in io.Reader, out io.Writer, flagLog io.Writer, sampleRate int) (*Result, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	reader, err := audio.NewPacketReader(in, p.config.PacketSize)
	if err != nil {
		return nil, err
	}
	window, err := NewWindow(p.config.LookBack, p.config.LookAhead)
	if err != nil {
		return nil, err
	}

	r := &run{
		p:          p,
		window:     window,
		out:        bufio.NewWriter(out),
		segments:   NewSegmentTracker(sampleRate),
		sampleRate: sampleRate,
		result:     &Result{},
	}
	if flagLog != nil {
		r.flags = bufio.NewWriter(flagLog)
	}

	start := time.Now()
	p.logger.Info("VAD run started",
		slog.Int("look_back", p.config.LookBack),
		slog.Int("look_ahead", p.config.LookAhead),
		slog.Int("packet_size", p.config.PacketSize),
		slog.Int("window", window.Size()),
		slog.Int("sample_rate", sampleRate),
		slog.Int("workers", p.config.Workers),
	)

	if p.config.Workers > 1 {
		err = r.steadyParallel(ctx, reader)
	} else {
		err = r.steadySequential(ctx, reader)
	}
	if err == nil {
		err = r.drain()
	}

	if flushErr := r.flush(); flushErr != nil && err == nil {
		err = flushErr
	}

	stats := reader.GetStats()
	r.result.PacketsRead = stats.TotalPackets
	r.result.BytesRead = stats.TotalBytes
	r.result.Segments = r.segments.Close()
	r.result.Elapsed = time.Since(start)

	if err != nil {
		p.logger.Error("VAD run failed",
			slog.String("error", err.Error()),
			slog.Uint64("packets_emitted", r.result.PacketsEmitted),
		)
		return r.result, err
	}

	p.logger.Info("VAD run finished",
		slog.Uint64("packets", r.result.PacketsEmitted),
		slog.Uint64("voiced", r.result.VoicedEmitted),
		slog.Int("segments", len(r.result.Segments)),
		slog.Duration("elapsed", r.result.Elapsed),
	)
	return r.result, nil
}

// GetStats returns processor statistics across all runs
func (p *Processor) GetStats() ProcessorStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	voicePercentage := float64(0)
	if p.totalPackets > 0 {
		voicePercentage = float64(p.voicePackets) / float64(p.totalPackets) * 100
	}

	return ProcessorStats{
		TotalPackets:    p.totalPackets,
		VoicePackets:    p.voicePackets,
		VoicedEmitted:   p.voicedEmitted,
		VoicePercentage: voicePercentage,
		LastProcessed:   p.lastProcessed,
	}
}

// Reset clears the accumulated statistics
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalPackets = 0
	p.voicePackets = 0
	p.voicedEmitted = 0
	p.lastProcessed = time.Time{}
}

// run is the state of a single Process call. The window is owned by it and
// only touched from the driving goroutine.
type run struct {
	p          *Processor
	window     *Window
	out        *bufio.Writer
	flags      *bufio.Writer
	segments   *SegmentTracker
	sampleRate int
	result     *Result
}

func (r *run) steadySequential(ctx context.Context, reader *audio.PacketReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		packet, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		r.window.Push(packet)
		r.window.ClassifyNewest(r.p)
		if err := r.step(); err != nil {
			return err
		}
	}
}

func (r *run) steadyParallel(ctx context.Context, reader *audio.PacketReader) error {
	batch := make([]audio.Packet, 0, r.p.config.BatchSize)
	voiced := make([]bool, r.p.config.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch = batch[:0]
		eof := false
		for len(batch) < cap(batch) {
			packet, err := reader.Next()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return err
			}
			batch = append(batch, packet)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.p.config.Workers)
		for i, packet := range batch {
			i, packet := i, packet
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				voiced[i], _ = r.p.Classify(packet)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, packet := range batch {
			r.window.Push(packet)
			r.window.SetNewestFlag(voiced[i])
			if err := r.step(); err != nil {
				return err
			}
		}

		if eof {
			return nil
		}
	}
}

// drain flushes the packets still waiting for look-ahead context
func (r *run) drain() error {
	for i := 0; i < r.p.config.LookAhead; i++ {
		if err := r.step(); err != nil {
			return err
		}
	}
	return nil
}

// step emits the oldest packet if there is one and advances the window
func (r *run) step() error {
	packet, voiced, ok := r.window.DecideOldest()
	if ok {
		if err := r.emit(packet, voiced); err != nil {
			return err
		}
	}
	r.window.Advance()
	return nil
}

func (r *run) emit(packet audio.Packet, voiced bool) error {
	var data []byte
	var flag byte
	if voiced {
		data, flag = packet.Bytes(), flagVoice
	} else {
		data, flag = packet.Silence(), flagSilence
	}

	n, err := r.out.Write(data)
	r.result.BytesWritten += uint64(n)
	if err != nil {
		return fmt.Errorf("failed to write packet %d: %w", r.result.PacketsEmitted, err)
	}
	if r.flags != nil {
		if err := r.flags.WriteByte(flag); err != nil {
			return fmt.Errorf("failed to write flag for packet %d: %w", r.result.PacketsEmitted, err)
		}
	}

	r.p.logger.Debug("Packet emitted",
		slog.Uint64("index", r.result.PacketsEmitted),
		slog.Int("samples", len(packet)),
		slog.Duration("duration", packet.Duration(r.sampleRate)),
		slog.Bool("voiced", voiced),
	)

	r.result.PacketsEmitted++
	if voiced {
		r.result.VoicedEmitted++
		r.p.mu.Lock()
		r.p.voicedEmitted++
		r.p.mu.Unlock()
	}
	r.segments.Observe(len(packet), voiced)

	if r.p.recorder != nil {
		r.p.recorder.RecordEmission(voiced, n)
	}
	return nil
}

func (r *run) flush() error {
	if err := r.out.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if r.flags != nil {
		if err := r.flags.Flush(); err != nil {
			return fmt.Errorf("failed to flush flag log: %w", err)
		}
	}
	return nil
}
