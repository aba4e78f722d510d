// Package audio accumulates raw capture chunks per stream, emits level
// telemetry, and decides when a burst is ready for transcription.
package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the expected size of one capture chunk in bytes.
	DefaultChunkSize = 4096

	// flushChunkCount is how many chunks of the configured size must
	// accumulate before the buffer flushes a burst for transcription.
	flushChunkCount = 10

	// MinLevelDB is the floor the reported level is clamped to.
	MinLevelDB = -60.0

	// DefaultSpeechThresholdDB is the static voice-activity threshold.
	DefaultSpeechThresholdDB = -40.0
)

// Accumulator buffers raw audio chunks for one capture stream. Chunks are
// discarded while the accumulator is stopped. Every processed chunk emits a
// level event; once the buffered size crosses flushChunkCount * chunkSize
// the pending chunks are concatenated, the buffer is emptied, and the ready
// callback fires exactly once with the burst.
type Accumulator struct {
	mu sync.Mutex

	chunkSize         int
	speechThresholdDB float64
	processing        bool
	pending           [][]byte
	pendingBytes      int

	onLevel func(db float64, speech bool)
	onReady func(burst []byte)

	logger *zap.Logger
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithChunkSize overrides the expected chunk size.
func WithChunkSize(size int) Option {
	return func(a *Accumulator) {
		if size > 0 {
			a.chunkSize = size
		}
	}
}

// WithSpeechThreshold overrides the voice-activity threshold in dB.
func WithSpeechThreshold(db float64) Option {
	return func(a *Accumulator) {
		a.speechThresholdDB = db
	}
}

// OnLevel registers the per-chunk level telemetry callback.
func OnLevel(fn func(db float64, speech bool)) Option {
	return func(a *Accumulator) {
		a.onLevel = fn
	}
}

// OnReady registers the burst-ready callback.
func OnReady(fn func(burst []byte)) Option {
	return func(a *Accumulator) {
		a.onReady = fn
	}
}

// NewAccumulator creates a stopped accumulator.
func NewAccumulator(logger *zap.Logger, opts ...Option) *Accumulator {
	a := &Accumulator{
		chunkSize:         DefaultChunkSize,
		speechThresholdDB: DefaultSpeechThresholdDB,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start enables chunk buffering. Idempotent.
func (a *Accumulator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processing = true
}

// Stop disables buffering and discards any pending chunks. In-flight audio
// is dropped, not flushed.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingBytes > 0 {
		a.logger.Debug("Discarding pending audio on stop",
			zap.Int("chunks", len(a.pending)),
			zap.Int("bytes", a.pendingBytes))
	}
	a.processing = false
	a.pending = nil
	a.pendingBytes = 0
}

// IsProcessing reports whether chunks are currently buffered.
func (a *Accumulator) IsProcessing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

// BufferedBytes returns the total size of pending chunks.
func (a *Accumulator) BufferedBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingBytes
}

// ProcessChunk buffers one chunk. No-op when stopped. The level event is
// unbuffered: every chunk produces one, before any flush decision.
func (a *Accumulator) ProcessChunk(chunk []byte) {
	a.mu.Lock()
	if !a.processing {
		a.mu.Unlock()
		return
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	a.pending = append(a.pending, buf)
	a.pendingBytes += len(buf)

	db := ChunkLevelDB(chunk)
	speech := db > a.speechThresholdDB

	var burst []byte
	if a.pendingBytes >= flushChunkCount*a.chunkSize {
		burst = make([]byte, 0, a.pendingBytes)
		for _, c := range a.pending {
			burst = append(burst, c...)
		}
		a.pending = nil
		a.pendingBytes = 0
	}
	a.mu.Unlock()

	if a.onLevel != nil {
		a.onLevel(db, speech)
	}
	if burst != nil && a.onReady != nil {
		a.onReady(burst)
	}
}

// ChunkLevelDB computes the RMS-derived decibel level of a chunk of 16-bit
// little-endian signed samples. The +0.001 epsilon avoids log10(0); the
// result is clamped to MinLevelDB.
func ChunkLevelDB(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return MinLevelDB
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(chunk[2*i:])))
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	normalized := math.Min(rms/32768.0, 1.0)
	db := 20 * math.Log10(normalized+0.001)
	if db < MinLevelDB {
		db = MinLevelDB
	}
	return db
}
