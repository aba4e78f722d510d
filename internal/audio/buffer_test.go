package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"go.uber.org/zap"
)

func makeChunk(size int, sample int16) []byte {
	chunk := make([]byte, size)
	for i := 0; i+1 < size; i += 2 {
		binary.LittleEndian.PutUint16(chunk[i:], uint16(sample))
	}
	return chunk
}

func TestAccumulator_FlushAfterTenChunks(t *testing.T) {
	var ready [][]byte
	acc := NewAccumulator(zap.NewNop(),
		WithChunkSize(64),
		OnReady(func(burst []byte) {
			ready = append(ready, burst)
		}),
	)
	acc.Start()

	var want []byte
	for i := 0; i < 10; i++ {
		chunk := makeChunk(64, int16(i*100))
		want = append(want, chunk...)
		acc.ProcessChunk(chunk)
	}

	if got := acc.BufferedBytes(); got != 0 {
		t.Errorf("BufferedBytes after flush = %d, want 0", got)
	}
	if len(ready) != 1 {
		t.Fatalf("ready fired %d times, want 1", len(ready))
	}
	if !bytes.Equal(ready[0], want) {
		t.Errorf("burst is not the byte-for-byte concatenation of the 10 chunks")
	}
}

func TestAccumulator_StopDiscardsPending(t *testing.T) {
	readyFired := false
	acc := NewAccumulator(zap.NewNop(),
		WithChunkSize(64),
		OnReady(func([]byte) { readyFired = true }),
	)
	acc.Start()

	for i := 0; i < 3; i++ {
		acc.ProcessChunk(makeChunk(64, 500))
	}
	if got := acc.BufferedBytes(); got != 3*64 {
		t.Fatalf("BufferedBytes = %d, want %d", got, 3*64)
	}

	acc.Stop()

	if got := acc.BufferedBytes(); got != 0 {
		t.Errorf("BufferedBytes after Stop = %d, want 0", got)
	}
	if readyFired {
		t.Error("ready event fired for discarded chunks")
	}
	if acc.IsProcessing() {
		t.Error("accumulator still processing after Stop")
	}
}

func TestAccumulator_DiscardsWhenStopped(t *testing.T) {
	levels := 0
	acc := NewAccumulator(zap.NewNop(),
		OnLevel(func(float64, bool) { levels++ }),
	)

	acc.ProcessChunk(makeChunk(64, 1000))

	if got := acc.BufferedBytes(); got != 0 {
		t.Errorf("stopped accumulator buffered %d bytes", got)
	}
	if levels != 0 {
		t.Errorf("level event fired while stopped")
	}
}

func TestAccumulator_LevelPerChunk(t *testing.T) {
	var levels []float64
	var speech []bool
	acc := NewAccumulator(zap.NewNop(),
		WithChunkSize(1024),
		OnLevel(func(db float64, s bool) {
			levels = append(levels, db)
			speech = append(speech, s)
		}),
	)
	acc.Start()

	acc.ProcessChunk(makeChunk(64, 0))     // silence
	acc.ProcessChunk(makeChunk(64, 16000)) // loud

	if len(levels) != 2 {
		t.Fatalf("level events = %d, want 2", len(levels))
	}
	if levels[0] != MinLevelDB {
		t.Errorf("silence level = %f, want %f", levels[0], MinLevelDB)
	}
	if speech[0] {
		t.Error("silence flagged as speech")
	}
	if !speech[1] {
		t.Errorf("loud chunk (%.1f dB) not flagged as speech", levels[1])
	}
}

func TestChunkLevelDB(t *testing.T) {
	// Full-scale square wave: rms = 32767, normalized ~ 1.0.
	full := makeChunk(64, 32767)
	wantFull := 20 * math.Log10(32767.0/32768.0+0.001)
	if got := ChunkLevelDB(full); math.Abs(got-wantFull) > 1e-9 {
		t.Errorf("ChunkLevelDB(full scale) = %v, want %v", got, wantFull)
	}

	// Zeroes clamp to the floor.
	if got := ChunkLevelDB(make([]byte, 64)); got != MinLevelDB {
		t.Errorf("ChunkLevelDB(silence) = %v, want %v", got, MinLevelDB)
	}

	// Empty chunk is the floor, not NaN.
	if got := ChunkLevelDB(nil); got != MinLevelDB {
		t.Errorf("ChunkLevelDB(nil) = %v, want %v", got, MinLevelDB)
	}
}
