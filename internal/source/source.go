// Package source decodes audio files into mono PCM blocks and replays them
// into the analysis pipeline on a synthetic or real-time clock.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"beatsense/internal/analysis"
	"beatsense/internal/log"
)

// Source is a decoded mono PCM stream with samples in [-1, 1).
type Source interface {
	// Read fills dst and returns the number of samples written. It returns
	// io.EOF once the stream is exhausted.
	Read(dst []float64) (int, error)
	SampleRate() float64
	Name() string
	Close() error
}

// Open picks a decoder from the file extension.
func Open(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".mp3":
		return OpenMP3(path)
	default:
		return nil, fmt.Errorf("unsupported audio file type %q: %w", ext, analysis.ErrInvalidInput)
	}
}

// ReplayOptions controls Replay.
type ReplayOptions struct {
	BlockSize int       // Samples per ProcessSamples call.
	Start     time.Time // Timestamp of the first sample.
	Realtime  bool      // Pace blocks at the source sample rate.
}

// Replay reads src block by block and hands each block to sink, stamping it
// with Start plus the stream position. Timestamps never depend on the wall
// clock, so a replay is deterministic whether or not it is paced. It returns
// the number of blocks delivered and stops early when ctx is cancelled.
func Replay(ctx context.Context, src Source, sink analysis.SampleProcessor, opts ReplayOptions) (int, error) {
	if opts.BlockSize <= 0 {
		return 0, fmt.Errorf("replay: block size must be positive, got %d: %w", opts.BlockSize, analysis.ErrInvalidInput)
	}
	rate := src.SampleRate()
	if rate <= 0 {
		return 0, fmt.Errorf("replay: source %s has no sample rate: %w", src.Name(), analysis.ErrInvalidInput)
	}

	blockDur := samplesToDuration(int64(opts.BlockSize), rate)
	var ticker *time.Ticker
	if opts.Realtime {
		ticker = time.NewTicker(blockDur)
		defer ticker.Stop()
	}

	log.Infof("Source: Replaying %s (%.0f Hz, block %d, realtime %t)", src.Name(), rate, opts.BlockSize, opts.Realtime)

	block := make([]float64, opts.BlockSize)
	var position int64 // Samples delivered so far.
	blocks := 0
	for {
		if err := ctx.Err(); err != nil {
			return blocks, err
		}

		n, err := readFull(src, block)
		if n > 0 {
			ts := opts.Start.Add(samplesToDuration(position, rate))
			if perr := sink.ProcessSamples(block[:n], ts); perr != nil {
				return blocks, fmt.Errorf("replay: block %d: %w", blocks, perr)
			}
			position += int64(n)
			blocks++
		}
		if errors.Is(err, io.EOF) {
			log.Infof("Source: Finished %s after %d blocks", src.Name(), blocks)
			return blocks, nil
		}
		if err != nil {
			return blocks, fmt.Errorf("replay: read %s: %w", src.Name(), err)
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return blocks, ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// readFull keeps reading until dst is full or the source ends.
func readFull(src Source, dst []float64) (int, error) {
	total := 0
	for total < len(dst) {
		n, err := src.Read(dst[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrNoProgress
		}
	}
	return total, nil
}

// samplesToDuration converts a sample count to stream time. Multiplying before
// dividing keeps whole-millisecond positions exact.
func samplesToDuration(samples int64, rate float64) time.Duration {
	return time.Duration(float64(samples) * float64(time.Second) / rate)
}
