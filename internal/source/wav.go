package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"beatsense/internal/analysis"
)

// WAVSource decodes a PCM WAV file and mixes it down to mono.
type WAVSource struct {
	name     string
	file     io.Closer
	decoder  *wav.Decoder
	channels int
	scale    float64          // 1 / full-scale sample value
	buf      *audio.IntBuffer // Interleaved scratch buffer.
}

// OpenWAV opens and validates a WAV file.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	src, err := NewWAVSource(filepath.Base(path), f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.file = f
	return src, nil
}

// NewWAVSource decodes from r. The caller keeps ownership of r.
func NewWAVSource(name string, r io.ReadSeeker) (*WAVSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file: %w", name, analysis.ErrInvalidInput)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate pcm data in %s: %w", name, err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 || dec.BitDepth == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("%s has an unusable format (%d channels, %d bit, %d Hz): %w",
			name, channels, dec.BitDepth, dec.SampleRate, analysis.ErrInvalidInput)
	}

	return &WAVSource{
		name:     name,
		decoder:  dec,
		channels: channels,
		scale:    1 / float64(int64(1)<<(dec.BitDepth-1)),
		buf: &audio.IntBuffer{
			Format:         dec.Format(),
			SourceBitDepth: int(dec.BitDepth),
		},
	}, nil
}

// Read fills dst with mono samples.
func (s *WAVSource) Read(dst []float64) (int, error) {
	want := len(dst) * s.channels
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to decode %s: %w", s.name, err)
	}
	frames := n / s.channels
	if frames == 0 {
		return 0, io.EOF
	}

	for i := range frames {
		var sum int
		for c := range s.channels {
			sum += s.buf.Data[i*s.channels+c]
		}
		dst[i] = float64(sum) / float64(s.channels) * s.scale
	}
	return frames, nil
}

func (s *WAVSource) SampleRate() float64 { return float64(s.decoder.SampleRate) }
func (s *WAVSource) Name() string        { return s.name }

// Close releases the file opened by OpenWAV.
func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

var _ Source = (*WAVSource)(nil)
