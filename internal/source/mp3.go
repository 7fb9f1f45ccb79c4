package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces interleaved 16-bit little-endian stereo.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 2 * mp3Channels
)

// MP3Source decodes an MP3 stream and mixes it down to mono.
type MP3Source struct {
	name    string
	file    io.Closer
	decoder *mp3.Decoder
	raw     []byte
}

// OpenMP3 opens an MP3 file.
func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 file: %w", err)
	}
	src, err := NewMP3Source(filepath.Base(path), f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.file = f
	return src, nil
}

// NewMP3Source decodes from r. The caller keeps ownership of r.
func NewMP3Source(name string, r io.Reader) (*MP3Source, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode failed for %s: %w", name, err)
	}
	return &MP3Source{name: name, decoder: dec}, nil
}

// Read fills dst with mono samples.
func (s *MP3Source) Read(dst []float64) (int, error) {
	want := len(dst) * mp3BytesPerFrame
	if cap(s.raw) < want {
		s.raw = make([]byte, want)
	}
	raw := s.raw[:want]

	n, err := io.ReadFull(s.decoder, raw)
	frames := n / mp3BytesPerFrame
	for i := range frames {
		l := int16(binary.LittleEndian.Uint16(raw[i*mp3BytesPerFrame:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*mp3BytesPerFrame+2:]))
		dst[i] = (float64(l) + float64(r)) / 2 / 32768.0
	}

	if frames > 0 {
		// A short read still delivers its samples; the next call reports the end.
		return frames, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, io.EOF
	}
	return 0, fmt.Errorf("mp3 read failed for %s: %w", s.name, err)
}

func (s *MP3Source) SampleRate() float64 { return float64(s.decoder.SampleRate()) }
func (s *MP3Source) Name() string        { return s.name }

// Close releases the file opened by OpenMP3.
func (s *MP3Source) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

var _ Source = (*MP3Source)(nil)
