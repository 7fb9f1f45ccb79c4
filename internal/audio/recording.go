package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"beatsense/internal/log"
)

// recordingBitDepth matches the int32 capture format.
const recordingBitDepth = 32

// ErrAlreadyRecording is returned by StartRecording while a file is open.
var ErrAlreadyRecording = errors.New("audio: already recording")

// RecordingName returns a timestamped file name inside dir.
func RecordingName(dir string, t time.Time) string {
	return filepath.Join(dir, "beatsense-"+t.Format("20060102-150405")+".wav")
}

// StartRecording writes the raw interleaved input to a WAV file until
// StopRecording. The file can be replayed through the same pipeline.
func (e *Engine) StartRecording(filename string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.isRecording.Load() {
		return ErrAlreadyRecording
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	channels := e.config.InputChannels
	rate := int(e.config.SampleRate)
	e.outputFile = file
	e.wavEncoder = wav.NewEncoder(file, rate, recordingBitDepth, channels, 1)
	e.sampleBuf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           make([]int, e.config.FramesPerBuffer*channels),
		SourceBitDepth: recordingBitDepth,
	}

	e.isRecording.Store(true)
	log.Infof("Audio: Recording to %s", filename)
	return nil
}

// record appends one callback buffer to the WAV file when recording.
func (e *Engine) record(buffer []int32) {
	if !e.isRecording.Load() {
		return
	}
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.wavEncoder == nil {
		return
	}

	n := min(len(buffer), cap(e.sampleBuf.Data))
	e.sampleBuf.Data = e.sampleBuf.Data[:n]
	for i, sample := range buffer[:n] {
		e.sampleBuf.Data[i] = int(sample)
	}
	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		log.Errorf("Audio: Error writing to WAV file: %v", err)
	}
}

// StopRecording finalises the WAV header and closes the file.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if !e.isRecording.Swap(false) {
		return nil
	}

	var errs []error
	if e.wavEncoder != nil {
		errs = append(errs, e.wavEncoder.Close())
		e.wavEncoder = nil
	}
	if e.outputFile != nil {
		name := e.outputFile.Name()
		if err := e.outputFile.Close(); err != nil {
			errs = append(errs, err)
		} else {
			log.Infof("Audio: Recording saved to %s", name)
		}
		e.outputFile = nil
	}
	return errors.Join(errs...)
}

// IsRecording reports whether input is being written to disk.
func (e *Engine) IsRecording() bool {
	return e.isRecording.Load()
}

// Close stops any recording and the input stream.
func (e *Engine) Close() error {
	return errors.Join(e.StopRecording(), e.StopInputStream())
}
