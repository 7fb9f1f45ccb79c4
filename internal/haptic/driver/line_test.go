package driver

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"beatsense/internal/haptic"
)

// recordingLine captures every value written to it.
type recordingLine struct {
	mu     sync.Mutex
	values []int
	err    error
}

func (l *recordingLine) SetValue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.values = append(l.values, v)
	return nil
}

func (l *recordingLine) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.values)
}

func TestLineDriverPlaysPattern(t *testing.T) {
	line := &recordingLine{}
	d := NewLineDriver(line, haptic.ClassWearable)

	if err := d.Vibrate([]int{0, 5, 5, 5}); err != nil {
		t.Fatalf("Vibrate() error = %v", err)
	}
	d.Wait()

	// idle, active, idle, active, then released low.
	if want := []int{0, 1, 0, 1, 0}; !slices.Equal(line.snapshot(), want) {
		t.Errorf("line values = %v, want %v", line.snapshot(), want)
	}
}

func TestLineDriverCancel(t *testing.T) {
	line := &recordingLine{}
	d := NewLineDriver(line, haptic.ClassWearable)

	start := time.Now()
	if err := d.Vibrate([]int{0, 10000}); err != nil {
		t.Fatalf("Vibrate() error = %v", err)
	}
	if err := d.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Cancel() waited %v for the pattern to finish", elapsed)
	}

	values := line.snapshot()
	if values[len(values)-1] != 0 {
		t.Errorf("line left at %d after Cancel(), want 0", values[len(values)-1])
	}
}

func TestLineDriverLastCallWins(t *testing.T) {
	line := &recordingLine{}
	d := NewLineDriver(line, haptic.ClassWearable)

	_ = d.Vibrate([]int{0, 10000})
	_ = d.Vibrate([]int{0, 1})
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second pattern did not replace the long first one")
	}
	_ = d.Cancel()
}

func TestLineDriverLineError(t *testing.T) {
	line := &recordingLine{err: errors.New("line busy")}
	d := NewLineDriver(line, haptic.ClassWearable)

	_ = d.Vibrate([]int{0, 10000})
	d.Wait() // the player gives up on the first failed write

	if err := d.Cancel(); err == nil {
		t.Error("Cancel() error = nil, want the line error")
	}
	if caps := d.Probe(); !caps.Vibration || caps.Class != haptic.ClassWearable {
		t.Errorf("Probe() = %+v", caps)
	}
}

func TestFakeDriver(t *testing.T) {
	f := NewFakeDriver()
	pattern := []int{0, 10}
	_ = f.Vibrate(pattern)
	pattern[1] = 99

	if got := f.Last(); got[1] != 10 {
		t.Errorf("FakeDriver kept a reference to the caller's pattern: %v", got)
	}

	f.VibrateError = errors.New("nope")
	if err := f.Vibrate(pattern); err == nil {
		t.Error("Vibrate() error = nil with VibrateError set")
	}
	f.Reset()
	if f.Last() != nil || f.Cancels != 0 {
		t.Error("Reset() did not clear recorded calls")
	}
}

func TestUnsupported(t *testing.T) {
	var d Unsupported
	if err := d.Vibrate([]int{0, 1}); !errors.Is(err, haptic.ErrUnsupportedCapability) {
		t.Errorf("Vibrate() error = %v, want ErrUnsupportedCapability", err)
	}
	if d.Probe().Vibration {
		t.Error("Probe() reports vibration")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindLog, false},
		{"GPIO", KindGPIO, false},
		{"browser", KindBrowser, false},
		{"none", KindNone, false},
		{"serial", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if got != tt.want || tt.wantErr != (err != nil) {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}
