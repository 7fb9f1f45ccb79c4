// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"beatsense/internal/log"
	"beatsense/internal/transport"
)

// DefaultInterval is the publish period when none is given (~60Hz).
const DefaultInterval = 16 * time.Millisecond

// Packet flag bits.
const (
	FlagBeat   uint8 = 1 << 0
	FlagHaptic uint8 = 1 << 1
)

// HeaderSize is the fixed part of a packet before the magnitude bytes.
const HeaderSize = 4 + 8 + 1 + 2 + 6*4 + 2

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Frame time, ns epoch    |
| Flags             | uint8          | 1            | bit0 beat, bit1 haptic  |
| BPM               | uint16         | 2            | 0 when unknown          |
| Confidence        | float32        | 4            | Beat confidence [0,1]   |
| Energy            | float32        | 4            | Combined energy         |
| Volume            | float32        | 4            | Band summary [0,1]      |
| Bass              | float32        | 4            |                         |
| Mid               | float32        | 4            |                         |
| Treble            | float32        | 4            |                         |
| Magnitude Count   | uint16         | 2            | Number of bins (N)      |
| Magnitudes        | []uint8        | N            | Byte-scaled spectrum    |
+-----------------------------------------------------------------------------+
*/

// UDPPublisher keeps the most recent pipeline message and sends it as a
// binary packet on every tick of its own clock. Ticks with no new message
// send nothing.
type UDPPublisher struct {
	sender   PacketSender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	latestMu sync.Mutex // Protects latest, mags and dirty.
	latest   transport.Message
	mags     []uint8
	dirty    bool

	flushMu     sync.Mutex // Serialises Flush.
	sequenceNum uint32
	packet      []byte // Reused across ticks.
}

// NewUDPPublisher creates a publisher around sender. If the provided
// interval is invalid (<= 0), it defaults to DefaultInterval.
func NewUDPPublisher(interval time.Duration, sender PacketSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	log.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:   sender,
		interval: interval,
		packet:   make([]byte, 0, HeaderSize+1024),
	}, nil
}

// Send records data as the message for the next tick. Values that are not
// pipeline messages are rejected.
func (p *UDPPublisher) Send(data any) error {
	var msg transport.Message
	switch m := data.(type) {
	case transport.Message:
		msg = m
	case *transport.Message:
		if m == nil {
			return errors.New("UDPPublisher: nil message")
		}
		msg = *m
	default:
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}

	p.latestMu.Lock()
	p.mags = append(p.mags[:0], msg.Frame.Magnitudes...)
	msg.Frame.Magnitudes = nil
	msg.Frame.TimeDomain = nil
	p.latest = msg
	p.dirty = true
	p.latestMu.Unlock()
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture for the goroutine to avoid racing on p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.Flush()
			case <-doneChan:
				log.Infof("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		log.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	log.Infof("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// Flush sends the pending message, if any. It reports whether a packet was
// sent.
func (p *UDPPublisher) Flush() bool {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.latestMu.Lock()
	if !p.dirty {
		p.latestMu.Unlock()
		return false
	}
	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, p.latest, p.mags)
	p.dirty = false
	p.latestMu.Unlock()

	if err := p.sender.Send(p.packet); err != nil {
		// The sender logs its own errors.
		return false
	}
	log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
	return true
}

// AppendPacket encodes msg in the packet layout above and appends it to dst.
// mags overrides msg.Frame.Magnitudes when non-nil.
func AppendPacket(dst []byte, seq uint32, msg transport.Message, mags []uint8) []byte {
	if mags == nil {
		mags = msg.Frame.Magnitudes
	}
	if len(mags) > math.MaxUint16 {
		mags = mags[:math.MaxUint16]
	}

	var flags uint8
	if msg.Beat.IsBeat {
		flags |= FlagBeat
	}
	if msg.Haptic.Played {
		flags |= FlagHaptic
	}
	bpm := msg.Beat.BPM
	if bpm < 0 {
		bpm = 0
	} else if bpm > math.MaxUint16 {
		bpm = math.MaxUint16
	}

	var ts int64
	if !msg.Frame.Timestamp.IsZero() {
		ts = msg.Frame.Timestamp.UnixNano()
	}

	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts))
	dst = append(dst, flags)
	dst = binary.BigEndian.AppendUint16(dst, uint16(bpm))
	for _, v := range [...]float64{
		msg.Beat.Confidence,
		msg.Beat.Energy,
		msg.Frame.Volume,
		msg.Frame.Bass,
		msg.Frame.Mid,
		msg.Frame.Treble,
	} {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(mags)))
	return append(dst, mags...)
}

// Packet is the decoded form of a publisher datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Flags      uint8
	BPM        uint16
	Confidence float32
	Energy     float32
	Volume     float32
	Bass       float32
	Mid        float32
	Treble     float32
	Magnitudes []uint8
}

// ErrShortPacket is returned when a datagram is smaller than its header says.
var ErrShortPacket = errors.New("udp: short packet")

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	be := binary.BigEndian
	p := Packet{
		Sequence:  be.Uint32(b[0:]),
		Timestamp: int64(be.Uint64(b[4:])),
		Flags:     b[12],
		BPM:       be.Uint16(b[13:]),
	}
	off := 15
	for _, f := range []*float32{&p.Confidence, &p.Energy, &p.Volume, &p.Bass, &p.Mid, &p.Treble} {
		*f = math.Float32frombits(be.Uint32(b[off:]))
		off += 4
	}
	n := int(be.Uint16(b[off:]))
	off += 2
	if len(b)-off < n {
		return Packet{}, ErrShortPacket
	}
	p.Magnitudes = append([]uint8(nil), b[off:off+n]...)
	return p, nil
}

// Close stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	log.Debugf("UDPPublisher: Close called, stopping publisher...")
	return p.Stop()
}

var _ transport.Transport = (*UDPPublisher)(nil)
