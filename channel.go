package trafgen

// channel.go holds the outbound channel abstraction consumed by generators and
// two models of it over a Link: a reliable, congestion-controlled stream
// (Reno-style window) and an unreliable datagram channel

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Channel is a socket-like sender
type Channel interface {
	Bind() error
	Connect(peer string) error
	Send(data []byte) error
	Close() error
}

type chanState int

const (
	chanIdle chanState = iota
	chanBound
	chanConnected
	chanClosed
)

// defaults for StreamConfig
const (
	DefaultMSS         = 536
	DefaultSendBuffer  = 131072
	DefaultInitialCwnd = 10  // segments
	minRTO             = 0.2 // seconds
)

// StreamConfig holds the optional parameters of a StreamChannel.  Zero values select defaults
type StreamConfig struct {
	Name        string
	MSS         int // bytes per segment
	SendBuffer  int // bytes accepted but not yet sent
	InitialCwnd int // segments
}

// StreamChannel is a reliable, ordered channel.  Data is segmented at MSS and
// released onto the link while the bytes in flight stay under the congestion
// window.  Acknowledgements return one link delay after arrival.  A segment the
// link drops is put back at the head of the send buffer and the window is halved,
// at most once per round trip
type StreamChannel struct {
	name  string
	sched Scheduler
	link  *Link
	sink  *PacketSink

	mss         int
	sndBufLimit int

	state chanState
	peer  string

	sndBuf   int // bytes accepted, not yet segmented
	inflight int // bytes segmented, not yet acknowledged or lost

	cwnd     *TracedValue
	ssthresh uint32

	lastCut  float64
	cutValid bool
	rtoEvent *Event

	retransmits uint64

	log *logrus.Entry
}

// NewStreamChannel creates a stream over link delivering to sink, which may be nil
func NewStreamChannel(sched Scheduler, link *Link, sink *PacketSink, cfg StreamConfig) *StreamChannel {
	if cfg.MSS <= 0 {
		cfg.MSS = DefaultMSS
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.InitialCwnd <= 0 {
		cfg.InitialCwnd = DefaultInitialCwnd
	}
	sc := &StreamChannel{
		name:        cfg.Name,
		sched:       sched,
		link:        link,
		sink:        sink,
		mss:         cfg.MSS,
		sndBufLimit: cfg.SendBuffer,
		cwnd:        NewTracedValue(uint32(cfg.InitialCwnd * cfg.MSS)),
		ssthresh:    math.MaxUint32,
		log:         componentLogger("stream", cfg.Name),
	}
	return sc
}

func (sc *StreamChannel) SetLogger(l *logrus.Entry) { sc.log = l }

// CongestionWindow is the trace source of the congestion window, in bytes
func (sc *StreamChannel) CongestionWindow() *TracedValue { return sc.cwnd }

// Ssthresh is the current slow start threshold in bytes
func (sc *StreamChannel) Ssthresh() uint32 { return sc.ssthresh }

// Buffered is the number of bytes accepted by Send and not yet segmented
func (sc *StreamChannel) Buffered() int { return sc.sndBuf }

// InFlight is the number of bytes segmented and not yet acknowledged
func (sc *StreamChannel) InFlight() int { return sc.inflight }

// Retransmits counts segments put back in the send buffer after a drop
func (sc *StreamChannel) Retransmits() uint64 { return sc.retransmits }

func (sc *StreamChannel) Bind() error {
	if sc.state == chanClosed {
		return transportErr("bind", sc.peer, ErrChannelClosed)
	}
	if sc.state == chanIdle {
		sc.state = chanBound
	}
	return nil
}

func (sc *StreamChannel) Connect(peer string) error {
	if sc.state == chanClosed {
		return transportErr("connect", peer, ErrChannelClosed)
	}
	sc.peer = peer
	sc.state = chanConnected
	return nil
}

// Send accepts data into the send buffer
func (sc *StreamChannel) Send(data []byte) error {
	switch sc.state {
	case chanClosed:
		return transportErr("send", sc.peer, ErrChannelClosed)
	case chanConnected:
	default:
		return transportErr("send", sc.peer, ErrNotConnected)
	}
	if sc.sndBuf+len(data) > sc.sndBufLimit {
		return transportErr("send", sc.peer, ErrSendBufferFull)
	}
	sc.sndBuf += len(data)
	sc.trySend(sc.sched.Now())
	return nil
}

// Close refuses further data.  Buffered data is still delivered
func (sc *StreamChannel) Close() error {
	if sc.state == chanClosed {
		return transportErr("close", sc.peer, ErrChannelClosed)
	}
	sc.state = chanClosed
	return nil
}

// trySend moves segments from the send buffer to the link while the window allows
func (sc *StreamChannel) trySend(now float64) {
	for sc.sndBuf > 0 && sc.inflight < int(sc.cwnd.Get()) {
		seg := min(sc.mss, sc.sndBuf)
		sc.sndBuf -= seg
		sc.inflight += seg
		if !sc.link.Enqueue(seg, sc.arrival(seg)) {
			sc.loss(now, seg)
			return
		}
	}
}

// arrival builds the callback run when a segment reaches the far end
func (sc *StreamChannel) arrival(seg int) EventFunc {
	return func(now float64) {
		if sc.sink != nil {
			sc.sink.Receive(now, seg)
		}
		sc.sched.Schedule(sc.link.Delay(), func(now float64) {
			sc.ack(now, seg)
		})
	}
}

func (sc *StreamChannel) ack(now float64, seg int) {
	sc.inflight -= seg
	cw := sc.cwnd.Get()
	// the window grows only while the sender is using it; an
	// application-limited stream keeps what it has
	if sc.sndBuf > 0 || sc.inflight+sc.mss >= int(cw) {
		sc.cwnd.Set(sc.grow(cw, seg))
	}
	sc.trySend(now)
}

// grow is the window after seg bytes are acknowledged, saturating at MaxUint32
func (sc *StreamChannel) grow(cw uint32, seg int) uint32 {
	var inc uint32
	if cw < sc.ssthresh {
		// slow start
		inc = uint32(min(seg, sc.mss))
	} else {
		inc = uint32(sc.mss*sc.mss) / cw
		if inc == 0 {
			inc = 1
		}
	}
	if cw > math.MaxUint32-inc {
		return math.MaxUint32
	}
	return cw + inc
}

func (sc *StreamChannel) rtt() float64 {
	return 2.0*sc.link.Delay() + sc.link.serviceTime(sc.mss)
}

// loss returns a dropped segment to the send buffer and reduces the window
func (sc *StreamChannel) loss(now float64, seg int) {
	sc.inflight -= seg
	sc.sndBuf += seg
	sc.retransmits += 1

	if !sc.cutValid || now-sc.lastCut >= sc.rtt() {
		half := sc.cwnd.Get() / 2
		floor := uint32(2 * sc.mss)
		if half < floor {
			half = floor
		}
		sc.ssthresh = half
		sc.cwnd.Set(half)
		sc.lastCut = now
		sc.cutValid = true
		sc.log.WithField("cwnd", half).Debug("window halved after drop")
	}

	// with nothing in flight no acknowledgement will restart sending
	if sc.inflight == 0 && !sc.rtoEvent.Pending() {
		sc.rtoEvent = sc.sched.Schedule(math.Max(sc.rtt(), minRTO), func(now float64) {
			sc.rtoEvent = nil
			sc.trySend(now)
		})
	}
}

// DatagramChannel is an unreliable channel: each Send becomes one frame on the
// link, and a frame the link drops is lost without error
type DatagramChannel struct {
	name  string
	sched Scheduler
	link  *Link
	sink  *PacketSink

	state chanState
	peer  string

	sent    uint64
	dropped uint64
}

// NewDatagramChannel creates a datagram channel over link delivering to sink, which may be nil
func NewDatagramChannel(sched Scheduler, link *Link, sink *PacketSink, name string) *DatagramChannel {
	return &DatagramChannel{name: name, sched: sched, link: link, sink: sink}
}

// Sent counts datagrams accepted by the link
func (dc *DatagramChannel) Sent() uint64 { return dc.sent }

// Dropped counts datagrams the link refused
func (dc *DatagramChannel) Dropped() uint64 { return dc.dropped }

func (dc *DatagramChannel) Bind() error {
	if dc.state == chanClosed {
		return transportErr("bind", dc.peer, ErrChannelClosed)
	}
	if dc.state == chanIdle {
		dc.state = chanBound
	}
	return nil
}

func (dc *DatagramChannel) Connect(peer string) error {
	if dc.state == chanClosed {
		return transportErr("connect", peer, ErrChannelClosed)
	}
	dc.peer = peer
	dc.state = chanConnected
	return nil
}

func (dc *DatagramChannel) Send(data []byte) error {
	switch dc.state {
	case chanClosed:
		return transportErr("send", dc.peer, ErrChannelClosed)
	case chanConnected:
	default:
		return transportErr("send", dc.peer, ErrNotConnected)
	}
	size := len(data)
	var arrive EventFunc
	if dc.sink != nil {
		sink := dc.sink
		arrive = func(now float64) { sink.Receive(now, size) }
	}
	if dc.link.Enqueue(size, arrive) {
		dc.sent += 1
	} else {
		dc.dropped += 1
	}
	return nil
}

func (dc *DatagramChannel) Close() error {
	if dc.state == chanClosed {
		return transportErr("close", dc.peer, ErrChannelClosed)
	}
	dc.state = chanClosed
	return nil
}
