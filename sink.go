package trafgen

// PacketSink is the receiving application at the far end of a channel.  It
// consumes whatever arrives and counts it
type PacketSink struct {
	name    string
	rxBytes ByteCounter
	packets uint64
	last    float64 // time of the latest arrival
}

// NewPacketSink is a constructor
func NewPacketSink(name string) *PacketSink {
	return &PacketSink{name: name}
}

func (ps *PacketSink) Name() string { return ps.name }

// Receive accepts size bytes arriving at time now
func (ps *PacketSink) Receive(now float64, size int) {
	ps.rxBytes.Add(size)
	ps.packets += 1
	ps.last = now
}

// RxBytes is the cumulative count of bytes received
func (ps *PacketSink) RxBytes() *ByteCounter { return &ps.rxBytes }

// Packets is the number of arrivals
func (ps *PacketSink) Packets() uint64 { return ps.packets }

// LastArrival is the simulation time of the most recent arrival
func (ps *PacketSink) LastArrival() float64 { return ps.last }
