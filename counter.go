package trafgen

// Counter is a cumulative, non-decreasing quantity that can be read at any time
type Counter interface {
	Value() uint64
}

// ByteCounter accumulates bytes.  The component that owns it writes it (a
// link counting transmitted bytes, a sink counting received bytes); samplers
// hold it as a Counter and only read
type ByteCounter struct {
	total uint64
}

// Add increases the count by n bytes
func (bc *ByteCounter) Add(n int) {
	if n > 0 {
		bc.total += uint64(n)
	}
}

// Value returns the cumulative count
func (bc *ByteCounter) Value() uint64 {
	return bc.total
}
