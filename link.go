package trafgen

// link.go models a point-to-point link: a drop-tail FIFO feeding a
// serializer of fixed bandwidth, followed by a fixed propagation delay.
// The link counts the bytes it puts on the wire, which is the quantity
// throughput samplers watch

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultQueueLimit is the frame capacity of a link queue when none is configured
const DefaultQueueLimit = 100

// LinkConfig describes a link
type LinkConfig struct {
	Name       string
	Bandwidth  float64 // bits per second
	Delay      float64 // propagation delay, seconds
	QueueLimit int     // frames waiting for the serializer, including the one in service
}

// frame is a unit queued for transmission
type frame struct {
	size   int
	arrive EventFunc
}

// Link is a serializing, delaying, drop-tail link
type Link struct {
	name       string
	sched      Scheduler
	bandwidth  float64
	delay      float64
	queueLimit int

	queue []frame
	busy  bool

	txBytes ByteCounter
	txCount uint64
	drops   uint64
	txHooks []func(size int)

	metrics *Metrics
	log     *logrus.Entry
}

// NewLink is a constructor
func NewLink(sched Scheduler, cfg LinkConfig) (*Link, error) {
	if !(cfg.Bandwidth > 0.0) || math.IsInf(cfg.Bandwidth, 0) {
		return nil, errors.Wrapf(ErrInvalidRate, "link %s: bandwidth %v", cfg.Name, cfg.Bandwidth)
	}
	if cfg.Delay < 0.0 || math.IsNaN(cfg.Delay) || math.IsInf(cfg.Delay, 0) {
		return nil, errors.Wrapf(ErrInvalidParam, "link %s: delay %v", cfg.Name, cfg.Delay)
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = DefaultQueueLimit
	}
	lnk := &Link{
		name:       cfg.Name,
		sched:      sched,
		bandwidth:  cfg.Bandwidth,
		delay:      cfg.Delay,
		queueLimit: cfg.QueueLimit,
		queue:      make([]frame, 0),
		log:        componentLogger("link", cfg.Name),
	}
	return lnk, nil
}

func (lnk *Link) SetMetrics(m *Metrics)     { lnk.metrics = m }
func (lnk *Link) SetLogger(l *logrus.Entry) { lnk.log = l }

func (lnk *Link) Name() string       { return lnk.name }
func (lnk *Link) Bandwidth() float64 { return lnk.bandwidth }
func (lnk *Link) Delay() float64     { return lnk.delay }

// TxBytes is the cumulative count of bytes whose transmission has completed
func (lnk *Link) TxBytes() *ByteCounter { return &lnk.txBytes }

// TxFrames is the number of frames whose transmission has completed
func (lnk *Link) TxFrames() uint64 { return lnk.txCount }

// Drops is the number of frames refused because the queue was full
func (lnk *Link) Drops() uint64 { return lnk.drops }

// QueueLen is the number of frames waiting, including the one being serialized
func (lnk *Link) QueueLen() int { return len(lnk.queue) }

// OnTxEnd adds a hook called with the frame size each time a transmission completes
func (lnk *Link) OnTxEnd(hook func(size int)) {
	lnk.txHooks = append(lnk.txHooks, hook)
}

// serviceTime is the time the serializer spends on size bytes
func (lnk *Link) serviceTime(size int) float64 {
	return roundFloat(float64(size)*8.0/lnk.bandwidth, rdigits)
}

// Enqueue offers a frame of size bytes.  arrive, if not nil, runs when the frame
// reaches the far end.  The return is false if the frame was dropped
func (lnk *Link) Enqueue(size int, arrive EventFunc) bool {
	if len(lnk.queue) >= lnk.queueLimit {
		lnk.drops += 1
		lnk.metrics.linkDrop(lnk.name)
		lnk.log.WithField("size", size).Debug("frame dropped")
		return false
	}
	lnk.queue = append(lnk.queue, frame{size: size, arrive: arrive})
	if !lnk.busy {
		lnk.startTx()
	}
	return true
}

func (lnk *Link) startTx() {
	lnk.busy = true
	lnk.sched.Schedule(lnk.serviceTime(lnk.queue[0].size), lnk.txEnd)
}

// txEnd completes the frame at the head of the queue
func (lnk *Link) txEnd(now float64) {
	var frm frame
	frm, lnk.queue = lnk.queue[0], lnk.queue[1:]
	lnk.txBytes.Add(frm.size)
	lnk.txCount += 1
	for _, hook := range lnk.txHooks {
		hook(frm.size)
	}
	if frm.arrive != nil {
		lnk.sched.Schedule(lnk.delay, frm.arrive)
	}
	if len(lnk.queue) > 0 {
		lnk.startTx()
	} else {
		lnk.busy = false
	}
}
