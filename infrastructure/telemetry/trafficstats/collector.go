package trafficstats

import "sync/atomic"

// HotPathFlushThresholdBytes bounds how many bytes a Recorder batches
// before flushing into the shared Collector.
const HotPathFlushThresholdBytes = 64 * 1024

// Collector accumulates tunnel-wide RX/TX byte totals.
type Collector struct {
	rxBytes atomic.Uint64
	txBytes atomic.Uint64
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) AddRXBytes(n uint64) { c.rxBytes.Add(n) }
func (c *Collector) AddTXBytes(n uint64) { c.txBytes.Add(n) }

func (c *Collector) RXBytes() uint64 { return c.rxBytes.Load() }
func (c *Collector) TXBytes() uint64 { return c.txBytes.Load() }
