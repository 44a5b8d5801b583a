// Package metrics counts delivered frames and turns the counts into
// throughput once a run is over.
package metrics

import (
	"fmt"
	"log"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/hiddenstations/sim"
)

type counter struct {
	id          string
	label       string
	payloadSize int
	delivered   uint64
}

// A Collector keeps one delivery counter per server or reply flow. It is
// owned by one run and is not safe for concurrent use.
type Collector struct {
	counters []*counter
	byID     map[string]*counter
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byID: make(map[string]*counter)}
}

// RegisterCounter adds a counter. Counters are reported in registration
// order.
func (c *Collector) RegisterCounter(id, label string, payloadSize int) error {
	if _, found := c.byID[id]; found {
		return fmt.Errorf("counter %q is already registered", id)
	}

	if payloadSize <= 0 {
		return fmt.Errorf("counter %q: payload size %d is not positive",
			id, payloadSize)
	}

	ct := &counter{id: id, label: label, payloadSize: payloadSize}
	c.counters = append(c.counters, ct)
	c.byID[id] = ct

	return nil
}

// RecordDelivery counts one delivered frame.
func (c *Collector) RecordDelivery(id string) {
	ct, found := c.byID[id]
	if !found {
		log.Panicf("delivery recorded for unknown counter %q", id)
	}

	ct.delivered++
}

// Delivered returns the count of a counter.
func (c *Collector) Delivered(id string) uint64 {
	ct, found := c.byID[id]
	if !found {
		return 0
	}

	return ct.delivered
}

// Report computes the throughput of every counter over the given duration.
func (c *Collector) Report(duration sim.VTimeInSec) Report {
	if duration <= 0 {
		log.Panicf("cannot report over a duration of %g s", duration)
	}

	r := Report{Duration: duration}
	for _, ct := range c.counters {
		r.Entries = append(r.Entries, Entry{
			ID:          ct.id,
			Label:       ct.label,
			PayloadSize: ct.payloadSize,
			Delivered:   ct.delivered,
			Throughput:  Throughput(ct.delivered, ct.payloadSize, duration),
		})
	}

	return r
}

// Throughput returns delivered * payloadSize * 8 / duration / 1e6 in Mbit/s.
func Throughput(
	delivered uint64,
	payloadSize int,
	duration sim.VTimeInSec,
) float64 {
	return float64(delivered) * float64(payloadSize) * 8 /
		float64(duration) / 1e6
}

// Entry is the result of one counter.
type Entry struct {
	ID          string
	Label       string
	PayloadSize int
	Delivered   uint64

	// Throughput in Mbit/s.
	Throughput float64
}

// Line formats the entry as "<label> Throughput: <value> Mbit/s".
func (e Entry) Line() string {
	return e.Label + " Throughput: " +
		strconv.FormatFloat(e.Throughput, 'g', 6, 64) + " Mbit/s"
}

// A Report holds the throughput of every counter of a run.
type Report struct {
	Duration sim.VTimeInSec
	Entries  []Entry
}

// Lines returns one line per counter.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		lines = append(lines, e.Line())
	}

	return lines
}

// Find returns the entry of a counter.
func (r Report) Find(id string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.ID == id {
			return e, true
		}
	}

	return Entry{}, false
}

// Summary aggregates the throughput of a report.
type Summary struct {
	Total  float64
	Mean   float64
	StdDev float64

	// Fairness is Jain's index, 1 when every counter gets the same share.
	Fairness float64
}

// Summary computes the aggregate statistics of the report.
func (r Report) Summary() Summary {
	if len(r.Entries) == 0 {
		return Summary{}
	}

	x := make([]float64, len(r.Entries))
	for i, e := range r.Entries {
		x[i] = e.Throughput
	}

	s := Summary{
		Total: floats.Sum(x),
		Mean:  stat.Mean(x, nil),
	}

	if len(x) > 1 {
		s.StdDev = stat.StdDev(x, nil)
	}

	sumSq := floats.Dot(x, x)
	if sumSq > 0 {
		s.Fairness = s.Total * s.Total / (float64(len(x)) * sumSq)
	}

	return s
}
