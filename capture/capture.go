// Package capture writes what every station sends and decodes into pcap
// files of 802.11 frames.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/sim"
)

const snapLen = 65535

// A Capture is a medium hook that keeps one trace per station. A station's
// trace holds the frames it sent, stamped at their start, and the frames it
// decoded, stamped at their end.
type Capture struct {
	ap      int
	files   []io.WriteCloser
	writers []*pcapgo.Writer
	packets []uint64
	err     error
}

// New creates the files "<prefix>_<name>.pcap", one per station name.
func New(prefix string, names []string, ap int) (*Capture, error) {
	files := make([]io.WriteCloser, 0, len(names))

	for _, n := range names {
		f, err := os.Create(fmt.Sprintf("%s_%s.pcap", prefix, n))
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}

			return nil, err
		}

		files = append(files, f)
	}

	return NewWithWriters(files, ap)
}

// NewWithWriters writes station i's trace into wcs[i].
func NewWithWriters(wcs []io.WriteCloser, ap int) (*Capture, error) {
	c := &Capture{
		ap:      ap,
		files:   wcs,
		writers: make([]*pcapgo.Writer, len(wcs)),
		packets: make([]uint64, len(wcs)),
	}

	for i, wc := range wcs {
		w := pcapgo.NewWriter(wc)
		if err := w.WriteFileHeader(snapLen, layers.LinkTypeIEEE802_11); err != nil {
			return nil, errors.Join(err, c.Close())
		}

		c.writers[i] = w
	}

	return c, nil
}

// Func writes a finished transmission into the sender's trace and the
// traces of the stations that decoded it.
func (c *Capture) Func(ctx sim.HookCtx) {
	if ctx.Pos != mac.HookPosTxEnd || c.err != nil {
		return
	}

	tx := ctx.Item.(*mac.Transmission)
	d := ctx.Detail.(mac.TxEndDetail)
	frames := Encode(tx.Frame, c.ap)

	c.write(tx.Frame.Src, tx.Start, frames)

	for _, s := range d.Decoders {
		c.write(s, tx.End, frames)
	}
}

func (c *Capture) write(station int, t sim.VTimeInSec, frames [][]byte) {
	if c.err != nil || station < 0 || station >= len(c.writers) {
		return
	}

	ts := time.Unix(0, 0).UTC().Add(time.Duration(float64(t) * 1e9))

	for _, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(data),
			Length:        len(data),
		}

		if err := c.writers[station].WritePacket(ci, data); err != nil {
			c.err = err
			return
		}

		c.packets[station]++
	}
}

// Packets returns the number of records in a station's trace.
func (c *Capture) Packets(station int) uint64 {
	return c.packets[station]
}

// Err returns the first write error. Writing stops after it.
func (c *Capture) Err() error {
	return c.err
}

// Close closes every trace and reports the first write error together with
// any close errors.
func (c *Capture) Close() error {
	errs := []error{c.err}
	for _, f := range c.files {
		errs = append(errs, f.Close())
	}

	c.files = nil

	return errors.Join(errs...)
}
