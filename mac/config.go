package mac

import (
	"github.com/sarchlab/hiddenstations/sim"
)

// Sizes of the frames on the air, in bytes.
const (
	// MPDUHeaderBytes covers the MAC header, FCS, A-MPDU delimiter, LLC, IP
	// and UDP headers carried with every data MPDU.
	MPDUHeaderBytes = 64

	// AggregateOverhead is the per-MPDU allowance used when deriving the
	// maximum aggregate size from the number of MPDUs.
	AggregateOverhead = 200

	RTSBytes = 20
	CTSBytes = 14
	AckBytes = 32
)

// RTSDisabledThreshold is the threshold used when RTS/CTS is turned off. No
// aggregate in the supported configurations is larger than this.
const RTSDisabledThreshold = 999999

// Config holds the timing and policy parameters of a MAC. The defaults model
// an 802.11n 5 GHz station with data sent at HT MCS7 and control frames at
// HT MCS0.
type Config struct {
	SlotTime sim.VTimeInSec
	SIFS     sim.VTimeInSec
	Preamble sim.VTimeInSec

	// Rates in bit/s.
	DataRate    float64
	ControlRate float64

	CWMin      int
	CWMax      int
	RetryLimit int

	// RTSThreshold in bytes. RTS/CTS protects an exchange whose aggregate is
	// strictly larger than the threshold.
	RTSThreshold int

	// MaxMPDUs is the number of MPDUs an aggregate may carry. 1 disables
	// aggregation.
	MaxMPDUs int

	// MaxAggregateSize caps the aggregate in bytes counted as
	// payload + AggregateOverhead per MPDU. 0 means no byte cap.
	MaxAggregateSize int

	// AggregationWindow is how long an idle MAC waits for more frames before
	// contending. 0 contends as soon as a frame arrives.
	AggregationWindow sim.VTimeInSec

	QueueCapacity int
}

// DefaultConfig returns the 802.11n parameters with RTS/CTS off and no
// aggregation.
func DefaultConfig() Config {
	return Config{
		SlotTime:      sim.Microseconds(9),
		SIFS:          sim.Microseconds(16),
		Preamble:      sim.Microseconds(36),
		DataRate:      65e6,
		ControlRate:   6.5e6,
		CWMin:         15,
		CWMax:         1023,
		RetryLimit:    7,
		RTSThreshold:  RTSDisabledThreshold,
		MaxMPDUs:      1,
		QueueCapacity: 400,
	}
}

// MaxAggregateSizeFor returns nMpdus * (payloadSize + AggregateOverhead).
func MaxAggregateSizeFor(nMpdus, payloadSize int) int {
	return nMpdus * (payloadSize + AggregateOverhead)
}

// DIFS is the idle time required before contending.
func (c Config) DIFS() sim.VTimeInSec {
	return c.SIFS + 2*c.SlotTime
}

// NeedsRTS tells whether an aggregate of the given size is protected by
// RTS/CTS.
func (c Config) NeedsRTS(size int) bool {
	return size > c.RTSThreshold
}

// DataAirtime returns how long a data PSDU of the given size occupies the
// medium.
func (c Config) DataAirtime(bytes int) sim.VTimeInSec {
	return c.Preamble + sim.VTimeInSec(float64(bytes)*8/c.DataRate)
}

// ControlAirtime returns how long a control frame of the given size occupies
// the medium.
func (c Config) ControlAirtime(bytes int) sim.VTimeInSec {
	return c.Preamble + sim.VTimeInSec(float64(bytes)*8/c.ControlRate)
}

// CTSTimeout is measured from the end of the RTS.
func (c Config) CTSTimeout() sim.VTimeInSec {
	return c.SIFS + c.ControlAirtime(CTSBytes) + c.SlotTime
}

// AckTimeout is measured from the end of the data.
func (c Config) AckTimeout() sim.VTimeInSec {
	return c.SIFS + c.ControlAirtime(AckBytes) + c.SlotTime
}
