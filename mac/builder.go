package mac

import (
	"log"
	"math/rand"

	"github.com/sarchlab/hiddenstations/sim"
)

// Builder can build MACs.
type Builder struct {
	engine  sim.Engine
	medium  *Medium
	config  Config
	seed    int64
	idGen   sim.IDGenerator
	station int
}

// MakeBuilder returns a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
		seed:   1,
	}
}

// WithEngine sets the engine that the MAC uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithMedium sets the medium the MAC transmits on.
func (b Builder) WithMedium(medium *Medium) Builder {
	b.medium = medium
	return b
}

// WithConfig sets the timing and policy parameters.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithSeed sets the seed of the backoff random number generator.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithIDGenerator sets the generator of frame IDs.
func (b Builder) WithIDGenerator(g sim.IDGenerator) Builder {
	b.idGen = g
	return b
}

// WithStation sets the index of the station in the visibility graph.
func (b Builder) WithStation(index int) Builder {
	b.station = index
	return b
}

// Build creates a MAC and attaches it to the medium.
func (b Builder) Build(name string) *MAC {
	if b.engine == nil {
		log.Panic("engine is not set")
	}

	if b.medium == nil {
		log.Panic("medium is not set")
	}

	b.mustBeValidConfig()

	m := &MAC{
		ComponentBase: sim.NewComponentBase(name),
		index:         b.station,
		engine:        b.engine,
		medium:        b.medium,
		cfg:           b.config,
		rng:           rand.New(rand.NewSource(b.seed)),
		idGen:         b.idGen,
		cw:            b.config.CWMin,
	}

	if m.idGen == nil {
		m.idGen = sim.NewSequentialIDGenerator()
	}

	b.medium.attach(m)

	return m
}

func (b Builder) mustBeValidConfig() {
	c := b.config

	if c.SlotTime <= 0 || c.SIFS <= 0 {
		log.Panic("slot time and SIFS must be positive")
	}

	if c.DataRate <= 0 || c.ControlRate <= 0 {
		log.Panic("rates must be positive")
	}

	if c.CWMin < 0 || c.CWMax < c.CWMin {
		log.Panicf("invalid contention window [%d, %d]", c.CWMin, c.CWMax)
	}

	if c.RetryLimit < 1 {
		log.Panic("retry limit must be at least 1")
	}

	if c.MaxMPDUs < 1 {
		log.Panic("an aggregate must be allowed at least one MPDU")
	}

	if c.QueueCapacity < 1 {
		log.Panic("queue capacity must be positive")
	}
}
