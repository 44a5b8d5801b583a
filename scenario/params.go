// Package scenario turns typed parameters and a topology into a runnable
// hidden-station simulation.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/sim"
)

// ErrInvalidConfig is wrapped by every error found while building a
// scenario.
var ErrInvalidConfig = errors.New("invalid configuration")

// Params are the knobs of a run.
type Params struct {
	Scenario    string `json:"scenario" yaml:"scenario"`
	PayloadSize int    `json:"payloadSize" yaml:"payloadSize"`

	// SimulationTime is the measured part of the run, in seconds. The run
	// lasts WarmUp + SimulationTime.
	SimulationTime float64 `json:"simulationTime" yaml:"simulationTime"`

	NMpdus    int  `json:"nMpdus" yaml:"nMpdus"`
	EnableRts bool `json:"enableRts" yaml:"enableRts"`

	// NPackets limits the frames per flow. 0 lets the scenario decide.
	NPackets int     `json:"nPackets" yaml:"nPackets"`
	Range    float64 `json:"range" yaml:"range"`
	Seed     int64   `json:"seed" yaml:"seed"`

	// WarmUp is when the clients start, in seconds.
	WarmUp float64 `json:"warmUp" yaml:"warmUp"`

	// ServerStart is when the servers start listening, in seconds.
	ServerStart float64 `json:"serverStart" yaml:"serverStart"`

	// Interval between two frames of a saturating flow, in seconds.
	Interval float64 `json:"interval" yaml:"interval"`

	// AggregationWindow is how long an idle MAC waits to fill an aggregate,
	// in seconds.
	AggregationWindow float64 `json:"aggregationWindow" yaml:"aggregationWindow"`
}

// DefaultParams returns the parameters of the saturated reference run.
func DefaultParams() Params {
	return Params{
		Scenario:       ScenarioSaturated,
		PayloadSize:    1472,
		SimulationTime: 10,
		NMpdus:         1,
		Range:          5,
		Seed:           1,
		WarmUp:         1,
		Interval:       20e-6,
	}
}

// EndTime is when the run stops.
func (p Params) EndTime() sim.VTimeInSec {
	return sim.VTimeInSec(p.WarmUp + p.SimulationTime)
}

// Validate checks the parameters on their own.
func (p Params) Validate() error {
	switch {
	case p.PayloadSize <= 0:
		return fmt.Errorf("%w: payload size %d is not positive",
			ErrInvalidConfig, p.PayloadSize)
	case p.SimulationTime <= 0:
		return fmt.Errorf("%w: simulation time %g is not positive",
			ErrInvalidConfig, p.SimulationTime)
	case p.NMpdus < 1:
		return fmt.Errorf("%w: nMpdus %d is less than 1",
			ErrInvalidConfig, p.NMpdus)
	case p.NPackets < 0:
		return fmt.Errorf("%w: nPackets %d is negative",
			ErrInvalidConfig, p.NPackets)
	case p.Range <= 0:
		return fmt.Errorf("%w: range %g is not positive",
			ErrInvalidConfig, p.Range)
	case p.WarmUp < 0:
		return fmt.Errorf("%w: warm-up %g is negative",
			ErrInvalidConfig, p.WarmUp)
	case p.ServerStart < 0:
		return fmt.Errorf("%w: server start %g is negative",
			ErrInvalidConfig, p.ServerStart)
	case p.Interval <= 0:
		return fmt.Errorf("%w: interval %g is not positive",
			ErrInvalidConfig, p.Interval)
	case p.AggregationWindow < 0:
		return fmt.Errorf("%w: aggregation window %g is negative",
			ErrInvalidConfig, p.AggregationWindow)
	}

	return nil
}

// MACConfig derives the MAC configuration.
func (p Params) MACConfig() mac.Config {
	c := mac.DefaultConfig()

	c.MaxMPDUs = p.NMpdus
	c.MaxAggregateSize = mac.MaxAggregateSizeFor(p.NMpdus, p.PayloadSize)
	c.AggregationWindow = sim.VTimeInSec(p.AggregationWindow)

	if p.EnableRts {
		c.RTSThreshold = 0
	} else {
		c.RTSThreshold = mac.RTSDisabledThreshold
	}

	return c
}

// The environment variables that override the defaults.
const (
	EnvScenario          = "HIDDENSIM_SCENARIO"
	EnvPayloadSize       = "HIDDENSIM_PAYLOAD_SIZE"
	EnvSimulationTime    = "HIDDENSIM_SIMULATION_TIME"
	EnvNMpdus            = "HIDDENSIM_NMPDUS"
	EnvEnableRts         = "HIDDENSIM_ENABLE_RTS"
	EnvNPackets          = "HIDDENSIM_NPACKETS"
	EnvRange             = "HIDDENSIM_RANGE"
	EnvSeed              = "HIDDENSIM_SEED"
	EnvAggregationWindow = "HIDDENSIM_AGGREGATION_WINDOW"
)

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped and variables already set are kept.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return nil
}

// ApplyEnv overrides the parameters with the HIDDENSIM_* variables that are
// set.
func (p *Params) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvScenario); ok {
		p.Scenario = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvPayloadSize, &p.PayloadSize},
		{EnvNMpdus, &p.NMpdus},
		{EnvNPackets, &p.NPackets},
	}
	for _, e := range ints {
		if err := lookupInt(e.name, e.dst); err != nil {
			return err
		}
	}

	floatVars := []struct {
		name string
		dst  *float64
	}{
		{EnvSimulationTime, &p.SimulationTime},
		{EnvRange, &p.Range},
		{EnvAggregationWindow, &p.AggregationWindow},
	}
	for _, e := range floatVars {
		if err := lookupFloat(e.name, e.dst); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv(EnvEnableRts); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvEnableRts, v, err)
		}

		p.EnableRts = b
	}

	if v, ok := os.LookupEnv(EnvSeed); ok {
		s, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvSeed, v, err)
		}

		p.Seed = s
	}

	return nil
}

func lookupInt(name string, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, v, err)
	}

	*dst = n

	return nil
}

func lookupFloat(name string, dst *float64) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, v, err)
	}

	*dst = f

	return nil
}
