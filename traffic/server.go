package traffic

import (
	"github.com/sarchlab/hiddenstations/mac"
	"github.com/sarchlab/hiddenstations/sim"
)

// A Server counts the frames received on its port while it is listening and,
// in echo mode, answers each of them.
type Server struct {
	config  ServerConfig
	host    *Host
	counter Counter
	idGen   sim.IDGenerator

	received int
	replied  int
}

// NewServer creates a server and binds it to its port on the host.
func NewServer(
	config ServerConfig,
	host *Host,
	counter Counter,
	idGen sim.IDGenerator,
) (*Server, error) {
	s := &Server{
		config:  config,
		host:    host,
		counter: counter,
		idGen:   idGen,
	}

	if err := host.Listen(config.Port, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Config returns the configuration of the server.
func (s *Server) Config() ServerConfig {
	return s.config
}

// Received returns the number of frames counted.
func (s *Server) Received() int {
	return s.received
}

// Replied returns the number of echo replies handed to the MAC.
func (s *Server) Replied() int {
	return s.replied
}

// Receive counts the frame if it arrives while the server listens.
func (s *Server) Receive(now sim.VTimeInSec, f *mac.Frame) {
	if now < s.config.Start || now >= s.config.Stop {
		return
	}

	s.received++
	s.counter.RecordDelivery(s.config.ID)

	if !s.config.Echo {
		return
	}

	port := f.SrcPort
	if port == 0 {
		port = f.Port
	}

	reply := &mac.Frame{
		ID:          s.idGen.Generate(),
		Kind:        mac.FrameData,
		Dst:         f.SA(),
		Port:        port,
		SrcPort:     f.Port,
		FlowID:      f.FlowID,
		PayloadSize: f.PayloadSize,
		CreatedAt:   now,
	}

	if s.host.Enqueue(reply) {
		s.replied++
	}
}

// A ReplySink counts the echo replies a client receives.
type ReplySink struct {
	counter  Counter
	received int
}

// NewReplySink creates a sink bound to the client's port.
func NewReplySink(host *Host, port int, counter Counter) (*ReplySink, error) {
	s := &ReplySink{counter: counter}

	if err := host.Listen(port, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Received returns the number of replies counted.
func (s *ReplySink) Received() int {
	return s.received
}

// Receive records the reply under the counter of its flow.
func (s *ReplySink) Receive(_ sim.VTimeInSec, f *mac.Frame) {
	s.received++
	s.counter.RecordDelivery(Flow{ID: f.FlowID}.ReplyCounterID())
}
