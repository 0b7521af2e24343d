package server

// ECU simulator: a TCP endpoint speaking OBD-II service requests framed as
// 13-byte CAN messages.

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/canlink/ecubridge/internal/config"
	"github.com/canlink/ecubridge/internal/dtc"
	"github.com/canlink/ecubridge/internal/logging"
	"github.com/canlink/ecubridge/internal/obd"
)

// FrameRecorder receives every frame the server exchanges, for optional
// capture to a pcap file. Implementations must be safe for concurrent use.
type FrameRecorder interface {
	RecordInbound(f obd.Frame)
	RecordOutbound(f obd.Frame)
}

// Server accepts client connections and runs one isolated dispatch loop per
// connection. The DTC registry is the only state shared across connections;
// everything else, including the stream reassembly buffer, is per-connection.
type Server struct {
	cfg      config.ServerSection
	logger   *logging.Logger
	registry *dtc.Registry
	journal  *dtc.Journal
	recorder FrameRecorder
	sensors  *sensorBank

	listener *net.TCPListener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Option customizes a Server.
type Option func(*Server)

// WithJournal attaches a fault occurrence journal; injected codes are
// recorded there as they appear.
func WithJournal(j *dtc.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithRecorder attaches a frame recorder.
func WithRecorder(r FrameRecorder) Option {
	return func(s *Server) { s.recorder = r }
}

// NewServer creates an ECU simulator.
func NewServer(cfg config.ServerSection, logger *logging.Logger, opts ...Option) *Server {
	seed := cfg.RNGSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: dtc.NewRegistry(),
		sensors:  newSensorBank(rand.New(rand.NewSource(seed))),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the shared fault code set, mainly for tests and the
// lifecycle loop.
func (s *Server) Registry() *dtc.Registry {
	return s.registry
}
