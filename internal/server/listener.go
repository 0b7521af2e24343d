package server

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/canlink/ecubridge/internal/obd"
)

// Start binds the TCP listener and launches the accept loop plus the
// background fault lifecycle.
func (s *Server) Start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", s.cfg.ListenIP, s.cfg.TCPPort))
	if err != nil {
		return fmt.Errorf("resolve TCP address: %w", err)
	}

	s.listener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	s.logger.Info("ECU simulator listening on %s", s.listener.Addr())

	if s.cfg.DTCIntervalMs > 0 {
		seed := s.cfg.RNGSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.wg.Add(1)
		go s.faultLifecycle(rand.New(rand.NewSource(seed)), time.Duration(s.cfg.DTCIntervalMs)*time.Millisecond)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound TCP address after Start.
func (s *Server) Addr() *net.TCPAddr {
	if s.listener == nil {
		return nil
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr
	}
	return nil
}

// Stop shuts the server down and waits for every connection loop and the
// fault lifecycle to exit.
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	s.logger.Info("ECU simulator stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection runs the receive→dispatch→respond loop for one client.
// The decoder, and with it any partial trailing frame, dies with the
// connection; other connections and the registry are untouched by failures
// here.
func (s *Server) handleConnection(conn *net.TCPConn) {
	defer s.wg.Done()
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("Client connected: %s", remoteAddr)

	decoder := obd.NewStreamDecoder()
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(1 * time.Second))

		n, err := conn.Read(readBuf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if pending := decoder.Pending(); pending > 0 {
					s.logger.Debug("Discarding %d trailing bytes from %s", pending, remoteAddr)
				}
				s.logger.Info("Client disconnected: %s", remoteAddr)
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			s.logger.Error("Read error from %s: %v", remoteAddr, err)
			return
		}
		if n == 0 {
			continue
		}

		for _, frame := range decoder.Feed(readBuf[:n]) {
			if s.recorder != nil {
				s.recorder.RecordInbound(frame)
			}
			s.logger.LogFrame("<<", frame.ID, frame.Payload())

			req, ok := obd.ParseServiceRequest(frame)
			if !ok {
				// Unknown service, inconsistent length, or foreign
				// arbitration id: stay silent, keep the connection.
				s.logger.Debug("Dropping unsupported request from %s: %v", remoteAddr, frame)
				continue
			}

			payload, ok := s.dispatch(req)
			if !ok {
				s.logger.Debug("Dropping request for unsupported PID 0x%02X from %s", req.PID, remoteAddr)
				continue
			}

			resp := obd.EncodeFrame(obd.ResponseID, payload)
			if _, err := conn.Write(resp[:]); err != nil {
				s.logger.Error("Write error to %s: %v", remoteAddr, err)
				return
			}
			if s.recorder != nil {
				if f, err := obd.DecodeFrame(resp[:]); err == nil {
					s.recorder.RecordOutbound(f)
				}
			}
			s.logger.LogFrame(">>", obd.ResponseID, payload)
		}
	}
}
