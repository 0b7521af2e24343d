package server

import (
	"math/rand"
	"time"
)

// faultLifecycle periodically mutates the shared DTC registry, independent
// of any client connection: each tick may inject one inactive catalog code
// or clear one active code. It is the registry's only writer besides the
// service 0x04 handler.
func (s *Server) faultLifecycle(rng *rand.Rand, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			res := s.registry.Tick(rng)
			if res.Injected != nil {
				s.logger.Info("New DTC: %s", res.Injected)
				if s.journal != nil {
					if _, err := s.journal.Record(*res.Injected, time.Now()); err != nil {
						s.logger.Error("Journal write failed: %v", err)
					}
				}
			}
			if res.Cleared != nil {
				s.logger.Info("Cleared DTC: %s", res.Cleared)
			}
		}
	}
}
