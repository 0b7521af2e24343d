package dtc

// Registry of active diagnostic trouble codes shared between connection
// handlers and the background fault lifecycle.

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/canlink/ecubridge/internal/obd"
)

// Catalog is the closed pool of powertrain codes the simulator can raise.
var Catalog = []obd.DTC{
	{High: 0x01, Low: 0x33}, // P0133 O2 sensor circuit slow response
	{High: 0x01, Low: 0x71}, // P0171 system too lean (bank 1)
	{High: 0x01, Low: 0x74}, // P0174 system too lean (bank 2)
	{High: 0x03, Low: 0x00}, // P0300 random/multiple cylinder misfire
	{High: 0x03, Low: 0x01}, // P0301 cylinder 1 misfire
	{High: 0x04, Low: 0x20}, // P0420 catalyst efficiency below threshold
	{High: 0x04, Low: 0x40}, // P0440 EVAP system malfunction
	{High: 0x05, Low: 0x62}, // P0562 system voltage low
}

// Descriptions maps rendered codes to the short fault text shown when no
// lookup service is reachable.
var Descriptions = map[string]string{
	"P0133": "O2 Sensor Circuit Slow Response",
	"P0171": "System Too Lean (Bank 1)",
	"P0174": "System Too Lean (Bank 2)",
	"P0300": "Random/Multiple Cylinder Misfire",
	"P0301": "Cylinder 1 Misfire Detected",
	"P0420": "Catalyst System Efficiency Below Threshold",
	"P0440": "EVAP System Malfunction",
	"P0562": "System Voltage Low",
}

// Lifecycle tuning. An injection tick fires with probability injectChance
// while fewer than maxActive codes are set; a clear tick fires with
// probability clearChance when any code is active.
const (
	maxActive    = 5
	injectChance = 0.7
	clearChance  = 0.1
)

// Registry is a mutex-guarded set of active codes. Add and Remove are
// idempotent; Snapshot copies under the lock so callers iterate freely.
type Registry struct {
	mu     sync.Mutex
	active map[obd.DTC]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[obd.DTC]struct{})}
}

// Add marks a code active. Adding a present code is a no-op; the return
// value reports whether the code was newly added.
func (r *Registry) Add(code obd.DTC) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[code]; ok {
		return false
	}
	r.active[code] = struct{}{}
	return true
}

// Remove clears a code. Removing an absent code is a no-op.
func (r *Registry) Remove(code obd.DTC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, code)
}

// Len returns the number of active codes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Snapshot returns a point-in-time copy of the active set, sorted by raw
// byte pair so output is stable.
func (r *Registry) Snapshot() []obd.DTC {
	r.mu.Lock()
	out := make([]obd.DTC, 0, len(r.active))
	for code := range r.active {
		out = append(out, code)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].High != out[j].High {
			return out[i].High < out[j].High
		}
		return out[i].Low < out[j].Low
	})
	return out
}

// ClearAll empties the set unconditionally.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = make(map[obd.DTC]struct{})
}

// TickResult describes what one lifecycle tick did.
type TickResult struct {
	Injected *obd.DTC
	Cleared  *obd.DTC
}

// Tick runs one step of the randomized fault lifecycle: maybe inject a
// catalog code that is not yet active, maybe clear one that is. When the
// dice land on an action with no eligible code, that action is a no-op.
func (r *Registry) Tick(rng *rand.Rand) TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res TickResult

	if rng.Float64() < injectChance && len(r.active) < maxActive {
		candidates := make([]obd.DTC, 0, len(Catalog))
		for _, code := range Catalog {
			if _, ok := r.active[code]; !ok {
				candidates = append(candidates, code)
			}
		}
		if len(candidates) > 0 {
			code := candidates[rng.Intn(len(candidates))]
			r.active[code] = struct{}{}
			res.Injected = &code
		}
	}

	if len(r.active) > 0 && rng.Float64() < clearChance {
		current := make([]obd.DTC, 0, len(r.active))
		for code := range r.active {
			current = append(current, code)
		}
		sort.Slice(current, func(i, j int) bool {
			if current[i].High != current[j].High {
				return current[i].High < current[j].High
			}
			return current[i].Low < current[j].Low
		})
		code := current[rng.Intn(len(current))]
		delete(r.active, code)
		res.Cleared = &code
	}

	return res
}
