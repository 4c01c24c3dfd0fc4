package relay

import (
	"math/rand/v2"
	"sync/atomic"
)

// Picker selects an index in [0, n). Injected into the Relay so the endpoint
// selection policy (uniform random, round-robin, weighted) is swappable and
// independently testable. Implementations must be safe for concurrent use
// and must not be biased toward a fixed first endpoint.
type Picker func(n int) int

// RandomPicker selects endpoints uniformly at random.
func RandomPicker() Picker {
	return func(n int) int {
		if n <= 1 {
			return 0
		}
		return rand.IntN(n)
	}
}

// RoundRobinPicker cycles through endpoints in order.
func RoundRobinPicker() Picker {
	var counter atomic.Uint64
	return func(n int) int {
		if n <= 1 {
			return 0
		}
		return int((counter.Add(1) - 1) % uint64(n))
	}
}
