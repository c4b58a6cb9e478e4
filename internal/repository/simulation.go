package repository

import (
	"context"
	"math/rand/v2"
	"time"
)

// Defaults of the simulated network.
const (
	DefaultDelay     = 800 * time.Millisecond
	DefaultErrorRate = 0.1
)

// Simulation decides how long a call takes and whether it fails. It is
// consulted once per call, before any lookup or mutation.
type Simulation interface {
	// Wait blocks for the artificial latency.
	Wait(ctx context.Context) error
	// Fail reports whether this call should fail regardless of its input.
	Fail() bool
}

// RandomSimulation sleeps a fixed delay and fails with a fixed probability.
type RandomSimulation struct {
	Delay     time.Duration
	ErrorRate float64
}

// NewRandomSimulation returns a RandomSimulation with the given parameters.
func NewRandomSimulation(delay time.Duration, errorRate float64) *RandomSimulation {
	return &RandomSimulation{Delay: delay, ErrorRate: errorRate}
}

func (s *RandomSimulation) Wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RandomSimulation) Fail() bool {
	return s.ErrorRate > 0 && rand.Float64() < s.ErrorRate
}

// NoSimulation answers immediately and never fails.
type NoSimulation struct{}

func (NoSimulation) Wait(context.Context) error { return nil }
func (NoSimulation) Fail() bool                 { return false }
