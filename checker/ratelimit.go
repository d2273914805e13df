package checker

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Probe rate bounds in requests per second.
	minProbeRate = 1.0
	maxProbeRate = 200.0

	// DefaultTargetRTT is the round-trip time the adaptive limiter steers towards.
	DefaultTargetRTT = 500 * time.Millisecond

	// rttSmoothing weights a new RTT observation in the moving average.
	rttSmoothing = 0.2
	// speedUpFactor is applied to the rate while probes come back quickly.
	speedUpFactor = 1.1
	// maxSlowDown caps how far the rate may fall after one slow probe.
	maxSlowDown = 0.5
)

// AdaptiveLimiter paces probes across every document in an invocation.
// It slows down when hosts answer slower than the target round-trip time and
// speeds up again when they recover. A fixed limiter ignores observations.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration

	mu          sync.Mutex
	avgRTT      time.Duration
	currentRate float64
	fixed       bool
}

// NewAdaptiveLimiter creates a limiter starting at rps requests per second.
// A non-positive targetRTT selects DefaultTargetRTT.
func NewAdaptiveLimiter(rps int, targetRTT time.Duration) *AdaptiveLimiter {
	if targetRTT <= 0 {
		targetRTT = DefaultTargetRTT
	}
	r := clampRate(float64(rps))
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(r), burstFor(r)),
		targetRTT:   targetRTT,
		avgRTT:      targetRTT,
		currentRate: r,
	}
}

// NewFixedLimiter creates a limiter that keeps rps regardless of observed RTTs.
func NewFixedLimiter(rps int) *AdaptiveLimiter {
	l := NewAdaptiveLimiter(rps, 0)
	l.fixed = true
	return l
}

// Wait blocks until the next probe may start or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT feeds one probe's round-trip time into the moving average and
// adjusts the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fixed || rtt <= 0 {
		return
	}

	a.avgRTT = time.Duration(rttSmoothing*float64(rtt) + (1-rttSmoothing)*float64(a.avgRTT))
	ratio := float64(a.targetRTT) / float64(a.avgRTT)

	next := a.currentRate * speedUpFactor
	if ratio < 1 {
		next = math.Max(a.currentRate*ratio, a.currentRate*maxSlowDown)
	}
	next = clampRate(next)

	if math.Abs(next-a.currentRate) > 0.1 {
		a.currentRate = next
		a.limiter.SetLimit(rate.Limit(next))
		a.limiter.SetBurst(burstFor(next))
	}
}

// CurrentRate returns the current rate in requests per second.
func (a *AdaptiveLimiter) CurrentRate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(math.Round(a.currentRate))
}

// AverageRTT returns the moving average of observed round-trip times.
func (a *AdaptiveLimiter) AverageRTT() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avgRTT
}

func clampRate(rps float64) float64 {
	return math.Min(math.Max(rps, minProbeRate), maxProbeRate)
}

func burstFor(rps float64) int {
	return int(math.Ceil(rps))
}
