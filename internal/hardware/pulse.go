package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/cybot/internal/timeutil"
)

// Pulse is a captured echo: counter values at the rising and falling edge.
type Pulse struct {
	Rise uint32
	Fall uint32
}

// PulseCapture is the hand-off between an edge producer (the board link
// reader) and the one ranging call waiting for the result. Only one cycle
// may be outstanding: Arm fails until the previous pulse is consumed by
// Await or abandoned by a timeout. Every cycle carries a tag that the board
// echoes with each edge, so late edges of an abandoned cycle never land in
// the next one.
type PulseCapture struct {
	clock timeutil.Clock

	mu     sync.Mutex
	armed  bool
	cycle  uint32
	edges  int
	rise   uint32
	result chan Pulse
}

// NewPulseCapture returns an idle capture.
func NewPulseCapture(clock timeutil.Clock) *PulseCapture {
	return &PulseCapture{clock: clock, result: make(chan Pulse, 1)}
}

// Arm starts a cycle and returns its tag. Tags are never 0.
func (p *PulseCapture) Arm() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.armed || len(p.result) > 0 {
		return 0, ErrCycleInProgress
	}
	p.cycle++
	if p.cycle == 0 {
		p.cycle = 1
	}
	p.armed = true
	p.edges = 0
	return p.cycle, nil
}

// Edge records one edge of cycle. The first edge after Arm is the rise, the
// second the fall, which completes the pulse. Edges outside the armed cycle
// are dropped and reported false.
func (p *PulseCapture) Edge(cycle, tick uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.armed || cycle != p.cycle {
		return false
	}
	p.edges++
	if p.edges == 1 {
		p.rise = tick
		return true
	}
	p.armed = false
	p.result <- Pulse{Rise: p.rise, Fall: tick}
	return true
}

// Await blocks for the pulse of the armed cycle. On timeout or cancellation
// the cycle is abandoned so the next Arm can proceed.
func (p *PulseCapture) Await(ctx context.Context, timeout time.Duration) (Pulse, error) {
	timer := p.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case pulse := <-p.result:
		return pulse, nil
	case <-timer.C():
		p.abandon()
		return Pulse{}, ErrTimeout
	case <-ctx.Done():
		p.abandon()
		return Pulse{}, ctx.Err()
	}
}

func (p *PulseCapture) abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = false
	select {
	case <-p.result:
	default:
	}
}
