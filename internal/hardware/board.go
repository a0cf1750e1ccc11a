package hardware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/cybot/internal/monitoring"
	"github.com/banshee-data/cybot/internal/timeutil"
)

var logBoard = monitoring.Component("board")

// LineLink is the line-oriented transport to the sensor board. A
// serialmux.SerialMux configured for line framing satisfies it.
type LineLink interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
}

// BoardOptions configures a Board.
type BoardOptions struct {
	Servo          ServoCalibration
	ServoSettle    time.Duration
	RangingTimeout time.Duration
	CommandTimeout time.Duration
}

// Board talks to the sensor and drive board over a line protocol:
//
//	SERVO <match>  -> OK
//	PING <cycle>   -> EDGE <cycle> <tick>, EDGE <cycle> <tick>
//	IR             -> IR <millivolts>
//	WHEELS <l> <r>    (no reply)
//	ODOM           -> ODOM <distance_mm> <angle_deg> <bump_left> <bump_right>
//
// Only one request is in flight at a time. EDGE lines are routed to the
// pulse capture; every other line is treated as a reply.
type Board struct {
	link    LineLink
	clock   timeutil.Clock
	opts    BoardOptions
	capture *PulseCapture

	subID   string
	replies chan string
	done    chan struct{}

	reqMu sync.Mutex
}

// NewBoard subscribes to link and starts routing its lines. Close releases
// the subscription.
func NewBoard(link LineLink, clock timeutil.Clock, opts BoardOptions) *Board {
	id, lines := link.Subscribe()
	b := &Board{
		link:    link,
		clock:   clock,
		opts:    opts,
		capture: NewPulseCapture(clock),
		subID:   id,
		replies: make(chan string, 4),
		done:    make(chan struct{}),
	}
	go b.route(lines)
	return b
}

// Close unsubscribes from the link and waits for the router to stop.
func (b *Board) Close() error {
	b.link.Unsubscribe(b.subID)
	<-b.done
	return nil
}

func (b *Board) route(lines <-chan string) {
	defer close(b.done)
	for line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "EDGE "); ok {
			cycle, tick, err := parseEdge(rest)
			if err != nil {
				logBoard("bad edge %q: %v", line, err)
				continue
			}
			if !b.capture.Edge(cycle, tick) {
				logBoard("stray edge %q", line)
			}
			continue
		}
		select {
		case b.replies <- line:
		default:
			logBoard("dropping unsolicited line %q", line)
		}
	}
}

// parseEdge splits "<cycle> <tick>".
func parseEdge(fields string) (cycle, tick uint32, err error) {
	var c, t uint64
	f := strings.Fields(fields)
	if len(f) != 2 {
		return 0, 0, fmt.Errorf("want 2 fields, got %d", len(f))
	}
	if c, err = strconv.ParseUint(f[0], 10, 32); err != nil {
		return 0, 0, err
	}
	if t, err = strconv.ParseUint(f[1], 10, 32); err != nil {
		return 0, 0, err
	}
	return uint32(c), uint32(t), nil
}

// drain discards replies left over from an earlier timed-out request.
func (b *Board) drain() {
	for {
		select {
		case line := <-b.replies:
			logBoard("discarding stale reply %q", line)
		default:
			return
		}
	}
}

// request sends command and waits for a reply starting with prefix.
func (b *Board) request(ctx context.Context, command, prefix string) (string, error) {
	b.drain()
	if err := b.link.SendCommand(command); err != nil {
		return "", fmt.Errorf("send %q: %w", command, err)
	}

	timer := b.clock.NewTimer(b.opts.CommandTimeout)
	defer timer.Stop()
	for {
		select {
		case line := <-b.replies:
			if strings.HasPrefix(line, prefix) {
				return line, nil
			}
			logBoard("unexpected reply %q to %q", line, command)
		case <-timer.C():
			return "", fmt.Errorf("%q: %w", command, ErrTimeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// MoveTo positions the sensor servo and waits for it to settle.
func (b *Board) MoveTo(ctx context.Context, degrees int) error {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	if _, err := b.request(ctx, fmt.Sprintf("SERVO %d", b.opts.Servo.MatchValue(degrees)), "OK"); err != nil {
		return err
	}
	b.clock.Sleep(b.opts.ServoSettle)
	return nil
}

// ReadAcoustic fires one ping and converts the echo to centimetres.
func (b *Board) ReadAcoustic(ctx context.Context) (int, error) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	cycle, err := b.capture.Arm()
	if err != nil {
		return 0, err
	}
	if err := b.link.SendCommand(fmt.Sprintf("PING %d", cycle)); err != nil {
		b.capture.abandon()
		return 0, fmt.Errorf("send PING: %w", err)
	}
	pulse, err := b.capture.Await(ctx, b.opts.RangingTimeout)
	if err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	return int(EchoDistance(pulse.Rise, pulse.Fall)), nil
}

// ReadOptical samples the infrared sensor.
func (b *Board) ReadOptical(ctx context.Context) (int, error) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	line, err := b.request(ctx, "IR", "IR ")
	if err != nil {
		return 0, err
	}
	mv, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "IR ")))
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", line, err)
	}
	return IRDistance(mv), nil
}

// SetWheels sends a velocity command without waiting for a reply.
func (b *Board) SetWheels(ctx context.Context, left, right int) error {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	if err := b.link.SendCommand(fmt.Sprintf("WHEELS %d %d", left, right)); err != nil {
		return fmt.Errorf("send WHEELS: %w", err)
	}
	return nil
}

// Poll refreshes odometry and bumper state.
func (b *Board) Poll(ctx context.Context) (Reading, error) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	line, err := b.request(ctx, "ODOM", "ODOM ")
	if err != nil {
		return Reading{}, err
	}
	return parseOdom(line)
}

func parseOdom(line string) (Reading, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Reading{}, fmt.Errorf("parse %q: want 4 values, got %d", line, len(fields)-1)
	}
	dist, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("parse distance in %q: %w", line, err)
	}
	angle, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("parse angle in %q: %w", line, err)
	}
	return Reading{
		DistanceMM: dist,
		AngleDeg:   angle,
		BumpLeft:   fields[3] == "1",
		BumpRight:  fields[4] == "1",
	}, nil
}
