package canlink

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// FrameSource yields raw CAN frames. Satisfied by the socketcan receiver
// and by test doubles.
type FrameSource interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// SocketCANSource reads frames from a Linux socketcan interface.
type SocketCANSource struct {
	conn net.Conn
	recv *socketcan.Receiver
}

// NewSocketCANSource opens the named interface (e.g. "can0", "vcan0").
func NewSocketCANSource(ctx context.Context, ifname string) (*SocketCANSource, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("canlink: socketcan dial: %w", err)
	}
	return &SocketCANSource{conn: conn, recv: socketcan.NewReceiver(conn)}, nil
}

// ReadFrame blocks until a frame arrives or the context is cancelled.
func (s *SocketCANSource) ReadFrame(ctx context.Context) (can.Frame, error) {
	frameCh := make(chan can.Frame, 1)
	errCh := make(chan error, 1)
	go func() {
		if s.recv.Receive() {
			frameCh <- s.recv.Frame()
		} else {
			errCh <- fmt.Errorf("canlink: receive failed")
		}
	}()
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-frameCh:
		return f, nil
	case err := <-errCh:
		return can.Frame{}, err
	}
}

// Close closes the underlying socket.
func (s *SocketCANSource) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Feed drains a frame source into the latest-observation slot until the
// context is cancelled. Lead and ego frames update their halves of the
// observation; other identifiers are ignored. Runs on the sensor
// goroutine; the control tick reads the slot without blocking.
func Feed(ctx context.Context, src FrameSource, frames *FrameMap, dst *Latest, now func() time.Time) error {
	var current Observation
	var haveLead, haveEgo bool

	for {
		f, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch f.ID {
		case LeadTrackFrameID:
			vals, err := frames.DecodeFrame(f.ID, f.Data[:f.Length])
			if err != nil {
				continue
			}
			if vals["TRACK_VALID"] < 0.5 {
				continue
			}
			current.LeadDistance = vals["LEAD_DISTANCE"]
			current.LeadSpeed = vals["LEAD_SPEED"]
			current.TimeGap = vals["TIME_GAP"]
			haveLead = true
		case EgoStateFrameID:
			vals, err := frames.DecodeFrame(f.ID, f.Data[:f.Length])
			if err != nil {
				continue
			}
			current.EgoSpeed = vals["EGO_SPEED"]
			current.EgoAccel = vals["EGO_ACCEL"]
			haveEgo = true
		default:
			continue
		}

		if haveLead && haveEgo {
			current.Received = now()
			dst.Store(current)
		}
	}
}
