package canlink

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// FrameSink accepts outbound CAN frames.
type FrameSink interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// SocketCANSink transmits frames on a Linux socketcan interface.
type SocketCANSink struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// NewSocketCANSink opens the named interface for transmission.
func NewSocketCANSink(ctx context.Context, ifname string) (*SocketCANSink, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("canlink: socketcan dial: %w", err)
	}
	return &SocketCANSink{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

// WriteFrame transmits a single frame.
func (s *SocketCANSink) WriteFrame(ctx context.Context, frame can.Frame) error {
	return s.tx.TransmitFrame(ctx, frame)
}

// Close closes the underlying socket.
func (s *SocketCANSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
