package utils

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// BusWriter transmits frames toward the subsystem controllers.
type BusWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// BusReader receives subsystem status and navigation frames.
type BusReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// SocketBusWriter is the SocketCAN transmit side of the avionics bus.
type SocketBusWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func NewSocketBusWriter(ctx context.Context, iface string) (*SocketBusWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketBusWriter{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

func (w *SocketBusWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketBusWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// SocketBusReader is the SocketCAN receive side of the avionics bus.
type SocketBusReader struct {
	conn net.Conn
	recv *socketcan.Receiver
}

func NewSocketBusReader(ctx context.Context, iface string) (*SocketBusReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketBusReader{conn: conn, recv: socketcan.NewReceiver(conn)}, nil
}

// ReadFrame blocks for the next frame, honoring context cancellation.
func (r *SocketBusReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	frameChan := make(chan can.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		if r.recv.Receive() {
			frameChan <- r.recv.Frame()
		} else {
			errChan <- fmt.Errorf("bus receive failed")
		}
	}()

	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case frame := <-frameChan:
		return frame, nil
	case err := <-errChan:
		return can.Frame{}, err
	}
}

func (r *SocketBusReader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
