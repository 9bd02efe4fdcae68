package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/net/websocket"

	"github.com/ternledger/tern-go/internal/model"
	"github.com/ternledger/tern-go/internal/scale"
)

// EventHandler receives each decoded event in arrival order. A non-nil err
// reports a frame that failed to decode; the subscription continues after
// decode errors and terminates after transport errors.
type EventHandler func(ev model.Event, err error)

// Subscription is one live event stream. Close is idempotent and may be
// called from inside the handler.
type Subscription struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error

	// quit is closed exactly once to stop the delivery loop; done is
	// closed by the delivery goroutine on exit.
	quit chan struct{}
	done chan struct{}

	// inHandler is set for the duration of each handler invocation, so a
	// Close issued by the handler itself does not wait on the goroutine
	// it is running on.
	inHandler atomic.Bool
}

// Subscribe opens an event stream filtered server-side. The filter is sent
// as the first frame; every following frame is one event, delivered to the
// handler sequentially from a single goroutine. Cancelling ctx closes the
// subscription.
func (c *Client) Subscribe(ctx context.Context, filter model.EventFilter, handler EventHandler) (*Subscription, error) {
	if filter == nil {
		return nil, fmt.Errorf("nil event filter")
	}
	if handler == nil {
		return nil, fmt.Errorf("nil event handler")
	}

	wsConfig, err := websocket.NewConfig(c.eventsURL, c.peerURL+"/")
	if err != nil {
		return nil, fmt.Errorf("invalid events URL %q: %w", c.eventsURL, err)
	}
	conn, err := websocket.DialConfig(wsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	e := scale.NewEncoder()
	model.EncodeEventFilter(e, filter)
	if err := websocket.Message.Send(conn, e.Bytes()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send event filter: %w", err)
	}

	sub := &Subscription{
		conn: conn,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	go sub.receive(handler)
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// receive is the single delivery goroutine. Handler invocations are
// serialized by running here and only here; no lock is held during them, so
// the handler is free to call Close.
func (s *Subscription) receive(handler EventHandler) {
	defer close(s.done)

	for {
		var frame []byte
		err := websocket.Message.Receive(s.conn, &frame)

		select {
		case <-s.quit:
			return
		default:
		}
		if err != nil {
			// Transport failure is terminal: deliver it, then stop.
			s.deliver(handler, nil, fmt.Errorf("event stream closed: %w", err))
			s.shutdown()
			return
		}

		d := scale.NewDecoder(frame)
		ev, decodeErr := model.DecodeEvent(d)
		if decodeErr == nil {
			decodeErr = d.Finish()
		}
		if decodeErr != nil {
			s.deliver(handler, nil, fmt.Errorf("undecodable event frame: %w", decodeErr))
		} else {
			s.deliver(handler, ev, nil)
		}
	}
}

func (s *Subscription) deliver(handler EventHandler, ev model.Event, err error) {
	s.inHandler.Store(true)
	defer s.inHandler.Store(false)
	handler(ev, err)
}

// shutdown stops the delivery loop and tears down the connection without
// waiting for the loop to exit.
func (s *Subscription) shutdown() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Close tears the stream down. Safe to call multiple times and from any
// goroutine, including the handler itself. A Close from outside the handler
// returns only after the delivery goroutine has exited; a Close from inside
// returns immediately, and the invocation it was made from is the last.
func (s *Subscription) Close() error {
	err := s.shutdown()
	if !s.inHandler.Load() {
		<-s.done
	}
	return err
}

// Done is closed when the subscription has fully terminated, whether by
// Close, context cancellation, or a transport failure.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
