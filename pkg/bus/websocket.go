// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConfig describes a serial-over-websocket bridge
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// WebSocketPort exposes a websocket bridge to the RS485 bus as a Port. Each
// binary message carries raw bus bytes; other message types are ignored.
type WebSocketPort struct {
	conn     *websocket.Conn
	incoming chan []byte
	done     chan struct{}
	closed   chan struct{}

	mu      sync.Mutex
	buf     []byte
	timeout time.Duration
	readErr error

	closeOnce sync.Once
}

// NewWebSocketPort wraps an established connection and starts its reader
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	w := &WebSocketPort{
		conn:     conn,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
		timeout:  DefaultPollInterval,
	}
	go w.readLoop()
	return w
}

func (w *WebSocketPort) readLoop() {
	defer close(w.closed)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.readErr = err
			w.mu.Unlock()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.incoming <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocketPort) closedErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.readErr != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
	}
	return ErrConnectionClosed
}

// Read returns buffered bytes, or waits up to the read timeout for the next
// message. A timeout returns 0, nil like a serial port.
func (w *WebSocketPort) Read(p []byte) (int, error) {
	w.mu.Lock()
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		w.mu.Unlock()
		return n, nil
	}
	timeout := w.timeout
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-w.incoming:
		w.mu.Lock()
		defer w.mu.Unlock()
		n := copy(p, data)
		w.buf = append(w.buf, data[n:]...)
		return n, nil
	case <-w.closed:
		// Deliver anything queued before the close
		select {
		case data := <-w.incoming:
			w.mu.Lock()
			defer w.mu.Unlock()
			n := copy(p, data)
			w.buf = append(w.buf, data[n:]...)
			return n, nil
		default:
		}
		return 0, w.closedErr()
	case <-timer.C:
		return 0, nil
	}
}

// Write sends p as one binary message
func (w *WebSocketPort) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadTimeout bounds a single Read
func (w *WebSocketPort) SetReadTimeout(t time.Duration) error {
	if t <= 0 {
		return fmt.Errorf("websocket port needs a positive read timeout, got %v", t)
	}
	w.mu.Lock()
	w.timeout = t
	w.mu.Unlock()
	return nil
}

// ResetInputBuffer drops buffered and queued messages
func (w *WebSocketPort) ResetInputBuffer() error {
	w.mu.Lock()
	w.buf = nil
	w.mu.Unlock()
	for {
		select {
		case <-w.incoming:
		default:
			return nil
		}
	}
}

// Drain is a no-op: WriteMessage returns once the frame is handed to the socket
func (w *WebSocketPort) Drain() error {
	return nil
}

// Close closes the connection and stops the reader
func (w *WebSocketPort) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}

// DialWebSocket opens a websocket bridge with optional HTTP Basic auth
func DialWebSocket(c WebSocketConfig) (*WebSocketPort, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: c.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if c.Username != "" && c.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, c.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketPort(conn), nil
}
