package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/tempo/internal/broadcast"
)

const (
	// maxMessageSize is the maximum size of one JSON line (1MB).
	maxMessageSize = 1024 * 1024
	// readTimeout bounds the wait for a client's first request.
	readTimeout = 30 * time.Second
	// writeTimeout bounds each relayed message to a subscriber.
	writeTimeout = 5 * time.Second
	// socketPermissions are the file permissions for the Unix socket.
	socketPermissions = 0600
)

// Start begins listening on the Unix socket and serving requests.
// It blocks until the context is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("hub already running")
	}
	d.mu.Unlock()

	// Clean up stale socket if it exists
	_ = os.Remove(d.sockPath)

	listener, err := net.Listen("unix", d.sockPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}

	if err := os.Chmod(d.sockPath, socketPermissions); err != nil {
		_ = listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	d.mu.Lock()
	d.listener = listener
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info("hub started", "socket", d.sockPath)

	go d.serve(ctx, listener)

	<-ctx.Done()

	return d.Stop()
}

// Stop closes the listener, disconnects every subscriber and removes the socket.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false

	if d.listener != nil {
		if err := d.listener.Close(); err != nil {
			d.logger.Error("error closing listener", "error", err)
		}
		d.listener = nil
	}
	d.bus.Close()

	_ = os.Remove(d.sockPath)

	d.logger.Info("hub stopped")
	return nil
}

func (d *Daemon) serve(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if !d.Running() {
					return
				}
				d.logger.Error("accept error", "error", err)
				continue
			}
		}

		go d.handleConnection(ctx, conn)
	}
}

// connWriter serializes JSON lines onto a connection.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
}

func newConnWriter(conn net.Conn) *connWriter {
	return &connWriter{conn: conn, enc: json.NewEncoder(conn)}
}

func (w *connWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.enc.Encode(v)
}

// handleConnection reads the first request and either answers it or, for
// subscribe, turns the connection into a relay stream.
func (d *Daemon) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		d.logger.Error("set read deadline error", "error", err)
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	w := newConnWriter(conn)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			_ = w.write(Response{Error: fmt.Sprintf("read error: %v", err)})
		}
		return
	}

	var req Request
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		_ = w.write(Response{Error: fmt.Sprintf("decode error: %v", err)})
		return
	}

	if req.Method == MethodSubscribe {
		d.serveSubscriber(ctx, conn, scanner, w, &req)
		return
	}

	resp := d.handleRequest(&req)
	resp.ID = req.ID
	_ = w.write(resp)
}

// serveSubscriber relays envelopes between one tab and the rest of the session
// until either side goes away.
func (d *Daemon) serveSubscriber(ctx context.Context, conn net.Conn, scanner *bufio.Scanner, w *connWriter, req *Request) {
	var params SubscribeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			_ = w.write(Response{Error: fmt.Sprintf("invalid params: %v", err), ID: req.ID})
			return
		}
	}
	if params.TabID == "" {
		params.TabID = uuid.NewString()
	}

	log := d.logger.With("tab_id", params.TabID)
	ep, err := d.bus.JoinUnique(params.TabID)
	if err != nil {
		log.Warn("subscribe refused", "error", err)
		_ = w.write(Response{Error: err.Error(), ID: req.ID})
		return
	}
	defer func() { _ = ep.Close() }()

	// Subscriptions live until the tab leaves
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return
	}

	if err := w.write(Response{Result: SubscribeResult{SessionID: d.sessionID, TabID: params.TabID}, ID: req.ID}); err != nil {
		log.Warn("subscribe ack failed", "error", err)
		return
	}
	log.Info("tab joined", "tabs", d.bus.Len())

	go func() {
		defer func() { _ = conn.Close() }()
		for {
			select {
			case env, ok := <-ep.Messages():
				if !ok {
					return
				}
				if err := w.write(env); err != nil {
					log.Warn("relay failed", "error", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for scanner.Scan() {
		var in Request
		if err := json.Unmarshal(scanner.Bytes(), &in); err != nil {
			log.Warn("dropping malformed message", "error", err)
			continue
		}
		if in.Method != MethodBroadcast {
			log.Warn("unexpected method on subscription", "method", in.Method)
			continue
		}
		var env broadcast.Envelope
		if err := json.Unmarshal(in.Params, &env); err != nil {
			log.Warn("dropping malformed envelope", "error", err)
			continue
		}
		if err := env.Validate(); err != nil {
			log.Warn("dropping envelope", "error", err)
			continue
		}
		d.remember(env.Data)
		if err := ep.Post(env); err != nil {
			return
		}
	}

	log.Info("tab left", "tabs", d.bus.Len()-1)
}
