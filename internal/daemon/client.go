package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/npratt/tempo/internal/broadcast"
	"github.com/npratt/tempo/internal/sharedstate"
)

const (
	// DefaultClientTimeout is the default timeout for client operations.
	DefaultClientTimeout = 5 * time.Second

	// subscriptionBuffer is the receive queue length of a Subscription.
	subscriptionBuffer = 64
)

// ErrNotRunning is returned when no hub is listening on the socket.
var ErrNotRunning = errors.New("hub not running")

// Client connects to the hub via Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a new hub client.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

func newRequest(method string, params any) (Request, error) {
	req := Request{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return req, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}

// call sends a one-shot request and decodes the result into out.
func (c *Client) call(method string, params, out any) error {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	req, err := newRequest(method, params)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return decodeResponse(json.NewDecoder(conn), out)
}

// decodeResponse reads one Response and re-decodes its result into out.
func decodeResponse(dec *json.Decoder, out any) error {
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := dec.Decode(&resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("hub error: %s", resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// wrapConnError converts connection errors to user-friendly messages.
func (c *Client) wrapConnError(err error) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return fmt.Errorf("%w (socket not found)", ErrNotRunning)
		case syscall.ECONNREFUSED:
			return fmt.Errorf("%w (connection refused)", ErrNotRunning)
		}
	}

	if os.IsNotExist(err) {
		return fmt.Errorf("%w (socket not found)", ErrNotRunning)
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("hub request timed out")
	}

	return fmt.Errorf("connect to hub: %w", err)
}

// Status returns the current hub status.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	if err := c.call(MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Reset asks the hub to broadcast a zeroed snapshot to every tab.
func (c *Client) Reset() (sharedstate.Snapshot, error) {
	var snap sharedstate.Snapshot
	err := c.call(MethodReset, nil, &snap)
	return snap, err
}

// IsRunning checks if the hub is running by attempting to connect.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Subscribe joins the hub's broadcast channel as tabID. The returned
// Subscription stays open until Close, ctx cancellation, or hub shutdown.
func (c *Client) Subscribe(ctx context.Context, tabID string) (*Subscription, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.sockPath)
	if err != nil {
		return nil, c.wrapConnError(err)
	}

	fail := func(err error) (*Subscription, error) {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fail(fmt.Errorf("set deadline: %w", err))
	}
	req, err := newRequest(MethodSubscribe, SubscribeParams{TabID: tabID})
	if err != nil {
		return fail(err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fail(fmt.Errorf("send subscribe: %w", err))
	}

	reader := bufio.NewReader(conn)
	dec := json.NewDecoder(reader)
	var ack SubscribeResult
	if err := decodeResponse(dec, &ack); err != nil {
		return fail(err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return fail(fmt.Errorf("clear deadline: %w", err))
	}

	s := &Subscription{
		conn:      conn,
		sessionID: ack.SessionID,
		tabID:     ack.TabID,
		timeout:   c.timeout,
		ch:        make(chan broadcast.Envelope, subscriptionBuffer),
		done:      make(chan struct{}),
	}
	go s.readLoop(dec)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Subscription is a tab's streaming connection to the hub. It implements
// broadcast.Channel.
type Subscription struct {
	conn      net.Conn
	sessionID string
	tabID     string
	timeout   time.Duration
	ch        chan broadcast.Envelope

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var _ broadcast.Channel = (*Subscription)(nil)

// SessionID returns the hub's session id.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// TabID returns the id the hub knows this tab by.
func (s *Subscription) TabID() string {
	return s.tabID
}

// Broadcast sends snap to every other tab of the session.
func (s *Subscription) Broadcast(snap sharedstate.Snapshot) error {
	select {
	case <-s.done:
		return broadcast.ErrClosed
	default:
	}

	req, err := newRequest(MethodBroadcast, broadcast.NewUpdate(s.tabID, snap))
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := json.NewEncoder(s.conn).Encode(req); err != nil {
		return fmt.Errorf("send broadcast: %w", err)
	}
	return nil
}

// Messages yields envelopes from other tabs. Closed when the subscription ends.
func (s *Subscription) Messages() <-chan broadcast.Envelope {
	return s.ch
}

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close leaves the channel. Safe to call multiple times.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Subscription) readLoop(dec *json.Decoder) {
	defer close(s.ch)
	defer func() { _ = s.Close() }()

	for {
		var env broadcast.Envelope
		if err := dec.Decode(&env); err != nil {
			return
		}
		if env.Validate() != nil {
			continue
		}
		select {
		case s.ch <- env:
		default:
			slog.Warn("broadcast dropped: subscription queue full", "sender", env.Sender)
		}
	}
}
