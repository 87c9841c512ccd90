// Package notify delivers user-facing notifications gated on a permission.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Permission is the state of the notification permission.
type Permission string

// Permission states.
const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PermissionProvider answers whether notifications may be shown.
type PermissionProvider interface {
	Permission() Permission
}

// StaticPermission is a fixed permission, typically from configuration.
type StaticPermission Permission

// Permission returns p.
func (p StaticPermission) Permission() Permission {
	return Permission(p)
}

// FromEnabled maps a config switch onto a permission.
func FromEnabled(enabled bool) StaticPermission {
	if enabled {
		return StaticPermission(PermissionGranted)
	}
	return StaticPermission(PermissionDenied)
}

// Options are optional notification fields.
type Options struct {
	Body string
	Tag  string
}

// Sender displays a notification.
type Sender interface {
	Send(title string, opts Options) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(title string, opts Options) error

// Send calls f.
func (f SenderFunc) Send(title string, opts Options) error {
	return f(title, opts)
}

// WriterSender writes one line per notification, optionally ringing the
// terminal bell first.
type WriterSender struct {
	mu   sync.Mutex
	w    io.Writer
	bell bool
	now  func() time.Time
}

// NewWriterSender returns a sender writing to w.
func NewWriterSender(w io.Writer, bell bool) *WriterSender {
	return &WriterSender{w: w, bell: bell, now: time.Now}
}

// Send writes the notification.
func (s *WriterSender) Send(title string, opts Options) error {
	var b strings.Builder
	if s.bell {
		b.WriteByte('\a')
	}
	fmt.Fprintf(&b, "[%s] %s", s.now().Format("15:04:05"), title)
	if opts.Body != "" {
		b.WriteString(": ")
		b.WriteString(opts.Body)
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

// Notifier sends notifications when permission is granted.
type Notifier struct {
	perm   PermissionProvider
	sender Sender
	log    *slog.Logger
}

// New creates a Notifier. A nil logger uses slog.Default().
func New(perm PermissionProvider, sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{perm: perm, sender: sender, log: logger}
}

// SendNotification shows a notification. It is a no-op unless permission
// is granted, and reports whether anything was sent.
func (n *Notifier) SendNotification(title string, opts Options) bool {
	if n == nil || n.perm == nil || n.sender == nil {
		return false
	}
	if n.perm.Permission() != PermissionGranted {
		n.log.Debug("notification suppressed", "title", title)
		return false
	}
	if err := n.sender.Send(title, opts); err != nil {
		n.log.Warn("notification failed", "title", title, "error", err)
		return false
	}
	return true
}

// Notify implements the engines' notifier contract.
func (n *Notifier) Notify(title, body string) {
	n.SendNotification(title, Options{Body: body})
}
