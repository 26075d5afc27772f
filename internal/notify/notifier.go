package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

// LoggerNotifier writes notifications through a blog.Logger.
type LoggerNotifier struct {
	Logger blog.Logger
}

// Notify implements blog.Notifier.
func (n LoggerNotifier) Notify(message string, level blog.Level) {
	fields := map[string]interface{}{"notification": true}

	switch level {
	case blog.LevelError:
		n.Logger.Error(message, fields)
	case blog.LevelWarning:
		n.Logger.Warn(message, fields)
	default:
		n.Logger.Info(message, fields)
	}
}

// WriterNotifier prints "level: message" lines, typically to stderr.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify implements blog.Notifier.
func (n *WriterNotifier) Notify(message string, level blog.Level) {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, _ = fmt.Fprintf(n.w, "%s: %s\n", level, message)
}

// Notification is one recorded notification.
type Notification struct {
	Message string
	Level   blog.Level
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

// Notify implements blog.Notifier.
func (r *Recorder) Notify(message string, level blog.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications = append(r.notifications, Notification{Message: message, Level: level})
}

// Notifications returns a copy of everything recorded so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification(nil), r.notifications...)
}

// Messages returns the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	messages := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		messages = append(messages, n.Message)
	}

	return messages
}
