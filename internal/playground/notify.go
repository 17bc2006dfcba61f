// Package playground holds the page controllers that compose the widget
// core: the try-chatbot page backed by a live session and the customize page
// with its local preview.
package playground

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/widget"
)

// notifier fans state changes out to subscribers, which re-render.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func (n *notifier) subscribe(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func())
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type options struct {
	initial        widget.VisibilityState
	requestTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		initial:        widget.Open,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
		now:            time.Now,
	}
}

// Option configures a page controller.
type Option func(*options)

// WithInitialVisibility sets whether the widget starts open or closed.
func WithInitialVisibility(s widget.VisibilityState) Option {
	return func(o *options) { o.initial = s }
}

// WithRequestTimeout bounds every backend call made by the controller.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
