package engine

import (
	"context"
	"time"

	"github.com/rzbill/pulse/internal/stream"
)

// ConnMeta is the metadata snapshot captured at accept time.
type ConnMeta struct {
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

// connection is the engine's record of one registered client. All fields
// after construction are guarded by Engine.mu.
type connection struct {
	id   string
	meta ConnMeta
	sink Sink

	createdAt  time.Time
	lastActive time.Time
	alive      bool

	// defaultInterval applies when a subscribe omits intervalMs; adjusted
	// by update_config.
	defaultInterval time.Duration

	subs map[string]*subscription
}

// subscription is one active (connection, stream) pair. cancel stops the
// recurring catch-up task in O(1); at most one subscription exists per pair
// (a repeated subscribe cancels and replaces, never stacks).
type subscription struct {
	streamID  string
	interval  time.Duration
	filter    stream.Filter
	cancel    context.CancelFunc
	createdAt time.Time
}

// ConnInfo is the externally visible summary of a connection.
type ConnInfo struct {
	ID            string    `json:"id"`
	Meta          ConnMeta  `json:"meta"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
	Subscriptions []string  `json:"subscriptions"`
}
