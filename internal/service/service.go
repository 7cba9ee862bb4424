// Package service implements the session and data-synchronization engine of
// the ticketing client: the SessionStore owns the bearer token and user
// record, the Synchronizer owns the server-backed collections, and the
// Engine ties both to the navigation reducer and to subscribers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/gateway"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
)

// API is the remote ticketing API as seen through the gateway.
// *gateway.Client satisfies it.
type API interface {
	Request(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error)
}

var _ API = (*gateway.Client)(nil)

// Options holds the collaborators shared by the SessionStore and the
// Synchronizer. Every field is optional.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Notifier Notifier
	// OnChange is called after every state change, never with a lock held.
	OnChange func()
	// LegacyAuthHeuristic additionally treats any bearer-call error whose
	// message mentions 401, 403, unauthorized, forbidden or token as an
	// authorization failure.
	LegacyAuthHeuristic bool
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.OnChange == nil {
		o.OnChange = func() {}
	}
	return o
}

// ParseError reports a persisted session entry that could not be decoded.
// It is handled like an authorization failure.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("corrupt persisted %s: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// errStaleSession is returned when a result arrives after the session it was
// requested under has been torn down. The result is discarded.
var errStaleSession = errors.New("session changed while the request was in flight")

// Teardown reasons, used as the metrics label.
const (
	ReasonUserLogout      = "user_logout"
	ReasonAuthFailure     = "auth_failure"
	ReasonCorruptSession  = "corrupt_session"
	ReasonSessionReplaced = "session_replaced"
)
