// Package hooks contains the collaborators invoked when a session is torn
// down: a notification sink and a navigation sink.
package hooks

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Notifier tells the user that their session ended.
//
// It is called while the client is still tearing the session down.
// Implementations must not send requests through the same client: a 401 on
// such a request waits for the teardown that is waiting on the notifier, and
// never returns.
type Notifier interface {
	NotifySessionExpired(message string)
}

// Navigator sends the user back to the login entry point. The same
// restriction as for Notifier applies: no requests through the client that
// invoked it.
type Navigator interface {
	RedirectToLogin()
}

type NotifierFunc func(message string)

func (f NotifierFunc) NotifySessionExpired(message string) { f(message) }

type NavigatorFunc func()

func (f NavigatorFunc) RedirectToLogin() { f() }

// LogNotifier writes the notification to the global logger.
type LogNotifier struct{}

func (LogNotifier) NotifySessionExpired(message string) {
	log.Warn().Str("message", message).Msg("session expired")
}

// LogNavigator only records that a login redirect was requested.
type LogNavigator struct{}

func (LogNavigator) RedirectToLogin() {
	log.Info().Msg("redirecting to login")
}

// Recorder counts hook invocations. Useful in tests and for callers that poll
// for a forced logout instead of reacting to it.
type Recorder struct {
	mu        sync.Mutex
	messages  []string
	redirects int
}

func (r *Recorder) NotifySessionExpired(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *Recorder) RedirectToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects++
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Recorder) Redirects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redirects
}
