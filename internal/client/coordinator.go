package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/authclient/internal/credential"
	"github.com/raine/authclient/internal/hooks"
	"github.com/raine/authclient/internal/session"
	"github.com/rs/zerolog/log"
)

const SessionExpiredMessage = "Your session has expired. Please log in again."

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credential.Credential, error)
}

// ReplayFunc re-issues req with the given access token.
type ReplayFunc func(ctx context.Context, req *Request, accessToken string) (*resty.Response, error)

// CoordinatorConfig wires a Coordinator. Store, Refresher and Replay are
// required; the rest fall back to defaults.
type CoordinatorConfig struct {
	Store     credential.Store
	Session   *session.State
	Refresher Refresher
	Replay    ReplayFunc
	Notifier  hooks.Notifier
	Navigator hooks.Navigator
	Metrics   *Metrics
	// RefreshTimeout bounds the refresh call. Expiry counts as a rejected
	// refresh.
	RefreshTimeout time.Duration
}

// pendingCaller is a request parked until the in-flight refresh settles.
// The coordinator resolves or rejects it exactly once.
type pendingCaller struct {
	req  *Request
	done chan refreshOutcome
}

type refreshOutcome struct {
	accessToken string
	err         error
}

func (p *pendingCaller) resolve(accessToken string) {
	p.done <- refreshOutcome{accessToken: accessToken}
}

func (p *pendingCaller) reject(err error) {
	p.done <- refreshOutcome{err: err}
}

func (p *pendingCaller) wait() (string, error) {
	o := <-p.done
	return o.accessToken, o.err
}

// Coordinator turns authorization failures into a single shared token
// refresh. While a refresh is in flight every other failing request is
// queued behind it and is replayed, or rejected, once it settles.
//
// inFlight and queue are guarded by mu. The queue is only non-empty while
// inFlight is true and is drained under the same lock that clears inFlight.
type Coordinator struct {
	store          credential.Store
	session        *session.State
	refresher      Refresher
	replay         ReplayFunc
	notifier       hooks.Notifier
	navigator      hooks.Navigator
	metrics        *Metrics
	refreshTimeout time.Duration

	mu       sync.Mutex
	inFlight bool
	queue    []*pendingCaller

	// onSettle, when set, is called under mu for each queued caller as it
	// is resolved or rejected.
	onSettle func(p *pendingCaller, err error)
}

// NewCoordinator panics if Store, Refresher or Replay is nil.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	switch {
	case cfg.Store == nil:
		panic("client: NewCoordinator requires a Store")
	case cfg.Refresher == nil:
		panic("client: NewCoordinator requires a Refresher")
	case cfg.Replay == nil:
		panic("client: NewCoordinator requires a Replay func")
	}

	c := &Coordinator{
		store:          cfg.Store,
		session:        cfg.Session,
		refresher:      cfg.Refresher,
		replay:         cfg.Replay,
		notifier:       cfg.Notifier,
		navigator:      cfg.Navigator,
		metrics:        cfg.Metrics,
		refreshTimeout: cfg.RefreshTimeout,
	}
	if c.session == nil {
		c.session = session.New()
	}
	if c.notifier == nil {
		c.notifier = hooks.LogNotifier{}
	}
	if c.navigator == nil {
		c.navigator = hooks.LogNavigator{}
	}
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = DefaultRefreshTimeout
	}
	return c
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Queued returns the number of requests waiting on the in-flight refresh.
func (c *Coordinator) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// HandleUnauthorized takes over a request that got a 401. The caller must
// not pass requests that are already marked Retried.
func (c *Coordinator) HandleUnauthorized(ctx context.Context, req *Request, original *resty.Response) (*resty.Response, error) {
	req.Retried = true

	c.mu.Lock()
	if c.inFlight {
		p := &pendingCaller{req: req, done: make(chan refreshOutcome, 1)}
		c.queue = append(c.queue, p)
		c.mu.Unlock()

		c.metrics.enqueue()
		log.Debug().Str("requestId", req.ID).Msg("waiting for token refresh")

		token, err := p.wait()
		if err != nil {
			return original, err
		}
		return c.doReplay(ctx, req, token)
	}

	// The token was renewed after this request went out
	if sent, ok := bearerToken(original); ok {
		if current, ok := c.store.AccessToken(); ok && current != sent {
			c.mu.Unlock()
			log.Debug().Str("requestId", req.ID).Msg("replaying request sent with a stale token")
			return c.doReplay(ctx, req, current)
		}
	}

	c.inFlight = true
	c.mu.Unlock()

	token, err := c.refresh(ctx, req)
	if err != nil {
		c.fail(err)
		if errors.Is(err, ErrNoRefreshToken) {
			return original, &StatusError{
				Method:     req.Method,
				URL:        req.Path,
				StatusCode: http.StatusUnauthorized,
				Err:        err,
			}
		}
		return original, err
	}

	c.succeed(token)
	return c.doReplay(ctx, req, token)
}

func (c *Coordinator) refresh(ctx context.Context, req *Request) (string, error) {
	refreshToken, ok := c.store.RefreshToken()
	if !ok {
		log.Warn().Str("requestId", req.ID).Msg("no refresh token stored")
		c.metrics.refresh(outcomeNoRefreshToken)
		return "", ErrNoRefreshToken
	}

	log.Info().Str("requestId", req.ID).Msg("refreshing access token")

	// The refresh is shared by every queued caller, so it must not be
	// cancelled along with the caller that happened to start it.
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	cred, err := c.refresher.Refresh(refreshCtx, refreshToken)
	if err != nil {
		var rejected *RefreshRejectedError
		if !errors.As(err, &rejected) {
			err = &RefreshRejectedError{Err: err}
		}
		log.Error().Err(err).Str("requestId", req.ID).Msg("token refresh failed")
		c.metrics.refresh(outcomeRejected)
		return "", err
	}

	if err := c.store.SetCredential(cred); err != nil {
		log.Warn().Err(err).Msg("failed to persist refreshed tokens")
	}
	if err := c.session.SetToken(cred.AccessToken); err != nil {
		log.Warn().Err(err).Msg("refreshed access token has unreadable claims")
	}

	c.metrics.refresh(outcomeSuccess)
	log.Info().Str("requestId", req.ID).Msg("token refresh successful")
	return cred.AccessToken, nil
}

// succeed hands the new token to every queued caller in FIFO order and
// returns to idle.
func (c *Coordinator) succeed(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.queue {
		p.resolve(token)
		if c.onSettle != nil {
			c.onSettle(p, nil)
		}
	}
	if n := len(c.queue); n > 0 {
		log.Debug().Int("queued", n).Msg("released queued requests")
	}
	c.queue = nil
	c.inFlight = false
}

// fail tears down the session once, rejects every queued caller with err in
// FIFO order and returns to idle. inFlight stays set during teardown so that
// late failures join the queue instead of starting another refresh.
func (c *Coordinator) fail(err error) {
	if clearErr := c.store.Clear(); clearErr != nil {
		log.Warn().Err(clearErr).Msg("failed to clear stored tokens")
	}
	c.session.Clear()
	c.metrics.forcedLogout()
	c.notifier.NotifySessionExpired(SessionExpiredMessage)
	c.navigator.RedirectToLogin()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.queue {
		p.reject(err)
		if c.onSettle != nil {
			c.onSettle(p, err)
		}
	}
	c.queue = nil
	c.inFlight = false
}

func (c *Coordinator) doReplay(ctx context.Context, req *Request, token string) (*resty.Response, error) {
	res, err := c.replay(ctx, req, token)
	c.metrics.replay(err)
	if err != nil {
		log.Debug().Err(err).Str("requestId", req.ID).Msg("replayed request failed")
	}
	return res, err
}
