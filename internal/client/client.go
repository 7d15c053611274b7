// Package client is an authenticated HTTP client. It stamps the stored
// bearer token on every request and, when the API answers 401, renews the
// token once for all concurrently failing requests before replaying them.
package client

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/authclient/internal/credential"
	"github.com/raine/authclient/internal/hooks"
	"github.com/raine/authclient/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRefreshPath    = "/auth/refresh"
	DefaultRefreshTimeout = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

type Options struct {
	BaseURL        string
	RefreshPath    string
	RefreshTimeout time.Duration
	RequestTimeout time.Duration
	Store          credential.Store
	Session        *session.State
	Notifier       hooks.Notifier
	Navigator      hooks.Navigator
	Metrics        *Metrics
}

type Client struct {
	httpClient *resty.Client
	// refreshClient has no interceptor, so the rejected access token is
	// never sent to the refresh endpoint.
	refreshClient *resty.Client
	store         credential.Store
	session       *session.State
	refreshPath   string
	coordinator   *Coordinator
}

func NewClient(opts Options) *Client {
	c := &Client{
		store:       opts.Store,
		session:     opts.Session,
		refreshPath: DefaultRefreshPath,
	}
	if c.store == nil {
		c.store = credential.NewMemoryStore()
	}
	if c.session == nil {
		c.session = session.New()
	}
	if opts.RefreshPath != "" {
		c.refreshPath = opts.RefreshPath
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	interceptor := NewInterceptor(c.store)
	c.httpClient = newRestyClient(opts.BaseURL, requestTimeout).
		OnBeforeRequest(interceptor.OnBeforeRequest)
	c.refreshClient = newRestyClient(opts.BaseURL, requestTimeout)

	c.coordinator = NewCoordinator(CoordinatorConfig{
		Store:          c.store,
		Session:        c.session,
		Refresher:      c,
		Replay:         c.replay,
		Notifier:       opts.Notifier,
		Navigator:      opts.Navigator,
		Metrics:        opts.Metrics,
		RefreshTimeout: opts.RefreshTimeout,
	})

	return c
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetDebug(false).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(
			map[string]string{
				"Accept":     "application/json",
				"User-Agent": "authclient/1.0",
			},
		)
}

func (c *Client) Session() *session.State {
	return c.session
}

func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// Login stores a freshly issued credential and starts the session.
func (c *Client) Login(cred credential.Credential) error {
	if err := c.store.SetCredential(cred); err != nil {
		return err
	}
	if err := c.session.SetToken(cred.AccessToken); err != nil {
		log.Warn().Err(err).Msg("access token has unreadable claims")
	}
	return nil
}

// Restore starts the session from a previously stored access token. It
// reports whether one was found.
func (c *Client) Restore() bool {
	token, ok := c.store.AccessToken()
	if !ok {
		return false
	}
	if err := c.session.SetToken(token); err != nil {
		log.Warn().Err(err).Msg("stored access token has unreadable claims")
	}
	return true
}

// Logout ends the session without notifying the user.
func (c *Client) Logout() error {
	c.session.Clear()
	return c.store.Clear()
}

// Do sends req. Responses with a status above 399 are returned together with
// a *StatusError. A 401 on a request that has not been retried yet goes
// through the refresh coordinator first.
func (c *Client) Do(ctx context.Context, req *Request) (*resty.Response, error) {
	res, err := c.send(ctx, req, "")
	if err != nil {
		return res, err
	}
	if res.StatusCode() == http.StatusUnauthorized && !req.Retried {
		return c.coordinator.HandleUnauthorized(ctx, req, res)
	}
	return handleError(req, res)
}

func (c *Client) Get(ctx context.Context, path string, result any) (*resty.Response, error) {
	return c.Do(ctx, NewRequest(http.MethodGet, path).WithResult(result))
}

func (c *Client) Post(ctx context.Context, path string, body, result any) (*resty.Response, error) {
	return c.Do(ctx, NewRequest(http.MethodPost, path).WithBody(body).WithResult(result))
}

func (c *Client) replay(ctx context.Context, req *Request, accessToken string) (*resty.Response, error) {
	res, err := c.send(ctx, req, accessToken)
	if err != nil {
		return res, err
	}
	return handleError(req, res)
}

// send issues req once. A non-empty accessToken overrides whatever the
// interceptor would stamp.
func (c *Client) send(ctx context.Context, req *Request, accessToken string) (*resty.Response, error) {
	r := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetHeader(requestIDHeader, req.ID)

	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if accessToken != "" {
		r.SetHeader("Authorization", bearerPrefix+accessToken)
	}
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.Result != nil {
		r.SetResult(req.Result)
	}

	res, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return res, &TransportError{Method: req.Method, URL: req.Path, Err: err}
	}
	return res, nil
}

// handleError turns failing responses (>399 status code) into errors.
// Without this, failing responses would have nil error.
func handleError(req *Request, res *resty.Response) (*resty.Response, error) {
	if res.IsError() {
		return res, &StatusError{Method: req.Method, URL: req.Path, StatusCode: res.StatusCode()}
	}
	return res, nil
}
