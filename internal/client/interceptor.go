package client

import (
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/raine/authclient/internal/credential"
)

const bearerPrefix = "Bearer "

// Interceptor stamps the stored access token onto outgoing requests.
type Interceptor struct {
	store credential.Store
}

func NewInterceptor(store credential.Store) *Interceptor {
	return &Interceptor{store: store}
}

// Apply sets "Authorization: Bearer <token>" when an access token is stored.
// Headers that already carry an Authorization value, such as replays, and
// requests made while no token is stored are left untouched.
func (i *Interceptor) Apply(h http.Header) {
	if h.Get("Authorization") != "" {
		return
	}
	token, ok := i.store.AccessToken()
	if !ok {
		return
	}
	h.Set("Authorization", bearerPrefix+token)
}

// OnBeforeRequest is the resty request middleware form of Apply.
func (i *Interceptor) OnBeforeRequest(_ *resty.Client, r *resty.Request) error {
	i.Apply(r.Header)
	return nil
}

// bearerToken returns the bearer token a response's request was sent with.
// ok is false when the request carried no Authorization header or a
// non-bearer scheme.
func bearerToken(res *resty.Response) (token string, ok bool) {
	if res == nil || res.Request == nil {
		return "", false
	}
	return strings.CutPrefix(res.Request.Header.Get("Authorization"), bearerPrefix)
}
