package client

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// Request describes an API call in enough detail to send it again after a
// token refresh. Body must be re-encodable (a struct, map, string or byte
// slice), not a one-shot reader.
type Request struct {
	ID     string
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
	// Result, when set, receives the decoded JSON body of a successful
	// response.
	Result any
	// Retried is set once the request has been through a refresh. A second
	// 401 on a retried request is returned to the caller as is.
	Retried bool
}

func NewRequest(method, path string) *Request {
	return &Request{
		ID:     uuid.NewString(),
		Method: method,
		Path:   path,
		Header: http.Header{},
	}
}

func (r *Request) WithBody(body any) *Request {
	r.Body = body
	return r
}

func (r *Request) WithResult(result any) *Request {
	r.Result = result
	return r
}

func (r *Request) WithQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = url.Values{}
	}
	r.Query.Add(key, value)
	return r
}
