package gigauth

import (
	"net/http"
	"net/url"
	"time"
)

// Request is the envelope of one outbound call. It is copied when sent, so a
// caller may reuse or mutate it afterwards without affecting the call.
//
// Body is JSON-encoded unless it is nil, a []byte or a json.RawMessage, which
// are sent as-is. A zero Timeout selects the client's configured default.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Header  http.Header
	Timeout time.Duration

	exchange bool
	bearer   string
}

// Get builds a GET envelope.
func Get(path string) Request {
	return Request{Method: http.MethodGet, Path: path}
}

// Post builds a POST envelope with a JSON body.
func Post(path string, body any) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// Put builds a PUT envelope with a JSON body.
func Put(path string, body any) Request {
	return Request{Method: http.MethodPut, Path: path, Body: body}
}

// Patch builds a PATCH envelope with a JSON body.
func Patch(path string, body any) Request {
	return Request{Method: http.MethodPatch, Path: path, Body: body}
}

// Delete builds a DELETE envelope.
func Delete(path string) Request {
	return Request{Method: http.MethodDelete, Path: path}
}

// WithQuery returns a copy of r with query parameter key set to value.
func (r Request) WithQuery(key, value string) Request {
	q := make(url.Values, len(r.Query)+1)
	for k, v := range r.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, value)
	r.Query = q
	return r
}

// WithHeader returns a copy of r with header key set to value.
func (r Request) WithHeader(key, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// WithTimeout returns a copy of r with a per-call timeout.
func (r Request) WithTimeout(d time.Duration) Request {
	r.Timeout = d
	return r
}

func (r Request) clone() Request {
	out := r
	out.Header = r.Header.Clone()
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	return out
}
