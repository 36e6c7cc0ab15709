package storage

import (
	"net/http"
)

// HTTPCookieJar exposes the cookies of one request and emits Set-Cookie headers
// on its response. Cookies set during the request are visible to later reads.
type HTTPCookieJar struct {
	req     *http.Request
	w       http.ResponseWriter
	pending map[string]*http.Cookie
}

// NewHTTPCookieJar wraps a request/response pair.
func NewHTTPCookieJar(w http.ResponseWriter, req *http.Request) *HTTPCookieJar {
	return &HTTPCookieJar{req: req, w: w, pending: make(map[string]*http.Cookie)}
}

// Cookie returns the named cookie, preferring values written during this request.
func (j *HTTPCookieJar) Cookie(name string) (*http.Cookie, error) {
	if c, ok := j.pending[name]; ok {
		if c.MaxAge < 0 {
			return nil, http.ErrNoCookie
		}
		out := *c
		return &out, nil
	}
	return j.req.Cookie(name)
}

// SetCookie writes a Set-Cookie header and records the value for this request.
func (j *HTTPCookieJar) SetCookie(cookie *http.Cookie) {
	c := *cookie
	j.pending[c.Name] = &c
	http.SetCookie(j.w, &c)
}
