package storage

import (
	"net/http"
	"sync"
	"time"
)

type storedCookie struct {
	cookie  http.Cookie
	expires time.Time // zero for session cookies
}

// MemoryCookieJar is a single-origin cookie jar driven by an injectable clock.
// It honors MaxAge (and Expires when MaxAge is unset) the way a browser does.
type MemoryCookieJar struct {
	mu      sync.Mutex
	now     func() time.Time
	cookies map[string]storedCookie
}

// NewMemoryCookieJar creates a jar. A nil clock uses time.Now.
func NewMemoryCookieJar(now func() time.Time) *MemoryCookieJar {
	if now == nil {
		now = time.Now
	}
	return &MemoryCookieJar{now: now, cookies: make(map[string]storedCookie)}
}

// Cookie returns the named cookie, or http.ErrNoCookie when it is absent or expired.
func (j *MemoryCookieJar) Cookie(name string) (*http.Cookie, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stored, ok := j.cookies[name]
	if !ok {
		return nil, http.ErrNoCookie
	}
	if !stored.expires.IsZero() && !j.now().Before(stored.expires) {
		delete(j.cookies, name)
		return nil, http.ErrNoCookie
	}
	c := stored.cookie
	return &c, nil
}

// SetCookie stores or deletes a cookie. A negative MaxAge deletes it.
func (j *MemoryCookieJar) SetCookie(cookie *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	var expires time.Time
	switch {
	case cookie.MaxAge < 0:
		delete(j.cookies, cookie.Name)
		return
	case cookie.MaxAge > 0:
		expires = now.Add(time.Duration(cookie.MaxAge) * time.Second)
	case !cookie.Expires.IsZero():
		if !now.Before(cookie.Expires) {
			delete(j.cookies, cookie.Name)
			return
		}
		expires = cookie.Expires
	}
	j.cookies[cookie.Name] = storedCookie{cookie: *cookie, expires: expires}
}

// Expiry returns when the named cookie expires. ok is false for absent or
// session cookies.
func (j *MemoryCookieJar) Expiry(name string) (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	stored, found := j.cookies[name]
	if !found || stored.expires.IsZero() {
		return time.Time{}, false
	}
	return stored.expires, true
}
