// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/cdp"
	"github.com/gin-gonic/gin"
)

// requestURL reconstructs the absolute URL the browser requested.
func requestURL(c *gin.Context) *url.URL {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return &url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: c.Request.URL.RawQuery,
	}
}

// pageURLFrom parses an explicit page URL, falling back to the Referer and then
// to the request itself.
func pageURLFrom(c *gin.Context, explicit string) (*url.URL, error) {
	if explicit != "" {
		return url.Parse(explicit)
	}
	if referer := c.GetHeader("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil {
			return u, nil
		}
	}
	return requestURL(c), nil
}

// sdkErrorStatus maps SDK service errors to HTTP statuses.
func sdkErrorStatus(err error) int {
	var statusErr *cdp.StatusError
	switch {
	case errors.Is(err, services.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, cdp.ErrInvalidRegion),
		errors.Is(err, cdp.ErrWriteKeyRequired),
		errors.Is(err, services.ErrEventRequired),
		errors.Is(err, services.ErrInvalidJSON):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
