package session

import (
	"net/http"
	"net/url"
	"strings"
)

// CookieName is the cookie carrying the signed session token.  The rest
// of the platform reads the same name.
const CookieName = "ft_session"

// DefaultMaxAge is the default session cookie lifetime in seconds (7 days).
const DefaultMaxAge = 7 * 24 * 60 * 60

// BuildSetCookie wraps a serialized session token into the cookie this
// service issues.  The adapter holds no cryptographic logic; the token
// is opaque here.  Secure should be true in production deployments.
func BuildSetCookie(token string, maxAge int, secure bool) *http.Cookie {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// BuildClearCookie returns a cookie with the same name and attributes
// but an empty value and Max-Age=0, instructing the browser to drop the
// session immediately.  net/http serializes MaxAge=0 by omitting the
// attribute; MaxAge<0 is what emits Max-Age=0 on the wire.
func BuildClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ReadFromHeader parses a raw `k=v; k2=v2` Cookie header and returns
// the value of the named cookie, or "" when absent.  Each pair is split
// on the first "=" and both sides are percent-decoded; a value that
// fails to decode is returned as-is rather than dropped.
func ReadFromHeader(cookieHeader, name string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key := k
		if dec, err := url.PathUnescape(k); err == nil {
			key = dec
		}
		if key != name {
			continue
		}
		if dec, err := url.PathUnescape(v); err == nil {
			return dec
		}
		return v
	}
	return ""
}

// ReadFromRequest extracts the raw session token from an incoming
// request, or "" when no session cookie is present.
func ReadFromRequest(r *http.Request) string {
	return ReadFromHeader(r.Header.Get("Cookie"), CookieName)
}
