package cookiejar

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpOnlyPrefix namespaces cookies the backend marked HttpOnly. Script level
// getters read plain names and never see them.
const httpOnlyPrefix = "httponly:"

// sessionCookieMaxAge is used for backend cookies that carry neither Max-Age nor Expires.
const sessionCookieMaxAge = 24 * time.Hour

// Jar adapts a Store to http.CookieJar. The client talks to a single backend,
// so cookies are kept per name regardless of host and path.
type Jar struct {
	store Store
}

var _ http.CookieJar = (*Jar)(nil)

func NewJar(store Store) *Jar {
	return &Jar{store: store}
}

// HTTPOnlyName is the store key of an HttpOnly cookie.
func HTTPOnlyName(name string) string {
	return httpOnlyPrefix + name
}

func (j *Jar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	ctx := context.Background()

	for _, c := range cookies {
		name := c.Name
		if c.HttpOnly {
			name = HTTPOnlyName(c.Name)
		}

		j.store.Set(ctx, name, unescape(c.Value), Options{MaxAge: maxAge(c)})
	}
}

func (j *Jar) Cookies(_ *url.URL) []*http.Cookie {
	ctx := context.Background()

	values := map[string]string{}
	order := []string{}
	for _, key := range j.store.Names(ctx) {
		name, httpOnly := strings.CutPrefix(key, httpOnlyPrefix)

		value, ok := j.store.Get(ctx, key)
		if !ok {
			continue
		}

		if _, seen := values[name]; !seen {
			order = append(order, name)
		} else if !httpOnly {
			// the HttpOnly value set by the backend wins over a readable mirror
			continue
		}
		values[name] = value
	}

	cookies := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		cookies = append(cookies, &http.Cookie{Name: name, Value: escape(values[name])})
	}

	return cookies
}

// escape encodes a value the way encodeURIComponent does, so JSON values
// survive the Cookie header.
func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// unescape reverses escape. Values that are not valid escapes are kept as sent.
func unescape(v string) string {
	u, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return u
}

func maxAge(c *http.Cookie) time.Duration {
	switch {
	case c.MaxAge < 0:
		return 0
	case c.MaxAge > 0:
		return time.Duration(c.MaxAge) * time.Second
	case !c.Expires.IsZero():
		return time.Until(c.Expires)
	default:
		return sessionCookieMaxAge
	}
}
