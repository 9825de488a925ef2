package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	allowHeaders  = strings.Join([]string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"}, ", ")
	allowMethods  = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}, ", ")
	exposeHeaders = strings.Join([]string{"Content-Disposition", "X-Request-ID"}, ", ")
)

// Option tunes the middleware.
type Option func(*policy)

type policy struct {
	origins map[string]struct{}
	maxAge  time.Duration
}

// WithMaxAge sets how long browsers may cache a preflight answer.
func WithMaxAge(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.maxAge = d
		}
	}
}

func (p *policy) allows(origin string) bool {
	if len(p.origins) == 0 {
		return true
	}
	_, ok := p.origins[strings.TrimRight(origin, "/")]
	return ok
}

// New returns a CORS middleware for the commission front-ends. An empty origin list allows any
// origin; preflights from unlisted origins get 403 and simple requests pass through without
// CORS headers.
func New(allowedOrigins []string, opts ...Option) gin.HandlerFunc {
	p := &policy{origins: make(map[string]struct{}, len(allowedOrigins)), maxAge: 10 * time.Minute}
	for _, origin := range allowedOrigins {
		p.origins[strings.TrimRight(origin, "/")] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	maxAge := strconv.Itoa(int(p.maxAge.Seconds()))

	return func(c *gin.Context) {
		preflight := c.Request.Method == http.MethodOptions
		h := c.Writer.Header()

		switch origin := c.GetHeader("Origin"); {
		case origin == "" && len(p.origins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin == "":
		case p.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case preflight:
			c.AbortWithStatus(http.StatusForbidden)
			return
		default:
			c.Next()
			return
		}

		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Expose-Headers", exposeHeaders)
		h.Set("Access-Control-Max-Age", maxAge)

		if preflight {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
