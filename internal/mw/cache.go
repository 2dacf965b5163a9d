package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// snapshot is one stored response.
type snapshot struct {
	code   int
	header http.Header
	body   []byte
}

// teeWriter copies everything the handler writes into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func cacheKey(c *gin.Context) string {
	return Actor(c).Role + " " + c.Request.RequestURI
}

func replay(c *gin.Context, s snapshot) {
	h := c.Writer.Header()
	for k, v := range s.header {
		h[k] = v
	}
	h.Set("X-Cache", "HIT")
	c.Writer.WriteHeader(s.code)
	_, _ = c.Writer.Write(s.body)
	c.Abort()
}

// Cache serves repeated GET requests from memory for ttl. Keys combine the
// caller's role and the request URI, so only role-scoped views belong here.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		key := cacheKey(c)
		if v, ok := store.Get(key); ok {
			replay(c, v.(snapshot))
			return
		}

		tw := &teeWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = tw
		c.Next()

		if code := tw.Status(); code >= 200 && code < 300 {
			store.Set(key, snapshot{code: code, header: tw.Header().Clone(), body: tw.buf.Bytes()}, ttl)
		}
	}
}

// Invalidate flushes the cache after every successful write so changed plans
// and rules are visible on the next read.
func Invalidate(store *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if code := c.Writer.Status(); code >= 200 && code < 300 {
			store.Flush()
		}
	}
}
