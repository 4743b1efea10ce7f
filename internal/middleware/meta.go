package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-attendance-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// responseMeta is the per-request state rendered into the envelope's meta block.
type responseMeta struct {
	started  time.Time
	cacheHit *bool
}

// WithResponseMeta stamps the request start so handlers can report timings and cache usage.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{started: time.Now()})
		c.Next()
	}
}

// MarkCache records whether the payload came from the summary cache.
func MarkCache(c *gin.Context, hit bool) {
	current(c).cacheHit = &hit
}

// Meta renders the collected metadata for the response envelope.
func Meta(c *gin.Context) map[string]interface{} {
	state := current(c)
	meta := map[string]interface{}{
		"processing_time_ms": time.Since(state.started).Milliseconds(),
	}
	if state.cacheHit != nil {
		meta["cache_hit"] = *state.cacheHit
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

func current(c *gin.Context) *responseMeta {
	if v, ok := c.Get(responseMetaKey); ok {
		if state, ok := v.(*responseMeta); ok {
			return state
		}
	}
	state := &responseMeta{started: time.Now()}
	c.Set(responseMetaKey, state)
	return state
}
