package threadloop

import (
	"sync/atomic"
	"time"
)

// httpDateLayout is the format of the cached timestamp, matching the HTTP
// Date header.
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// cachedDate is one immutable clock snapshot.
type cachedDate struct {
	formatted string
	updatedAt time.Time
}

// clockCache holds the last formatted timestamp. Refreshes are driven by
// the loop's internal timer (first fire after 1ms, then every second), so
// consumers pay for formatting once per refresh interval instead of once
// per read. The snapshot pointer is atomic so reads are safe off-thread.
type clockCache struct {
	date atomic.Pointer[cachedDate]
}

func (c *clockCache) refresh(now time.Time) {
	c.date.Store(&cachedDate{
		formatted: now.UTC().Format(httpDateLayout),
		updatedAt: now,
	})
}

func (c *clockCache) get() (string, time.Time) {
	d := c.date.Load()
	if d == nil {
		return "", time.Time{}
	}
	return d.formatted, d.updatedAt
}
