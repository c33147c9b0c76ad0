package scheduler

import (
	"trainerdesk/internal/domain/session"
)

// MonthCache holds sessions already fetched from the repository, bucketed by
// local date key, with a fetched marker per month. It performs no I/O and is
// owned by a single Controller; it does its own locking only through the
// Controller's serialization.
//
// Merge is idempotent and commutative per bucket: the last merge for a given
// session id wins and unrelated ids do not interfere, so interleaved fetch
// completions converge regardless of order.
type MonthCache struct {
	fetched map[string]bool              // month key -> already fetched
	buckets map[string][]session.Session // date key -> sessions
	index   map[string]string            // session id -> date key currently holding it
}

// NewMonthCache creates an empty cache.
func NewMonthCache() *MonthCache {
	return &MonthCache{
		fetched: make(map[string]bool),
		buckets: make(map[string][]session.Session),
		index:   make(map[string]string),
	}
}

// Has reports whether the month has already been fetched.
func (c *MonthCache) Has(monthKey string) bool {
	return c.fetched[monthKey]
}

// MarkFetched records that the month's sessions are present in the buckets.
func (c *MonthCache) MarkFetched(monthKey string) {
	c.fetched[monthKey] = true
}

// Invalidate clears the fetched marker for a month. Bucket contents are kept;
// the next fetch overwrites them via Merge. Stale-but-available data is
// preferred over an empty calendar.
func (c *MonthCache) Invalidate(monthKey string) {
	delete(c.fetched, monthKey)
}

// Merge adds sessions grouped by date key to their buckets. A session whose
// id is already cached is replaced, not duplicated, even if it previously
// lived in a different bucket.
func (c *MonthCache) Merge(grouped map[string][]session.Session) {
	for dateKey, sessions := range grouped {
		for _, s := range sessions {
			c.put(dateKey, s)
		}
	}
}

// Put inserts or replaces a single session in the bucket for dateKey.
func (c *MonthCache) Put(dateKey string, s session.Session) {
	c.put(dateKey, s)
}

func (c *MonthCache) put(dateKey string, s session.Session) {
	if prev, ok := c.index[s.ID]; ok {
		c.dropFromBucket(prev, s.ID)
	}
	c.buckets[dateKey] = append(c.buckets[dateKey], s)
	c.index[s.ID] = dateKey
}

// Bucket returns all cached sessions for a date key, unsorted. Ordering is
// the caller's responsibility.
func (c *MonthCache) Bucket(dateKey string) []session.Session {
	bucket := c.buckets[dateKey]
	out := make([]session.Session, len(bucket))
	copy(out, bucket)
	return out
}

// Find returns the cached session with the given id, if any.
func (c *MonthCache) Find(id string) (session.Session, bool) {
	dateKey, ok := c.index[id]
	if !ok {
		return session.Session{}, false
	}
	for _, s := range c.buckets[dateKey] {
		if s.ID == id {
			return s, true
		}
	}
	return session.Session{}, false
}

// Remove drops the session with the given id from its bucket and returns it.
func (c *MonthCache) Remove(id string) (session.Session, bool) {
	s, ok := c.Find(id)
	if !ok {
		return session.Session{}, false
	}
	c.dropFromBucket(c.index[id], id)
	delete(c.index, id)
	return s, true
}

func (c *MonthCache) dropFromBucket(dateKey, id string) {
	bucket := c.buckets[dateKey]
	for i, s := range bucket {
		if s.ID == id {
			c.buckets[dateKey] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}
