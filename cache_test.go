package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationCacheMarkAndExpiry(t *testing.T) {
	c := NewNotificationCache(time.Hour)
	assert.False(t, c.IsRecent("tokA"))

	c.Mark("tokA")
	assert.True(t, c.IsRecent("tokA"))
	assert.False(t, c.IsRecent("tokB"))

	// Backdate past the TTL.
	c.mu.Lock()
	c.store["tokA"] = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()
	assert.False(t, c.IsRecent("tokA"))
}

func TestNotificationCacheRestore(t *testing.T) {
	tr := newTestTracker(t, nil)
	_, err := tr.Record(testPair("hot"), testResult(), "pool", true, 70)
	require.NoError(t, err)
	_, err = tr.Record(testPair("quiet"), testResult(), "pool", false, 70)
	require.NoError(t, err)

	c := NewNotificationCache(time.Hour)
	c.Restore(tr)
	assert.True(t, c.IsRecent("hot"), "notified token restored from log")
	assert.False(t, c.IsRecent("quiet"), "unnotified token stays uncached")
}

func TestNotificationCacheRestoreEmptyLog(t *testing.T) {
	c := NewNotificationCache(time.Hour)
	c.Restore(newTestTracker(t, nil))
	assert.False(t, c.IsRecent("anything"))
}
