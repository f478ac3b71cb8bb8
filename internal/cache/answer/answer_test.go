package answer

import (
	"testing"
	"time"

	"edgejury/internal/council"
	"edgejury/internal/tester"
)

func testSettings(size int) council.Settings {
	return council.Settings{CouncilSize: size, EnableCrossReview: true, AnonymizeReviews: true}
}

func TestStoreAndLookup(t *testing.T) {
	c := New(Config{MaxEntries: 8, TTL: time.Minute})
	res := council.Stage3Result{FinalAnswer: "cached"}

	c.Store("what is tcp?", testSettings(3), res)

	got, ok := c.Lookup("what is tcp?", testSettings(3))
	tester.True(t, ok)
	tester.Eq(t, got.FinalAnswer, "cached")

	hits, misses := c.Stats()
	tester.Eq(t, hits, uint64(1))
	tester.Eq(t, misses, uint64(0))
}

func TestSettingsChangeTheKey(t *testing.T) {
	c := New(Config{MaxEntries: 8, TTL: time.Minute})
	c.Store("q", testSettings(3), council.Stage3Result{FinalAnswer: "three heads"})

	_, ok := c.Lookup("q", testSettings(5))
	tester.False(t, ok)

	noAnon := testSettings(3)
	noAnon.AnonymizeReviews = false
	_, ok = c.Lookup("q", noAnon)
	tester.False(t, ok)
}

func TestVerificationModeDoesNotChangeTheKey(t *testing.T) {
	a := testSettings(3)
	a.VerificationMode = council.VerificationOff
	b := testSettings(3)
	b.VerificationMode = council.VerificationEvidence
	tester.Eq(t, Key("q", a), Key("q", b))
}

func TestEmptyAnswerNotStored(t *testing.T) {
	c := New(Config{MaxEntries: 8, TTL: time.Minute})
	c.Store("q", testSettings(3), council.Stage3Result{FinalAnswer: "   "})
	_, ok := c.Lookup("q", testSettings(3))
	tester.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	c.Store("q", testSettings(3), council.Stage3Result{FinalAnswer: "x"})
	_, ok := c.Lookup("q", testSettings(3))
	tester.False(t, ok)
}
