package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gravatarStub struct {
	server *httptest.Server
	hits   atomic.Int32
	known  map[string]bool
	slow   map[string]bool
}

func newGravatarStub(t *testing.T, known ...string) *gravatarStub {
	t.Helper()

	stub := &gravatarStub{known: map[string]bool{}, slow: map[string]bool{}}
	for _, email := range known {
		stub.known[EmailHash(email)] = true
	}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.hits.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "404", r.URL.Query().Get("d"))
		assert.Equal(t, "100", r.URL.Query().Get("s"))

		hash := strings.TrimPrefix(r.URL.Path, "/avatar/")
		if stub.slow[hash] {
			time.Sleep(300 * time.Millisecond)
		}
		if stub.known[hash] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func newTestResolver(stub *gravatarStub, timeout time.Duration) *Resolver {
	return NewResolver(Config{
		GravatarBaseURL: stub.server.URL,
		DicebearBaseURL: "https://dicebear.test",
		ProbeTimeout:    timeout,
	}, log.NewDiscardLogger())
}

func TestEmailHash_NormalizesFirst(t *testing.T) {
	assert.Equal(t, "0bc83cb571cd1c50ba6f3e8a78ef1346", EmailHash("MyEmailAddress@example.com "))
	assert.Equal(t, EmailHash("ada@example.com"), EmailHash("  ADA@example.com"))
}

func TestFallbackURL_EscapesSeed(t *testing.T) {
	r := NewResolver(Config{DicebearBaseURL: "https://dicebear.test/"}, log.NewDiscardLogger())

	assert.Equal(t,
		"https://dicebear.test/9.x/avataaars/svg?seed=ada%2Bwaitlist%40example.com&backgroundColor=transparent",
		r.FallbackURL("ada+waitlist@example.com"),
	)
}

func TestResolve_PrefersExistingGravatar(t *testing.T) {
	stub := newGravatarStub(t, "ada@example.com")
	r := newTestResolver(stub, time.Second)

	url := r.Resolve(context.Background(), Subject{ID: "1", Email: "Ada@Example.com"})
	assert.Equal(t, stub.server.URL+"/avatar/"+EmailHash("ada@example.com")+"?s=100", url)

	url = r.Resolve(context.Background(), Subject{ID: "2", Email: "grace@example.com"})
	assert.Equal(t, r.FallbackURL("grace@example.com"), url)
}

func TestResolve_EmptyEmailSeedsWithID(t *testing.T) {
	stub := newGravatarStub(t)
	r := newTestResolver(stub, time.Second)

	assert.Equal(t, r.FallbackURL("entry-9"), r.Resolve(context.Background(), Subject{ID: "entry-9"}))
	assert.Zero(t, stub.hits.Load())
}

func TestHasGravatar_CachesResults(t *testing.T) {
	stub := newGravatarStub(t, "ada@example.com")
	r := newTestResolver(stub, time.Second)
	hash := EmailHash("ada@example.com")

	assert.True(t, r.HasGravatar(context.Background(), hash))
	assert.True(t, r.HasGravatar(context.Background(), hash))
	assert.False(t, r.HasGravatar(context.Background(), EmailHash("nobody@example.com")))
	assert.False(t, r.HasGravatar(context.Background(), EmailHash("nobody@example.com")))

	assert.Equal(t, int32(2), stub.hits.Load())
	assert.Equal(t, 2, r.CachedCount())
}

func TestHasGravatar_TimeoutCachesFalse(t *testing.T) {
	stub := newGravatarStub(t, "slow@example.com")
	hash := EmailHash("slow@example.com")
	stub.slow[hash] = true
	r := newTestResolver(stub, 50*time.Millisecond)

	assert.False(t, r.HasGravatar(context.Background(), hash))

	// Remembered, so no second probe.
	assert.False(t, r.HasGravatar(context.Background(), hash))
	assert.Equal(t, int32(1), stub.hits.Load())
}

func TestResolve_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	stub := newGravatarStub(t, "ada@example.com")
	r := newTestResolver(stub, time.Second)
	ada := Subject{ID: "1", Email: "ada@example.com"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, r.GravatarURL(EmailHash("ada@example.com")), r.Resolve(ctx, ada))
	assert.Equal(t, r.GravatarURL(EmailHash("ada@example.com")), r.Resolve(context.Background(), ada))
	assert.Equal(t, int32(1), stub.hits.Load())
}

func TestHasGravatar_UnreachableHostCachesFalse(t *testing.T) {
	r := NewResolver(Config{GravatarBaseURL: "http://127.0.0.1:1", ProbeTimeout: 200 * time.Millisecond}, log.NewDiscardLogger())

	assert.False(t, r.HasGravatar(context.Background(), EmailHash("ada@example.com")))
	assert.Equal(t, 1, r.CachedCount())
}

func TestResolveAll_KeepsOrderAndIsolatesFailures(t *testing.T) {
	stub := newGravatarStub(t, "ada@example.com", "slow@example.com")
	stub.slow[EmailHash("slow@example.com")] = true
	r := newTestResolver(stub, 100*time.Millisecond)

	subjects := []Subject{
		{ID: "1", Email: "ada@example.com"},
		{ID: "2", Email: "slow@example.com"},
		{ID: "3", Email: "grace@example.com"},
		{ID: "4"},
	}
	urls := r.ResolveAll(context.Background(), subjects)

	require.Len(t, urls, 4)
	assert.Equal(t, r.GravatarURL(EmailHash("ada@example.com")), urls[0])
	assert.Equal(t, r.FallbackURL("slow@example.com"), urls[1])
	assert.Equal(t, r.FallbackURL("grace@example.com"), urls[2])
	assert.Equal(t, r.FallbackURL("4"), urls[3])
}
