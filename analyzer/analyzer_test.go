package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-engine/backend/cache"
	"github.com/seo-engine/backend/stats"
)

type MemStats struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	NumGC      uint32
}

func getMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{HeapAlloc: m.HeapAlloc, TotalAlloc: m.TotalAlloc, NumGC: m.NumGC}
}

func newPageServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		fmt.Fprint(w, guidePage)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		fmt.Fprint(w, guidePage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractPageFeatures(t *testing.T) {
	srv := newPageServer(t, nil)
	a := New(Options{Logger: zerolog.Nop()})

	f := a.ExtractPageFeatures(context.Background(), srv.URL+"/page")
	require.NotNil(t, f)
	assert.Equal(t, srv.URL+"/page", f.URL)
	assert.Equal(t, "Complete Guide to Widgets", f.Title)
}

func TestExtractPageFeatures_FollowsRedirects(t *testing.T) {
	srv := newPageServer(t, nil)
	a := New(Options{})

	f := a.ExtractPageFeatures(context.Background(), srv.URL+"/old")
	require.NotNil(t, f)
	assert.Equal(t, srv.URL+"/old", f.URL)
	assert.Equal(t, 3, f.H2Count)
}

func TestExtractPageFeatures_Unavailable(t *testing.T) {
	srv := newPageServer(t, nil)
	usage, err := stats.NewStorage(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { usage.Shutdown() })

	a := New(Options{Timeout: 100 * time.Millisecond, Stats: usage})

	assert.Nil(t, a.ExtractPageFeatures(context.Background(), srv.URL+"/missing"))
	assert.Nil(t, a.ExtractPageFeatures(context.Background(), srv.URL+"/slow"))
	assert.Nil(t, a.ExtractPageFeatures(context.Background(), "http://127.0.0.1:1/unreachable"))
	assert.Nil(t, a.ExtractPageFeatures(context.Background(), "::not a url"))

	assert.Equal(t, 4, usage.GetCurrentStats().FetchFailures)
}

func TestExtractPageFeatures_Cached(t *testing.T) {
	var hits int32
	srv := newPageServer(t, &hits)

	mem := cache.NewMemory(time.Minute, 10)
	t.Cleanup(mem.Close)
	usage, err := stats.NewStorage(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { usage.Shutdown() })

	a := New(Options{Cache: mem, Stats: usage})

	first := a.ExtractPageFeatures(context.Background(), srv.URL+"/page")
	second := a.ExtractPageFeatures(context.Background(), srv.URL+"/page")
	require.NotNil(t, first)
	require.NotNil(t, second)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, first, second)

	current := usage.GetCurrentStats()
	assert.Equal(t, 1, current.CacheHits)
	assert.Equal(t, 1, current.CacheMisses)
	assert.Equal(t, 1, current.PagesExtracted)
}

func TestFetchHTML_SendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	status, _, err := New(Options{UserAgent: "test-agent"}).FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "test-agent", got)
}

func TestMemoryEfficiency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping memory test in short mode")
	}
	srv := newPageServer(t, nil)
	a := New(Options{})

	runtime.GC()
	before := getMemStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, a.ExtractPageFeatures(context.Background(), srv.URL+"/page"))
		}()
	}
	wg.Wait()

	runtime.GC()
	after := getMemStats()
	t.Logf("Heap Allocation: %d bytes -> %d bytes", before.HeapAlloc, after.HeapAlloc)
	t.Logf("Total Allocation delta: %d bytes", after.TotalAlloc-before.TotalAlloc)
	t.Logf("GC runs delta: %d", after.NumGC-before.NumGC)
}

func TestExtractFreshPageFeatures_BypassesCache(t *testing.T) {
	var title atomic.Value
	title.Store("Old")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body></body></html>", title.Load())
	}))
	defer srv.Close()

	mem := cache.NewMemory(time.Minute, 10)
	t.Cleanup(mem.Close)
	a := New(Options{Cache: mem})

	first := a.ExtractPageFeatures(context.Background(), srv.URL)
	require.NotNil(t, first)
	assert.Equal(t, "Old", first.Title)

	title.Store("New")
	cached := a.ExtractPageFeatures(context.Background(), srv.URL)
	require.NotNil(t, cached)
	assert.Equal(t, "Old", cached.Title)

	fresh := a.ExtractFreshPageFeatures(context.Background(), srv.URL)
	require.NotNil(t, fresh)
	assert.Equal(t, "New", fresh.Title)

	// the fresh record replaces the cached one
	again := a.ExtractPageFeatures(context.Background(), srv.URL)
	require.NotNil(t, again)
	assert.Equal(t, "New", again.Title)
}
