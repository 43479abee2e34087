package tenderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrapeerr "sjsage522/tenderscraper/pkg/errors"
	"sjsage522/tenderscraper/services/cache"
)

func newTestClient(serverURL string, attempts int) *Client {
	return NewClient(Options{
		BaseURL: serverURL,
		Timeout: 2 * time.Second,
		Retry:   fastPolicy(attempts),
	})
}

func writeD(w http.ResponseWriter, d interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"d": d})
}

func TestLoadMinistries(t *testing.T) {
	landing := loadFixture(t, "landing.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/Tenders/Public Tenders/", r.URL.Path)
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, landing)
	}))
	defer srv.Close()

	ministries, err := newTestClient(srv.URL, 3).LoadMinistries(context.Background())
	require.NoError(t, err)
	assert.Len(t, ministries, 3)
	assert.Equal(t, "Ministry of Health", ministries[0].Name)
}

func TestLoadMinistriesStatusError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).LoadMinistries(context.Background())
	assert.True(t, scrapeerr.IsType(err, scrapeerr.ErrorTypeStatus))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCountPages(t *testing.T) {
	tests := []struct {
		name string
		d    interface{}
		want int
	}{
		{"number", 42, 42},
		{"numeric string", "17", 17},
		{"zero", 0, 0},
		{"negative clamps", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, PageCountPath, r.URL.Path)
				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "-1", body["Page"])
				writeD(w, tt.d)
			}))
			defer srv.Close()

			n, err := newTestClient(srv.URL, 3).CountPages(context.Background(), DefaultFilter())
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCountPagesRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeD(w, 5)
	}))
	defer srv.Close()

	n, err := newTestClient(srv.URL, 5).CountPages(context.Background(), DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCountPagesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).CountPages(context.Background(), DefaultFilter())
	require.Error(t, err)
	assert.True(t, scrapeerr.IsTransient(err))
	assert.True(t, errors.Is(err, scrapeerr.ErrRetryExhausted))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCountPagesInvalidCountNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeD(w, "many")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).CountPages(context.Background(), DefaultFilter())
	assert.True(t, scrapeerr.IsType(err, scrapeerr.ErrorTypeParsing))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPage(t *testing.T) {
	fragment := loadFixture(t, "page.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PagePath, r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "4", body["Page"])
		writeD(w, fragment)
	}))
	defer srv.Close()

	result := newTestClient(srv.URL, 3).FetchPage(context.Background(), 4, DefaultFilter())
	require.Equal(t, PageOK, result.Status)
	assert.Equal(t, 4, result.Page)
	require.Len(t, result.Records, 2)

	link, _ := result.Records[0].Get(KeyTenderLink)
	assert.Equal(t, srv.URL+"/Tenders/Public%20Tenders/Details/1001", link)
}

func TestFetchPageExhaustedIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := newTestClient(srv.URL, 2).FetchPage(context.Background(), 1, DefaultFilter())
	assert.Equal(t, PageFailed, result.Status)
	assert.Empty(t, result.Records)
	assert.True(t, scrapeerr.IsTransient(result.Err))
}

func TestFetchPageMalformedFragment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeD(w, "<p>Service temporarily unavailable</p>")
	}))
	defer srv.Close()

	result := newTestClient(srv.URL, 2).FetchPage(context.Background(), 1, DefaultFilter())
	assert.Equal(t, PageFailed, result.Status)
	assert.Empty(t, result.Records)
	assert.False(t, scrapeerr.IsTransient(result.Err))
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, cache.ErrMiss
}

func (m *memoryCache) Set(key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestRateLimitedRequestSetsBlockMarker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	mc := &memoryCache{data: map[string][]byte{}}
	guard := cache.NewRateLimitGuard(mc, "tenderboard:blocked", time.Minute)
	client := NewClient(Options{BaseURL: srv.URL, Retry: fastPolicy(3), Guard: guard})

	_, err := client.CountPages(context.Background(), DefaultFilter())
	require.Error(t, err)
	assert.True(t, scrapeerr.IsTransient(err))
	assert.True(t, guard.Blocked())

	// once blocked, later attempts are refused before reaching the portal
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, errors.Is(err, scrapeerr.ErrBlocked))
}

func TestBlockedGuardAllowsAfterClear(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeD(w, 2)
	}))
	defer srv.Close()

	mc := &memoryCache{data: map[string][]byte{"tenderboard:blocked": []byte("60")}}
	guard := cache.NewRateLimitGuard(mc, "tenderboard:blocked", time.Minute)
	client := NewClient(Options{BaseURL: srv.URL, Retry: fastPolicy(2), Guard: guard})

	_, err := client.CountPages(context.Background(), DefaultFilter())
	assert.True(t, scrapeerr.IsTransient(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	require.NoError(t, mc.Delete("tenderboard:blocked"))
	n, err := client.CountPages(context.Background(), DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFetchPageHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestClient(srv.URL, 0).FetchPage(ctx, 1, DefaultFilter())
	assert.Equal(t, PageFailed, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestDecodeCount(t *testing.T) {
	for raw, want := range map[string]int{`3`: 3, `"12"`: 12, `" 7 "`: 7, `-1`: 0, `2.0`: 2} {
		n, err := decodeCount(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, n, fmt.Sprintf("decoding %s", raw))
	}
	for _, raw := range []string{`{}`, `null`, ` null `, `""`} {
		_, err := decodeCount(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}

func TestCountPagesNullIsParsingError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeD(w, nil)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).CountPages(context.Background(), DefaultFilter())
	require.Error(t, err)
	assert.True(t, scrapeerr.IsType(err, scrapeerr.ErrorTypeParsing))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFailedFetchStillFinishesPage(t *testing.T) {
	fragment := loadFixture(t, "page.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["Page"] {
		case "1":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "2":
			writeD(w, 42)
		default:
			writeD(w, fragment)
		}
	}))
	defer srv.Close()

	obs := newCountingObserver()
	client := NewClient(Options{BaseURL: srv.URL, Retry: fastPolicy(2), Observer: obs})
	for page := 1; page <= 3; page++ {
		client.FetchPage(context.Background(), page, DefaultFilter())
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.finished, 3)
	assert.Equal(t, PageFailed, obs.finished[1])
	assert.Equal(t, PageFailed, obs.finished[2])
	assert.Equal(t, PageOK, obs.finished[3])
	assert.NotContains(t, obs.started, 1)
}

func TestClientUsesConfiguredProxy(t *testing.T) {
	var proxiedHost atomic.Value
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost.Store(r.URL.Host)
		writeD(w, 9)
	}))
	defer proxy.Close()

	client := NewClient(Options{
		BaseURL:  "http://portal.invalid",
		ProxyURL: proxy.URL,
		Retry:    fastPolicy(1),
	})

	n, err := client.CountPages(context.Background(), DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "portal.invalid", proxiedHost.Load())
}
