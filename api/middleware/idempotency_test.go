package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const consumePattern = "/trackers/allowance/{scholarId}/consume"

func newIdempotentRouter(store *fakeStore, optional bool, status int, calls *int32) http.Handler {
	return newIdempotentRouterWithLog(store, optional, status, calls, &bytes.Buffer{})
}

func newIdempotentRouterWithLog(store *fakeStore, optional bool, status int, calls *int32, logBuf *bytes.Buffer) http.Handler {
	rules := []IdempotencyRule{{Method: http.MethodPut, Pattern: consumePattern, TTL: time.Hour, Optional: optional}}
	r := chi.NewRouter()
	r.With(Idempotency(store, rules, testLogger(logBuf))).Put(consumePattern, func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	})
	r.Put("/trackers/allowance/{scholarId}/budget", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(calls, 1)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func put(handler http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	first := put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`)
	require.Equal(t, http.StatusOK, first.Code)
	require.Empty(t, first.Header().Get("Idempotent-Replayed"))

	second := put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestIdempotencyRejectsBodyChange(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	require.Equal(t, http.StatusOK, put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`).Code)
	rec := put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":20}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestIdempotencyRejectsPendingKey(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	body := `{"addAmount":10}`
	scope := "|" + http.MethodPut + "|/trackers/allowance/abc/consume"
	store.values[store.IdempotencyKey(scope, "key-1")] = `{"pending":true,"request_hash":"` + hashBody([]byte(body)) + `"}`

	rec := put(router, "/trackers/allowance/abc/consume", "key-1", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestIdempotencyOptionalWithoutKey(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	put(router, "/trackers/allowance/abc/consume", "", `{"addAmount":10}`)
	put(router, "/trackers/allowance/abc/consume", "", `{"addAmount":10}`)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Zero(t, store.len())
}

func TestIdempotencyRequiredWithoutKey(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, false, http.StatusOK, &calls)

	rec := put(router, "/trackers/allowance/abc/consume", "", `{"addAmount":10}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusBadRequest, &calls)

	put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":-1}`)
	put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":-1}`)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Zero(t, store.len())
}

func TestIdempotencyIgnoresUnmatchedRoutes(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, false, http.StatusOK, &calls)

	rec := put(router, "/trackers/allowance/abc/budget", "key-1", `{"allottedBudget":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, store.len())
}

func TestIdempotencyStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("redis down")
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	rec := put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestIdempotencyScopesKeysPerPath(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`)
	rec := put(router, "/trackers/allowance/def/consume", "key-1", `{"addAmount":10}`)

	require.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestIdempotencyRetryWhileRecordingResult(t *testing.T) {
	store := newFakeStore()
	var calls int32
	router := newIdempotentRouter(store, true, http.StatusOK, &calls)

	body := `{"addAmount":10}`
	var retry *httptest.ResponseRecorder
	var once sync.Once
	store.beforeWrite = func() {
		once.Do(func() {
			retry = put(router, "/trackers/allowance/abc/consume", "key-1", body)
		})
	}

	first := put(router, "/trackers/allowance/abc/consume", "key-1", body)
	require.Equal(t, http.StatusOK, first.Code)
	require.NotNil(t, retry)
	require.Equal(t, http.StatusConflict, retry.Code)
	require.Contains(t, retry.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	again := put(router, "/trackers/allowance/abc/consume", "key-1", body)
	require.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	require.Equal(t, first.Body.String(), again.Body.String())
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestIdempotencyKeepsReservationWhenResultWriteFails(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("redis down")
	var calls int32
	logBuf := &bytes.Buffer{}
	router := newIdempotentRouterWithLog(store, true, http.StatusOK, &calls, logBuf)

	first := put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`)
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, logBuf.String(), "persist idempotency record")

	retry := put(router, "/trackers/allowance/abc/consume", "key-1", `{"addAmount":10}`)
	require.Equal(t, http.StatusConflict, retry.Code)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
