package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/astroflora/driver-ai-router/internal/domain"
	"github.com/astroflora/driver-ai-router/internal/infra/health"
	"github.com/astroflora/driver-ai-router/internal/infra/observability"
	"github.com/astroflora/driver-ai-router/internal/infra/transport"
)

// ============================================================
// Helpers
// ============================================================

func newTransport(t *testing.T, ttl time.Duration) (*transport.Transport, *health.Cache, *observability.Metrics) {
	t.Helper()
	hc := health.NewCache(ttl)
	t.Cleanup(hc.Close)
	metrics := observability.NewMetrics()
	tr := transport.New(
		&http.Client{},
		hc,
		transport.Timeouts{Chat: 200 * time.Millisecond, Analyze: 300 * time.Millisecond, Health: 100 * time.Millisecond},
		metrics,
		zap.NewNop(),
	)
	return tr, hc, metrics
}

func chatEndpoint(base string) domain.Endpoint {
	return domain.Endpoint{URL: base + "/api/chat", Method: http.MethodPost, BodyShape: domain.ShapeMessage}
}

func countingServer(t *testing.T, calls *atomic.Int32, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var body = domain.RequestBody{Message: "hola", SessionID: "u-1"}

// ============================================================
// Dispatch
// ============================================================

func TestDispatch_FirstCandidateAnswers(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if got["message"] != "hola" || got["session_id"] != "u-1" {
			t.Errorf("unexpected payload: %v", got)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"response":"¡Hola!"}`))
	})

	tr, _, _ := newTransport(t, time.Minute)
	raw, err := tr.Dispatch(context.Background(), []domain.Endpoint{chatEndpoint(srv.URL)}, body)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if raw.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", raw.StatusCode)
	}
	if string(raw.Body) != `{"response":"¡Hola!"}` {
		t.Errorf("unexpected body %s", raw.Body)
	}
	if len(raw.Attempts) != 1 || raw.Attempts[0].Outcome != domain.OutcomeSuccess {
		t.Errorf("unexpected attempts: %+v", raw.Attempts)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestDispatch_ServerErrorFallsThrough(t *testing.T) {
	var badCalls, goodCalls atomic.Int32
	bad := countingServer(t, &badCalls, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"model not loaded"}`))
	})
	good := countingServer(t, &goodCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})

	tr, hc, metrics := newTransport(t, time.Minute)
	candidates := []domain.Endpoint{chatEndpoint(bad.URL), chatEndpoint(good.URL)}

	raw, err := tr.Dispatch(context.Background(), candidates, body)
	if err != nil {
		t.Fatalf("expected success from second candidate, got %v", err)
	}
	if raw.Endpoint.URL != candidates[1].URL {
		t.Errorf("expected answer from %s, got %s", candidates[1].URL, raw.Endpoint.URL)
	}
	if len(raw.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(raw.Attempts))
	}

	first := raw.Attempts[0]
	if first.Outcome != domain.OutcomeBadStatus || first.StatusCode != 500 {
		t.Errorf("unexpected first attempt: %+v", first)
	}
	var bs *domain.ErrBadStatus
	if !errors.As(first.Err, &bs) || bs.Body != `{"detail":"model not loaded"}` {
		t.Errorf("expected bad status with body, got %v", first.Err)
	}
	if !hc.KnownUnhealthy(candidates[0]) {
		t.Error("expected 5xx endpoint marked unhealthy")
	}
	if hc.KnownUnhealthy(candidates[1]) {
		t.Error("expected answering endpoint marked healthy")
	}
	if got := metrics.Snapshot().AttemptOutcomes["bad_status"]; got != 1 {
		t.Errorf("expected 1 bad_status attempt, got %d", got)
	}
	if badCalls.Load() != 1 || goodCalls.Load() != 1 {
		t.Errorf("expected one call each, got bad=%d good=%d", badCalls.Load(), goodCalls.Load())
	}
}

func TestDispatch_ClientErrorKeepsEndpointHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"response":"legacy"}`))
	})

	tr, hc, _ := newTransport(t, time.Minute)
	legacy := domain.Endpoint{URL: srv.URL + "/api/query", Method: http.MethodPost, BodyShape: domain.ShapeQuery}

	raw, err := tr.Dispatch(context.Background(), []domain.Endpoint{chatEndpoint(srv.URL), legacy}, body)
	if err != nil {
		t.Fatalf("expected legacy endpoint to answer, got %v", err)
	}
	if raw.Endpoint.URL != legacy.URL {
		t.Errorf("expected answer from legacy endpoint, got %s", raw.Endpoint.URL)
	}
	if hc.KnownUnhealthy(chatEndpoint(srv.URL)) {
		t.Error("a 404 must not mark the endpoint unhealthy")
	}
}

func TestDispatch_SameHostFailover(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"message":"ok"}`))
	})

	tr, hc, _ := newTransport(t, time.Minute)
	chat := chatEndpoint(srv.URL)
	legacy := domain.Endpoint{URL: srv.URL + "/api/query", Method: http.MethodPost, BodyShape: domain.ShapeQuery}

	for i := 0; i < 2; i++ {
		raw, err := tr.Dispatch(context.Background(), []domain.Endpoint{chat, legacy}, body)
		if err != nil {
			t.Fatalf("dispatch %d: expected legacy endpoint on the same host to answer, got %v", i, err)
		}
		if raw.Endpoint.URL != legacy.URL || string(raw.Body) != `{"message":"ok"}` {
			t.Errorf("dispatch %d: unexpected answer %s from %s", i, raw.Body, raw.Endpoint.URL)
		}
	}

	if !hc.KnownUnhealthy(chat) || hc.KnownUnhealthy(legacy) {
		t.Error("expected only the failing path marked unhealthy")
	}
	// chat once, then skipped; query both times.
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDispatch_TimeoutMovesOn(t *testing.T) {
	var slowCalls, fastCalls atomic.Int32
	slow := countingServer(t, &slowCalls, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	fast := countingServer(t, &fastCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"fast"}`))
	})

	tr, hc, _ := newTransport(t, time.Minute)
	candidates := []domain.Endpoint{chatEndpoint(slow.URL), chatEndpoint(fast.URL)}

	start := time.Now()
	raw, err := tr.Dispatch(context.Background(), candidates, body)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected per-attempt timeout to bound the walk, took %s", elapsed)
	}
	if raw.Attempts[0].Outcome != domain.OutcomeTimeout {
		t.Errorf("expected timeout, got %s", raw.Attempts[0].Outcome)
	}
	var te *domain.ErrTimeout
	if !errors.As(raw.Attempts[0].Err, &te) {
		t.Errorf("expected ErrTimeout, got %T", raw.Attempts[0].Err)
	}
	if !hc.KnownUnhealthy(candidates[0]) {
		t.Error("expected timed out endpoint marked unhealthy")
	}
}

func TestDispatch_MalformedBodyIsReturned(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	})

	tr, hc, _ := newTransport(t, time.Minute)
	ep := chatEndpoint(srv.URL)

	raw, err := tr.Dispatch(context.Background(), []domain.Endpoint{ep}, body)
	if err != nil {
		t.Fatalf("expected malformed body to be returned, got %v", err)
	}
	if raw.Attempts[0].Outcome != domain.OutcomeMalformedBody {
		t.Errorf("expected malformed_body, got %s", raw.Attempts[0].Outcome)
	}
	if hc.KnownUnhealthy(ep) {
		t.Error("an answering backend is reachable")
	}
}

func TestDispatch_UnhealthyEndpointSkippedWithinTTL(t *testing.T) {
	var calls, chatCalls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			chatCalls.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	tr, _, metrics := newTransport(t, time.Minute)
	candidates := []domain.Endpoint{
		chatEndpoint(srv.URL),
		{URL: srv.URL + "/api/query", Method: http.MethodPost, BodyShape: domain.ShapeQuery},
	}

	_, err := tr.Dispatch(context.Background(), candidates, body)
	var exhausted *domain.ErrDispatchExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ErrDispatchExhausted, got %v", err)
	}
	if len(exhausted.Attempts) != 2 || len(exhausted.Skipped) != 0 {
		t.Errorf("expected 2 attempts and no skip, got %d/%d", len(exhausted.Attempts), len(exhausted.Skipped))
	}

	_, err = tr.Dispatch(context.Background(), candidates, body)
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ErrDispatchExhausted, got %v", err)
	}
	if len(exhausted.Attempts) != 0 || len(exhausted.Skipped) != 2 {
		t.Errorf("expected every candidate skipped, got %d attempts / %d skipped",
			len(exhausted.Attempts), len(exhausted.Skipped))
	}

	if chatCalls.Load() != 1 || calls.Load() != 2 {
		t.Errorf("expected one network call per endpoint within TTL, got chat=%d total=%d", chatCalls.Load(), calls.Load())
	}
	if metrics.Snapshot().HealthCacheHits != 2 {
		t.Errorf("expected 2 health cache skips, got %d", metrics.Snapshot().HealthCacheHits)
	}
}

func TestDispatch_RetriesEndpointAfterTTL(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"response":"back"}`))
	})

	tr, _, _ := newTransport(t, 50*time.Millisecond)
	candidates := []domain.Endpoint{chatEndpoint(srv.URL)}

	if _, err := tr.Dispatch(context.Background(), candidates, body); !domain.IsExhausted(err) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	if _, err := tr.Dispatch(context.Background(), candidates, body); err != nil {
		t.Fatalf("expected recovered endpoint to answer, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestDispatch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr, _, _ := newTransport(t, time.Minute)
	_, err := tr.Dispatch(context.Background(), []domain.Endpoint{chatEndpoint(url)}, body)

	var exhausted *domain.ErrDispatchExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ErrDispatchExhausted, got %v", err)
	}
	if exhausted.Attempts[0].Outcome != domain.OutcomeNetworkError {
		t.Errorf("expected network_error, got %s", exhausted.Attempts[0].Outcome)
	}
	var ne *domain.ErrNetwork
	if !errors.As(err, &ne) {
		t.Error("expected ErrNetwork reachable through the exhaustion error")
	}
}

func TestDispatch_SequencePayload(t *testing.T) {
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		json.NewDecoder(r.Body).Decode(&got)
		if got["sequence"] != "MKTAYIAKQR" || got["analysis_type"] != "blast" {
			t.Errorf("unexpected payload: %v", got)
		}
		if _, ok := got["message"]; ok {
			t.Error("analysis payload must not carry a message field")
		}
		w.Write([]byte(`{"analysis":"done"}`))
	})

	tr, _, _ := newTransport(t, time.Minute)
	ep := domain.Endpoint{URL: srv.URL + "/api/analyze", Method: http.MethodPost, BodyShape: domain.ShapeSequence}
	seqBody := domain.RequestBody{Sequence: "MKTAYIAKQR", AnalysisType: "blast"}

	if _, err := tr.Dispatch(context.Background(), []domain.Endpoint{ep}, seqBody); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestDispatch_OversizedBodyMovesOn(t *testing.T) {
	var bigCalls, goodCalls atomic.Int32
	big := countingServer(t, &bigCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"` + strings.Repeat("A", 4<<20) + `"}`))
	})
	good := countingServer(t, &goodCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"small"}`))
	})

	tr, _, _ := newTransport(t, time.Minute)
	candidates := []domain.Endpoint{chatEndpoint(big.URL), chatEndpoint(good.URL)}

	raw, err := tr.Dispatch(context.Background(), candidates, body)
	if err != nil {
		t.Fatalf("expected second candidate to answer, got %v", err)
	}
	if raw.Endpoint.URL != candidates[1].URL {
		t.Errorf("expected answer from %s, got %s", candidates[1].URL, raw.Endpoint.URL)
	}
	first := raw.Attempts[0]
	var mb *domain.ErrMalformedBody
	if first.Outcome != domain.OutcomeMalformedBody || !errors.As(first.Err, &mb) {
		t.Errorf("expected oversized body flagged as malformed, got %s / %v", first.Outcome, first.Err)
	}

	_, err = tr.Dispatch(context.Background(), candidates[:1], body)
	if !domain.IsExhausted(err) {
		t.Errorf("expected oversized body alone to exhaust dispatch, got %v", err)
	}
}

func TestDispatch_CancelledCallerDoesNotTripBreaker(t *testing.T) {
	arrived := make(chan struct{}, 1)
	var calls atomic.Int32
	srv := countingServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() <= 5 {
			io.Copy(io.Discard, r.Body)
			arrived <- struct{}{}
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`{"response":"still here"}`))
	})

	tr, hc, _ := newTransport(t, time.Minute)
	ep := chatEndpoint(srv.URL)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-arrived
			cancel()
		}()
		if _, err := tr.Dispatch(ctx, []domain.Endpoint{ep}, body); !domain.IsExhausted(err) {
			t.Fatalf("dispatch %d: expected exhaustion, got %v", i, err)
		}
		cancel()
	}

	if _, ok := hc.Lookup(ep); ok {
		t.Error("a cancelled caller must not write the health cache")
	}

	raw, err := tr.Dispatch(context.Background(), []domain.Endpoint{ep}, body)
	if err != nil {
		t.Fatalf("expected backend to still be reachable, got %v", err)
	}
	if string(raw.Body) != `{"response":"still here"}` {
		t.Errorf("unexpected body %s", raw.Body)
	}
	if calls.Load() != 6 {
		t.Errorf("expected 6 calls, got %d", calls.Load())
	}
}

func TestDispatch_Concurrent(t *testing.T) {
	var badCalls, goodCalls atomic.Int32
	bad := countingServer(t, &badCalls, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	good := countingServer(t, &goodCalls, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"ok"}`))
	})

	tr, hc, _ := newTransport(t, time.Minute)
	candidates := []domain.Endpoint{chatEndpoint(bad.URL), chatEndpoint(good.URL)}

	const callers = 20
	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := tr.Dispatch(context.Background(), candidates, body)
			if err != nil || raw.Endpoint.URL != candidates[1].URL {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("expected every caller answered by the healthy backend, %d failed", failures.Load())
	}
	if goodCalls.Load() != callers {
		t.Errorf("expected %d calls to the healthy backend, got %d", callers, goodCalls.Load())
	}
	if n := badCalls.Load(); n < 1 || n > callers {
		t.Errorf("unexpected calls to the failing backend: %d", n)
	}
	if !hc.KnownUnhealthy(candidates[0]) {
		t.Error("expected failing endpoint marked unhealthy")
	}
}

func TestDispatch_EmptyCandidates(t *testing.T) {
	tr, _, _ := newTransport(t, time.Minute)
	_, err := tr.Dispatch(context.Background(), nil, body)
	if !domain.IsExhausted(err) {
		t.Errorf("expected exhaustion, got %v", err)
	}
}

func TestTimeouts_For(t *testing.T) {
	to := transport.Timeouts{Chat: 15 * time.Second, Analyze: 30 * time.Second, Health: 5 * time.Second}

	tests := []struct {
		name string
		ep   domain.Endpoint
		want time.Duration
	}{
		{"chat", domain.Endpoint{Method: http.MethodPost, BodyShape: domain.ShapeMessage}, 15 * time.Second},
		{"legacy", domain.Endpoint{Method: http.MethodPost, BodyShape: domain.ShapeQuery}, 15 * time.Second},
		{"analyze", domain.Endpoint{Method: http.MethodPost, BodyShape: domain.ShapeSequence}, 30 * time.Second},
		{"health", domain.Endpoint{Method: http.MethodGet}, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := to.For(tt.ep); got != tt.want {
				t.Errorf("For() = %s, want %s", got, tt.want)
			}
		})
	}
}
