package mirror

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"proxyctl/internal/shared/types"
)

const testProbe = "https://raw.example.com/LICENSE.txt"

// scriptedProber answers from a table keyed by candidate prefix.
type scriptedProber struct {
	mu      sync.Mutex
	latency map[string]time.Duration // missing prefix means unreachable
	calls   []string
}

func (p *scriptedProber) Probe(_ context.Context, url string, _ time.Duration) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	prefix := strings.TrimSuffix(url, testProbe)
	if d, ok := p.latency[prefix]; ok {
		return d, nil
	}
	return 0, errors.New("unreachable")
}

func TestSelectFastest_PicksLowestLatency(t *testing.T) {
	prober := &scriptedProber{latency: map[string]time.Duration{
		"":                  200 * time.Millisecond,
		"https://mirror-a/": 50 * time.Millisecond,
	}}
	sel := NewSelector(WithProber(prober))
	candidates := []Candidate{Direct(), {Prefix: "https://mirror-a/"}, {Prefix: "https://mirror-b/"}}

	got, err := sel.SelectFastest(context.Background(), candidates, testProbe, time.Second)
	if err != nil {
		t.Fatalf("SelectFastest failed: %v", err)
	}
	if got.Prefix != "https://mirror-a/" {
		t.Fatalf("SelectFastest = %q, want mirror-a", got.Prefix)
	}
	if len(prober.calls) != 3 {
		t.Fatalf("expected every candidate probed once, got %v", prober.calls)
	}
}

func TestSelectFastest_AllUnreachable(t *testing.T) {
	sel := NewSelector(WithProber(&scriptedProber{}))
	candidates := []Candidate{Direct(), {Prefix: "https://mirror-a/"}, {Prefix: "https://mirror-b/"}}

	_, err := sel.SelectFastest(context.Background(), candidates, testProbe, time.Second)
	if !errors.Is(err, types.ErrNoMirrorAvailable) {
		t.Fatalf("SelectFastest error = %v, want no mirror available", err)
	}
}

func TestSelectFastest_EmptyCandidates(t *testing.T) {
	sel := NewSelector(WithProber(&scriptedProber{}))
	if _, err := sel.SelectFastest(context.Background(), nil, testProbe, time.Second); !errors.Is(err, types.ErrNoMirrorAvailable) {
		t.Fatalf("SelectFastest error = %v, want no mirror available", err)
	}
}

func TestSelectFastest_TieGoesToEarlierCandidate(t *testing.T) {
	prober := &scriptedProber{latency: map[string]time.Duration{
		"":                  90 * time.Millisecond,
		"https://mirror-a/": 40 * time.Millisecond,
		"https://mirror-b/": 40 * time.Millisecond,
	}}
	sel := NewSelector(WithProber(prober))

	forward := []Candidate{Direct(), {Prefix: "https://mirror-a/"}, {Prefix: "https://mirror-b/"}}
	got, err := sel.SelectFastest(context.Background(), forward, testProbe, time.Second)
	if err != nil || got.Prefix != "https://mirror-a/" {
		t.Fatalf("forward order: got %q err %v, want mirror-a", got.Prefix, err)
	}

	reversed := []Candidate{Direct(), {Prefix: "https://mirror-b/"}, {Prefix: "https://mirror-a/"}}
	got, err = sel.SelectFastest(context.Background(), reversed, testProbe, time.Second)
	if err != nil || got.Prefix != "https://mirror-b/" {
		t.Fatalf("reversed order: got %q err %v, want mirror-b", got.Prefix, err)
	}
}

func TestMeasure_KeepsInputOrder(t *testing.T) {
	prober := &scriptedProber{latency: map[string]time.Duration{
		"https://mirror-b/": 10 * time.Millisecond,
	}}
	sel := NewSelector(WithProber(prober))
	candidates := []Candidate{Direct(), {Prefix: "https://mirror-a/"}, {Prefix: "https://mirror-b/"}}

	results := sel.Measure(context.Background(), candidates, testProbe, time.Second)
	if len(results) != len(candidates) {
		t.Fatalf("got %d measurements, want %d", len(results), len(candidates))
	}
	for i, m := range results {
		if m.Candidate != candidates[i] {
			t.Errorf("result %d is for %q, want %q", i, m.Candidate.Prefix, candidates[i].Prefix)
		}
	}
	if results[0].Reachable || results[1].Reachable || !results[2].Reachable {
		t.Fatalf("unexpected reachability: %+v", results)
	}
	if results[0].Err == nil {
		t.Errorf("unreachable measurement should carry its error")
	}
}

func TestCandidate_DisplayName(t *testing.T) {
	if got := (Candidate{}).DisplayName(); got != "Direct connection" {
		t.Errorf("empty prefix display = %q", got)
	}
	if got := (Candidate{Prefix: "https://tvv.tw/"}).DisplayName(); got != "https://tvv.tw/" {
		t.Errorf("prefix display = %q", got)
	}
	if DefaultCandidates()[0].Prefix != "" {
		t.Errorf("default candidates must start with the direct path")
	}
}

// delayedServer answers 200 after delay, or gives up when the client leaves.
func delayedServer(delay time.Duration, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(status)
		w.Write([]byte("MIT License"))
	}))
}

func TestSelectFastest_HTTPProber(t *testing.T) {
	origin := delayedServer(300*time.Millisecond, http.StatusOK)
	defer origin.Close()
	fastMirror := delayedServer(0, http.StatusOK)
	defer fastMirror.Close()
	brokenMirror := delayedServer(0, http.StatusBadGateway)
	defer brokenMirror.Close()
	deadMirror := httptest.NewServer(http.NotFoundHandler())
	deadURL := deadMirror.URL
	deadMirror.Close()

	candidates := []Candidate{
		Direct(),
		{Prefix: brokenMirror.URL + "/"},
		{Prefix: fastMirror.URL + "/"},
		{Prefix: deadURL + "/"},
	}

	got, err := NewSelector().SelectFastest(context.Background(), candidates, origin.URL+"/LICENSE.txt", 2*time.Second)
	if err != nil {
		t.Fatalf("SelectFastest failed: %v", err)
	}
	if got.Prefix != fastMirror.URL+"/" {
		t.Fatalf("SelectFastest = %q, want fast mirror %q", got.Prefix, fastMirror.URL+"/")
	}
}

func TestHTTPProber_TimeoutIsUnreachable(t *testing.T) {
	slow := delayedServer(2*time.Second, http.StatusOK)
	defer slow.Close()

	p, err := NewHTTPProber("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Probe(context.Background(), slow.URL, 100*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestNewHTTPProber_WithSocks5Upstream(t *testing.T) {
	p, err := NewHTTPProber("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewHTTPProber failed: %v", err)
	}
	// Nothing listens on port 1, so every probe fails through the upstream.
	if _, err := p.Probe(context.Background(), "http://example.com/", 500*time.Millisecond); err == nil {
		t.Fatalf("expected probe through dead SOCKS5 upstream to fail")
	}
}
