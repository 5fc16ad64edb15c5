// Package mirror picks the fastest reachable download path out of a small
// fixed set of GitHub mirrors.
package mirror

import (
	"context"
	"sync"
	"time"

	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

// Selector races candidates against a probe URL.
type Selector struct {
	prober Prober
}

// Option configures a Selector.
type Option func(*Selector)

// WithProber replaces the HTTP prober.
func WithProber(p Prober) Option {
	return func(s *Selector) { s.prober = p }
}

// NewSelector creates a Selector. Without WithProber it probes over plain HTTP.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{}
	for _, opt := range opts {
		opt(s)
	}
	if s.prober == nil {
		// The zero-upstream prober cannot fail to build.
		p, _ := NewHTTPProber("")
		s.prober = p
	}
	return s
}

// Measure probes every candidate concurrently and returns one measurement
// per candidate, in input order. All probes are awaited.
func (s *Selector) Measure(ctx context.Context, candidates []Candidate, probeURL string, timeout time.Duration) []Measurement {
	l := logger.WithComponent("Mirror")

	results := make([]Measurement, len(candidates))
	var wg sync.WaitGroup

	for i, c := range candidates {
		wg.Add(1)
		go func(idx int, cand Candidate) {
			defer wg.Done()

			m := Measurement{Candidate: cand}
			elapsed, err := s.prober.Probe(ctx, cand.URL(probeURL), timeout)
			if err == nil {
				m.Elapsed = elapsed
				m.Reachable = true
				l.Info().Str("mirror", cand.DisplayName()).Dur("elapsed", elapsed).Msgf("%s time: %v", cand.DisplayName(), elapsed)
			} else {
				m.Err = err
				l.Info().Str("mirror", cand.DisplayName()).Err(err).Msgf("%s is not available", cand.DisplayName())
			}
			results[idx] = m
		}(i, c)
	}

	wg.Wait()
	return results
}

// SelectFastest returns the reachable candidate with the smallest elapsed
// time. On a tie the candidate earlier in the input wins. When nothing is
// reachable it fails with a no-mirror-available error.
func (s *Selector) SelectFastest(ctx context.Context, candidates []Candidate, probeURL string, timeout time.Duration) (Candidate, error) {
	l := logger.WithComponent("Mirror")
	l.Info().Int("candidates", len(candidates)).Msg("Selecting fastest GitHub proxy...")

	best, ok := fastest(s.Measure(ctx, candidates, probeURL, timeout))
	if !ok {
		l.Error().Msg("No GitHub proxy available")
		return Candidate{}, types.NewError(types.KindNoMirrorAvailable, "probe "+probeURL, nil)
	}

	l.Info().Str("mirror", best.DisplayName()).Msgf("Fastest GitHub proxy: %s", best.DisplayName())
	return best, nil
}

// fastest scans in input order and keeps the first minimal element.
func fastest(results []Measurement) (Candidate, bool) {
	var (
		best  Measurement
		found bool
	)
	for _, m := range results {
		if !m.Reachable {
			continue
		}
		if !found || m.Elapsed < best.Elapsed {
			best = m
			found = true
		}
	}
	return best.Candidate, found
}
