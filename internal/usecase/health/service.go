package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the overall verdict served on /health.
type Status string

// Overall statuses.
const (
	Healthy   Status = "ok"       // every check passed
	Degraded  Status = "degraded" // some checks failed
	Unhealthy Status = "error"    // every check failed
)

// CheckResult is the outcome of one check.
type CheckResult string

// Check outcomes.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds a single check.
const DefaultCheckTimeout = 3 * time.Second

// Report is the aggregated result together with the active search mode.
type Report struct {
	Status Status                 `json:"status"`
	Mode   string                 `json:"mode,omitempty"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service runs named checks in parallel.
type Service struct {
	checkers map[string]Checker
	mode     string
	timeout  time.Duration
}

// New creates a Service reporting mode. Nil checkers are dropped so callers can pass optional dependencies as is.
func New(mode string, checkers map[string]Checker) *Service {
	kept := make(map[string]Checker, len(checkers))
	for name, c := range checkers {
		if c != nil {
			kept[name] = c
		}
	}
	return &Service{checkers: kept, mode: mode, timeout: DefaultCheckTimeout}
}

// WithTimeout overrides the per-check deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all checks concurrently, each under its own deadline. No checks means healthy.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.checkers))
		failed int
	)
	var g errgroup.Group
	for name, c := range s.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			result := CheckOK
			if c.Check(cctx) != nil {
				result = CheckError
			}
			mu.Lock()
			checks[name] = result
			if result == CheckError {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: verdict(failed, len(checks)), Mode: s.mode, Checks: checks}
}

func verdict(failed, total int) Status {
	switch {
	case failed == 0:
		return Healthy
	case failed == total:
		return Unhealthy
	default:
		return Degraded
	}
}
