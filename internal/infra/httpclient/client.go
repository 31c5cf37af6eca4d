package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	Name               string
	Timeout            time.Duration
	RatePerSec         int
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

func New(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewGuarded returns a client whose transport waits on a token bucket and
// trips a circuit breaker after consecutive failures or 5xx answers.
func NewGuarded(opts Options, log *zap.Logger) *http.Client {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BreakerMaxFailures <= 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(opts.BreakerMaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: guardedTransport{
			next:    http.DefaultTransport,
			cb:      cb,
			limiter: limiter,
		},
	}
}

type guardedTransport struct {
	next    http.RoundTripper
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func (t guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("wait rate limiter: %w", err)
		}
	}

	res, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			// the body stays readable for the caller
			return resp, &upstreamError{status: resp.StatusCode, resp: resp}
		}
		return resp, nil
	})
	if err != nil {
		var ue *upstreamError
		if errors.As(err, &ue) {
			return ue.resp, nil
		}
		return nil, err
	}
	return res.(*http.Response), nil
}

type upstreamError struct {
	status int
	resp   *http.Response
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream status %d", e.status)
}

// IsOpen reports whether err came from an open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
