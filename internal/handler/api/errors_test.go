package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"SignalPilot/internal/domain/errs"
	xhttp "SignalPilot/pkg/http"
)

func TestToAppError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter time.Duration
	}{
		{"order not found", errs.Validation("order_not_found", "order x not found"), http.StatusNotFound, "order_not_found", 0},
		{"throttled", errs.Conflict("signal_throttled", "slow down"), http.StatusTooManyRequests, "signal_throttled", 2 * time.Second},
		{"conflict", errs.Conflict("ticker_cooling_down", "locked"), http.StatusConflict, "ticker_cooling_down", 0},
		{"validation", errs.Validation("direction_unknown", "no hint"), http.StatusBadRequest, "direction_unknown", 0},
		{"transient wrapped", fmt.Errorf("pipeline: %w", errs.Transient("feed_down", errors.New("timeout"))), http.StatusServiceUnavailable, "feed_down", 5 * time.Second},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal", 0},
		{"app error passes through", xhttp.NotFoundError("nothing"), http.StatusNotFound, "not_found", 0},
	}
	for _, tc := range cases {
		got := toAppError(tc.err)
		if got.Status != tc.status || got.Code != tc.code || got.RetryAfter != tc.retryAfter {
			t.Fatalf("%s: got status=%d code=%s retry=%s", tc.name, got.Status, got.Code, got.RetryAfter)
		}
	}
}
