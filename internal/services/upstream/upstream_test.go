package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SignalPilot/internal/domain/models"
	domsvc "SignalPilot/internal/domain/service"

	"github.com/shopspring/decimal"
)

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		in      string
		execute bool
		err     error
	}{
		{"YES\nmomentum and breadth agree", true, nil},
		{"yes.", true, nil},
		{"**NO**\nsentiment is extreme", false, nil},
		{"No, the market is against it", false, nil},
		{"Maybe, hard to say", false, domsvc.ErrAmbiguousVerdict},
		{"", false, domsvc.ErrAmbiguousVerdict},
	}
	for _, tc := range cases {
		v, err := ParseVerdict(tc.in)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: expected err %v, got %v", tc.in, tc.err, err)
		}
		if err == nil && v.Execute != tc.execute {
			t.Fatalf("%q: expected execute=%t", tc.in, tc.execute)
		}
	}
}

func TestLLMReasonerEvaluate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"NO\nbreadth is weak"}}]}`))
	}))
	defer srv.Close()

	osc := 72.5
	r := NewLLMReasoner(NewHTTPServiceBase(srv.URL+"/v1/", time.Second, "sk-test"), "gpt-4o-mini")
	v, err := r.Evaluate(context.Background(), domsvc.ReasoningRequest{
		Signal:     &models.Signal{Ticker: "BTC", DirectionHint: models.DirectionLong, Message: "long btc"},
		Snapshot:   &models.MarketDirectionSnapshot{SentimentValue: 55, AllowedDirection: models.AllowLongAndShort},
		Conditions: &models.ConditionEvaluation{FavorableCount: 3, RequiredCount: 3},
		Oscillator: &osc,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.Execute || v.Reasoning != "breadth is weak" {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || len(gotReq.Messages) != 2 {
		t.Fatalf("unexpected request %+v", gotReq)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "RSI: 72.5") {
		t.Fatalf("prompt should carry the oscillator: %s", gotReq.Messages[1].Content)
	}
}

func TestLLMReasonerAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"It depends on the macro picture"}}]}`))
	}))
	defer srv.Close()
	_, err := NewLLMReasoner(NewHTTPServiceBase(srv.URL, time.Second, ""), "m").Evaluate(context.Background(), domsvc.ReasoningRequest{})
	if !errors.Is(err, domsvc.ErrAmbiguousVerdict) {
		t.Fatalf("expected ambiguous verdict, got %v", err)
	}
}

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]bool
	if err := NewHTTPServiceBase(srv.URL, time.Second, "").PostJSONWithRetry(context.Background(), "/x", map[string]int{}, &out, 3); err != nil {
		t.Fatalf("post: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 || !out["ok"] {
		t.Fatalf("expected one retry, hits=%d", hits)
	}
}

func TestPostJSONDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewHTTPServiceBase(srv.URL, time.Second, "").PostJSONWithRetry(context.Background(), "/x", nil, nil, 3)
	if err == nil || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected a single failed attempt, hits=%d err=%v", hits, err)
	}
}

func TestAccountClientValidate(t *testing.T) {
	var got accountCheckRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/validate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"exchange":"binance","balance":{"available":"250.5","bucket":"futures","open_positions":2}}`))
	}))
	defer srv.Close()

	c := NewAccountClient(NewHTTPServiceBase(srv.URL, time.Second, ""))
	check, err := c.Validate(context.Background(),
		models.UserProfile{ID: "u1", Leverage: 5, TradeAmount: decimal.NewFromInt(20)},
		&models.Signal{Ticker: "ETH", DirectionHint: models.DirectionShort})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !check.OK || check.Balance.OpenPositions != 2 || !check.Balance.Available.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("unexpected check %+v", check)
	}
	if got.UserID != "u1" || got.Ticker != "ETH" || got.Direction != models.DirectionShort || got.Amount != "20" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestPaperAccounts(t *testing.T) {
	u := models.UserProfile{ID: "u1", TradeAmount: decimal.NewFromInt(250)}
	check, err := PaperAccounts{}.Validate(context.Background(), u, nil)
	if err != nil || !check.OK {
		t.Fatalf("paper check: %+v %v", check, err)
	}
	if !check.Balance.Available.Equal(u.TradeAmount) || check.Balance.OpenPositions != 0 {
		t.Fatalf("unexpected balance %+v", check.Balance)
	}
}
