package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"excavator/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*SchwabClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading ET location: %v", err)
	}
	return NewSchwabClient(srv.URL, "test-token", 5*time.Second, loc, testLogger()), srv
}

func validChainRequest() ChainRequest {
	today := time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)
	return NewChainRequest("$SPX.X", domain.ContractAll, 0, 60, today)
}

func TestGetOptionChain(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("symbol"); got != "$SPX.X" {
			t.Errorf("symbol param = %q, want $SPX.X", got)
		}
		if got := r.URL.Query().Get("includeQuotes"); got != "FALSE" {
			t.Errorf("includeQuotes param = %q, want FALSE", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Write([]byte(`{
			"status": "SUCCESS",
			"symbol": "$SPX.X",
			"underlyingPrice": 5123.5,
			"putExpDateMap": {"2024-03-15:7": {"5000.0": [{"putCall": "PUT", "strikePrice": 5000, "bid": 1.2, "ask": 1.4}]}},
			"callExpDateMap": {"2024-03-15:7": {"5000.0": [{"putCall": "CALL", "strikePrice": 5000, "bid": 130.0, "ask": 131.0}]}}
		}`))
	}))

	chain, err := client.GetOptionChain(context.Background(), validChainRequest())
	if err != nil {
		t.Fatalf("GetOptionChain returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1", calls)
	}
	if !chain.Complete() {
		t.Fatal("chain should have both expiration maps")
	}
	if chain.UnderlyingPrice != 5123.5 {
		t.Errorf("underlying price = %v, want 5123.5", chain.UnderlyingPrice)
	}
	details := chain.PutExpDateMap["2024-03-15:7"]["5000.0"]
	if len(details) != 1 || details[0].PutCall != "PUT" {
		t.Errorf("unexpected put details: %+v", details)
	}
}

func TestGetOptionChainRetryBound(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetOptionChain(context.Background(), validChainRequest())
	if err == nil {
		t.Fatal("GetOptionChain should fail when every attempt fails")
	}
	if calls != fetchAttempts {
		t.Errorf("server saw %d calls, want exactly %d", calls, fetchAttempts)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindNetwork {
		t.Errorf("error = %v, want network APIError", err)
	}
}

func TestGetOptionChainFailedStatusRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.Write([]byte(`{"status": "FAILED"}`))
			return
		}
		w.Write([]byte(`{"status": "SUCCESS", "underlyingPrice": 1.0, "putExpDateMap": {}, "callExpDateMap": {}}`))
	}))

	chain, err := client.GetOptionChain(context.Background(), validChainRequest())
	if err != nil {
		t.Fatalf("GetOptionChain returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
	if !chain.Complete() {
		t.Error("chain should be complete after successful retry")
	}
}

func TestGetOptionChainAuthNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetOptionChain(context.Background(), validChainRequest())
	if err == nil {
		t.Fatal("GetOptionChain should fail on auth error")
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1 (auth failures are not retried)", calls)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindAuth {
		t.Errorf("error = %v, want auth APIError", err)
	}
}

func TestGetOptionChainInvalidRequestNoNetworkCall(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	req := validChainRequest()
	req.Symbol = ""
	if _, err := client.GetOptionChain(context.Background(), req); err == nil {
		t.Error("empty symbol should be rejected")
	}

	req = validChainRequest()
	req.FromDate, req.ToDate = req.ToDate, req.FromDate
	if _, err := client.GetOptionChain(context.Background(), req); err == nil {
		t.Error("inverted date range should be rejected")
	}

	if calls != 0 {
		t.Errorf("server saw %d calls, want 0 for invalid requests", calls)
	}
}

func TestGetMarketHours(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("markets"); got != "OPTION" {
			t.Errorf("markets param = %q, want OPTION", got)
		}
		w.Write([]byte(`{
			"option": {
				"IND": {
					"isOpen": true,
					"sessionHours": {
						"regularMarket": [{"start": "2024-03-08T09:30:00-05:00", "end": "2024-03-08T16:15:00-05:00"}]
					}
				}
			}
		}`))
	}))

	date := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	sess, err := client.GetMarketHours(context.Background(), "OPTION", "IND", date)
	if err != nil {
		t.Fatalf("GetMarketHours returned error: %v", err)
	}

	if !sess.IsOpen {
		t.Error("session should be open")
	}
	if sess.Start.After(sess.End) {
		t.Error("session start must not be after end")
	}
	if got := sess.Start.Location().String(); got != "America/New_York" {
		t.Errorf("session location = %q, want America/New_York", got)
	}
	if sess.Start.Hour() != 9 || sess.Start.Minute() != 30 {
		t.Errorf("session start = %v, want 09:30 ET", sess.Start)
	}
}

func TestGetMarketHoursNoSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"option": {"EQO": {"isOpen": false, "sessionHours": {}}}}`))
	}))

	date := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	_, err := client.GetMarketHours(context.Background(), "OPTION", "IND", date)
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("error = %v, want ErrNoSession", err)
	}
}

func TestGetQuote(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "$VIX.X" {
			t.Errorf("symbols param = %q, want $VIX.X", got)
		}
		w.Write([]byte(`{"$VIX.X": {"lastPrice": 14.7}}`))
	}))

	q, err := client.GetQuote(context.Background(), "$VIX.X")
	if err != nil {
		t.Fatalf("GetQuote returned error: %v", err)
	}
	if q.LastPrice != 14.7 {
		t.Errorf("last price = %v, want 14.7", q.LastPrice)
	}
}

func TestGetQuoteMissingSymbolRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{}`))
	}))

	_, err := client.GetQuote(context.Background(), "$VIX.X")
	if err == nil {
		t.Fatal("GetQuote should fail when the symbol is missing")
	}
	if calls != fetchAttempts {
		t.Errorf("server saw %d calls, want %d", calls, fetchAttempts)
	}
}
