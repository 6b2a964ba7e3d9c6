package stockbt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/", WithUser("u1", "admin"))
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
	if c.userID != "u1" || c.role != "admin" {
		t.Errorf("identity = %q/%q", c.userID, c.role)
	}
}

func TestClientRequests(t *testing.T) {
	var gotUser, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-ID")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "POST /api/backtest":
			var req BacktestRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(BacktestResult{Ticker: req.Ticker, NumTrades: 3, RunID: "r1"})
		case "GET /api/tickers":
			w.Write([]byte(`["AAPL","MSFT"]`))
		case "GET /api/backtest-runs":
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`[{"id":"r1","ticker":"AAPL"}]`))
		case "GET /api/backtest-runs/r1":
			w.Write([]byte(`{"id":"r1","ticker":"AAPL","equity_curve":[{"equity":1}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"backtest run not found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithUser("alice", ""))
	ctx := context.Background()

	res, err := c.RunBacktest(ctx, BacktestRequest{Ticker: "AAPL"})
	if err != nil || res.Ticker != "AAPL" || res.NumTrades != 3 || res.RunID != "r1" {
		t.Errorf("RunBacktest = %+v, %v", res, err)
	}
	if gotUser != "alice" {
		t.Errorf("X-User-ID = %q", gotUser)
	}

	tickers, err := c.Tickers(ctx)
	if err != nil || len(tickers) != 2 {
		t.Errorf("Tickers = %v, %v", tickers, err)
	}

	runs, err := c.ListRuns(ctx, 5, 20)
	if err != nil || len(runs) != 1 {
		t.Errorf("ListRuns = %v, %v", runs, err)
	}
	if gotQuery != "limit=20&skip=5" {
		t.Errorf("query = %q", gotQuery)
	}

	run, err := c.GetRun(ctx, "r1")
	if err != nil || len(run.EquityCurve) != 1 {
		t.Errorf("GetRun = %+v, %v", run, err)
	}

	_, err = c.GetRun(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("GetRun(missing) err = %v, want not found", err)
	}
}

func TestClientValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid parameters","errors":["ticker symbol is required","sma period must be between 1 and 200"]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RunBacktest(context.Background(), BacktestRequest{})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %T %v, want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || len(apiErr.Problems) != 2 {
		t.Errorf("APIError = %+v", apiErr)
	}
}
