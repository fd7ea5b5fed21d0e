package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, handler http.Handler) (*HTTPGateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw := NewHTTPGateway(Config{
		APIKey:          "key-test",
		BaseURL:         srv.URL,
		WalletID:        "wallet-1",
		PlatformAccount: "acct-platform",
	}, discardLogger())
	return gw, srv
}

func TestTransferSendsAuthAndIdempotencyHeaders(t *testing.T) {
	ctx := context.Background()

	var gotIdemKey, gotAPIKey, gotPath string
	var gotBody TransferRequest
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdemKey = r.Header.Get("Idempotency-Key")
		gotAPIKey = r.Header.Get("Api-Key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(TransferResult{Status: TransferSuccess, ProviderRef: "tr-1"})
	}))

	res, err := gw.Transfer(ctx, TransferRequest{
		To:             "acct-dst",
		Amount:         decimal.NewFromInt(100),
		Asset:          "native",
		IdempotencyKey: "inv:1:release_net:5:0",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Status != TransferSuccess || res.ProviderRef != "tr-1" {
		t.Errorf("result = %+v", res)
	}
	if gotIdemKey != "inv:1:release_net:5:0" {
		t.Errorf("Idempotency-Key = %q", gotIdemKey)
	}
	if gotAPIKey != "key-test" {
		t.Errorf("Api-Key = %q", gotAPIKey)
	}
	if gotPath != "/v1/wallets/wallet-1/transfers" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.To != "acct-dst" || !gotBody.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestTransferRequiresIdempotencyKey(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the provider without an idempotency key")
	}))
	_, err := gw.Transfer(context.Background(), TransferRequest{To: "x", Amount: decimal.NewFromInt(1), Asset: "native"})
	if err == nil {
		t.Fatal("expected error for missing idempotency key")
	}
}

func TestTransferAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantPermanent bool
	}{
		{name: "unprocessable", status: 422, body: `{"message":"unsupported asset","code":"ASSET"}`, wantPermanent: true},
		{name: "bad request", status: 400, body: `{"message":"bad to address"}`, wantPermanent: true},
		{name: "rate limited", status: 429, body: `{"message":"slow down"}`, wantPermanent: false},
		{name: "server error", status: 500, body: `{"message":"boom"}`, wantPermanent: false},
		{name: "non-json error body", status: 503, body: `upstream unavailable`, wantPermanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			_, err := gw.Transfer(context.Background(), TransferRequest{
				To: "x", Amount: decimal.NewFromInt(1), Asset: "native", IdempotencyKey: "k",
			})
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %v is not an APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if got := IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v", got, tt.wantPermanent)
			}
		})
	}
}

func TestGetBalanceParsesDecimal(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/wallets/wallet-1/balance" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("asset"); got != "native" {
			t.Errorf("asset = %q", got)
		}
		json.NewEncoder(w).Encode(balanceResponse{Asset: "native", Balance: "123456789000000000000"})
	}))

	bal, err := gw.GetBalance(context.Background(), "native")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	want, _ := decimal.NewFromString("123456789000000000000")
	if !bal.Equal(want) {
		t.Errorf("balance = %s, want %s", bal, want)
	}
}

func TestEstimateFee(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FeeEstimate{
			Fee:               decimal.NewFromInt(21000),
			FeeAsset:          "native",
			SufficientBalance: true,
		})
	}))

	est, err := gw.EstimateFee(context.Background(), FeeRequest{To: "x", Amount: decimal.NewFromInt(100), Asset: "native"})
	if err != nil {
		t.Fatalf("estimate fee: %v", err)
	}
	if !est.Fee.Equal(decimal.NewFromInt(21000)) || !est.SufficientBalance {
		t.Errorf("estimate = %+v", est)
	}
}

func TestPollStatusResolvesAfterPendingResponses(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := TransferPending
		if calls.Add(1) >= 3 {
			status = TransferSuccess
		}
		json.NewEncoder(w).Encode(statusResponse{Status: status, Reference: "tr-9"})
	}))

	status, err := gw.PollStatus(context.Background(), "tr-9", 5, time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status != TransferSuccess {
		t.Errorf("status = %s, want success", status)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("polled %d times, want 3", n)
	}
}

func TestPollStatusTimesOutOnBudget(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Status: TransferPending, Reference: "tr-9"})
	}))

	_, err := gw.PollStatus(context.Background(), "tr-9", 3, time.Millisecond)
	if !errors.Is(err, ErrStatusPollTimeout) {
		t.Fatalf("err = %v, want ErrStatusPollTimeout", err)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	}))

	for i := 0; i < 8; i++ {
		_, _ = gw.GetBalance(context.Background(), "native")
	}
	// The breaker trips after five consecutive failures; subsequent calls
	// fail fast without reaching the provider.
	if n := calls.Load(); n != 5 {
		t.Errorf("provider saw %d calls, want 5", n)
	}
	_, err := gw.GetBalance(context.Background(), "native")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want gobreaker.ErrOpenState", err)
	}
}
