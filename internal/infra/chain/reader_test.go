package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/velia-labs/settler/internal/core/domain"
)

// fakeCaller answers RPC calls from canned JSON keyed by method.
type fakeCaller struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeCaller) CallInto(ctx context.Context, result any, method string, params ...any) error {
	f.calls = append(f.calls, method)
	if err, ok := f.errs[method]; ok {
		return err
	}
	raw, ok := f.responses[method]
	if !ok {
		return fmt.Errorf("unexpected method %s", method)
	}
	return json.Unmarshal([]byte(raw), result)
}

func TestLatestBlock(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		want    uint64
		wantErr bool
	}{
		{name: "prefixed", hex: `"0x1b4"`, want: 436},
		{name: "zero", hex: `"0x0"`, want: 0},
		{name: "large", hex: `"0x112a880"`, want: 18000000},
		{name: "garbage", hex: `"zz"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRPCReader(&fakeCaller{responses: map[string]string{"eth_blockNumber": tt.hex}})
			got, err := r.LatestBlock(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LatestBlock: %v", err)
			}
			if got != tt.want {
				t.Errorf("block = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEventsInRangeSortsByChainOrder(t *testing.T) {
	// Provider returns entries out of order; the reader must normalize.
	resp := `[
		{"kind":"InvoiceFunded","invoiceId":2,"amount":"50","asset":"native","blockNumber":9,"logIndex":1},
		{"kind":"InvoiceFunded","invoiceId":1,"amount":"100","asset":"native","blockNumber":7,"logIndex":0},
		{"kind":"InvoiceFunded","invoiceId":3,"amount":"75","asset":"native","blockNumber":9,"logIndex":0}
	]`
	r := NewRPCReader(&fakeCaller{responses: map[string]string{"invoice_getEvents": resp}})

	events, err := r.GetEventsInRange(context.Background(), domain.EventInvoiceFunded, 1, 10)
	if err != nil {
		t.Fatalf("GetEventsInRange: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	wantOrder := []uint64{1, 3, 2}
	for i, want := range wantOrder {
		if events[i].InvoiceID != want {
			t.Errorf("events[%d].InvoiceID = %d, want %d", i, events[i].InvoiceID, want)
		}
	}
	if events[0].Amount.String() != "100" {
		t.Errorf("amount = %s, want 100", events[0].Amount)
	}
}

func TestGetEventsInRangeRejectsBadAmount(t *testing.T) {
	resp := `[{"kind":"InvoiceFunded","invoiceId":1,"amount":"not-a-number","asset":"native","blockNumber":7,"logIndex":0}]`
	r := NewRPCReader(&fakeCaller{responses: map[string]string{"invoice_getEvents": resp}})
	if _, err := r.GetEventsInRange(context.Background(), domain.EventInvoiceFunded, 1, 10); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}

func TestGetInvoice(t *testing.T) {
	resp := `{"id":42,"issuer":"acct-i","payer":"acct-p","receiver":"acct-r","amount":"1000","asset":"native","requiresDelivery":true,"feeBps":250,"status":"Funded","createdAt":1700000000,"fundedAt":1700000100,"deliveredAt":0,"completedAt":0}`
	r := NewRPCReader(&fakeCaller{responses: map[string]string{"invoice_get": resp}})

	inv, err := r.GetInvoice(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if inv.ID != 42 || inv.Amount.String() != "1000" || inv.FeeBps != 250 {
		t.Errorf("invoice = %+v", inv)
	}
	if !inv.RequiresDelivery || inv.Status != domain.InvoiceStatusFunded {
		t.Errorf("invoice = %+v", inv)
	}
	if inv.FundedAt == nil || inv.DeliveredAt != nil {
		t.Errorf("timestamps: fundedAt=%v deliveredAt=%v", inv.FundedAt, inv.DeliveredAt)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	tests := []struct {
		name  string
		fake  *fakeCaller
	}{
		{
			name: "provider error",
			fake: &fakeCaller{errs: map[string]error{"invoice_get": errors.New("rpc error: invoice not found")}},
		},
		{
			name: "null result",
			fake: &fakeCaller{responses: map[string]string{"invoice_get": "null"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRPCReader(tt.fake)
			_, err := r.GetInvoice(context.Background(), 99)
			if !errors.Is(err, domain.ErrInvoiceNotFound) {
				t.Errorf("err = %v, want ErrInvoiceNotFound", err)
			}
		})
	}
}
