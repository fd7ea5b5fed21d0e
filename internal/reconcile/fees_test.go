package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		feeBps  int64
		wantNet string
		wantFee string
		wantErr bool
	}{
		{name: "quarter percent floors", amount: "1000", feeBps: 25, wantNet: "998", wantFee: "2"},
		{name: "two and a half percent", amount: "1000", feeBps: 250, wantNet: "975", wantFee: "25"},
		{name: "zero fee", amount: "1000", feeBps: 0, wantNet: "1000", wantFee: "0"},
		{name: "max fee", amount: "1000", feeBps: 1000, wantNet: "900", wantFee: "100"},
		{name: "fee rounds down", amount: "999", feeBps: 250, wantNet: "975", wantFee: "24"},
		{name: "tiny amount rounds to zero fee", amount: "3", feeBps: 250, wantNet: "3", wantFee: "0"},
		{name: "zero amount", amount: "0", feeBps: 500, wantNet: "0", wantFee: "0"},
		{name: "large wei amount", amount: "1000000000000000000", feeBps: 30, wantNet: "997000000000000000", wantFee: "3000000000000000"},
		{name: "fee above cap", amount: "1000", feeBps: 1001, wantErr: true},
		{name: "negative fee", amount: "1000", feeBps: -1, wantErr: true},
		{name: "negative amount", amount: "-5", feeBps: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			if err != nil {
				t.Fatalf("parse amount: %v", err)
			}
			net, fee, err := SplitAmount(amount, tt.feeBps)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitAmount: %v", err)
			}
			if net.String() != tt.wantNet {
				t.Errorf("net = %s, want %s", net, tt.wantNet)
			}
			if fee.String() != tt.wantFee {
				t.Errorf("fee = %s, want %s", fee, tt.wantFee)
			}
		})
	}
}

func TestSplitAmountConserves(t *testing.T) {
	amounts := []string{"1", "7", "999", "12345678901234567890", "1000000000000000000"}
	for _, a := range amounts {
		amount, _ := decimal.NewFromString(a)
		for bps := int64(0); bps <= MaxFeeBps; bps += 37 {
			net, fee, err := SplitAmount(amount, bps)
			if err != nil {
				t.Fatalf("SplitAmount(%s, %d): %v", a, bps, err)
			}
			if !net.Add(fee).Equal(amount) {
				t.Fatalf("net %s + fee %s != amount %s at %d bps", net, fee, amount, bps)
			}
			if fee.IsNegative() || net.IsNegative() {
				t.Fatalf("negative split at %s, %d bps", a, bps)
			}
		}
	}
}
