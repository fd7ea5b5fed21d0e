package custody

import "github.com/shopspring/decimal"

// TransferStatus is the provider-reported state of a fund movement.
type TransferStatus string

const (
	TransferPending TransferStatus = "pending"
	TransferSuccess TransferStatus = "success"
	TransferFailed  TransferStatus = "failed"
)

// TransferRequest is a single idempotent fund movement. Submitting the
// same IdempotencyKey and payload twice must not move funds twice.
type TransferRequest struct {
	To             string          `json:"to"`
	Amount         decimal.Decimal `json:"amount"`
	Asset          string          `json:"asset"`
	IdempotencyKey string          `json:"-"`
}

// TransferResult is the provider's response to a transfer submission.
type TransferResult struct {
	Status      TransferStatus `json:"status"`
	ProviderRef string         `json:"reference"`
}

// FeeRequest describes an anticipated fund movement for estimation.
type FeeRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Asset  string          `json:"asset"`
}

// FeeEstimate is the provider's fee quote.
type FeeEstimate struct {
	Fee               decimal.Decimal `json:"fee"`
	FeeAsset          string          `json:"feeAsset"`
	SufficientBalance bool            `json:"sufficientBalance"`
}

type balanceResponse struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type statusResponse struct {
	Status    TransferStatus `json:"status"`
	Reference string         `json:"reference"`
}
