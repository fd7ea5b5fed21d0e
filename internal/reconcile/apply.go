package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/custody"
	"github.com/velia-labs/settler/internal/reconcile/metrics"
)

// Outcome classifies how a single event was handled.
type Outcome int

const (
	// OutcomeApplied means the custody action completed.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means a precondition was unmet; expected under
	// replay and out-of-order redelivery, not an error.
	OutcomeSkipped
	// OutcomeFailed means the operation failed permanently; recorded,
	// escalated, custody stays held. The range may still complete.
	OutcomeFailed
	// OutcomeUnresolved means a transient failure; the range is retried
	// next cycle with identical idempotency keys.
	OutcomeUnresolved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unresolved"
	}
}

// applyEvent reacts to one observed on-chain transition.
func (e *Engine) applyEvent(ctx context.Context, ev domain.RawEvent) Outcome {
	switch ev.Kind {
	case domain.EventInvoiceCreated:
		e.log.Debug("invoice created", "invoice", ev.InvoiceID, "block", ev.Block)
		return OutcomeApplied

	case domain.EventDeliverySubmitted, domain.EventDeliveryConfirmed:
		if !ev.RequiresDelivery {
			e.log.Debug("delivery event for non-escrow invoice, skipping",
				"invoice", ev.InvoiceID, "kind", ev.Kind)
			return OutcomeSkipped
		}
		// Informational; release waits for InvoiceCompleted.
		e.log.Debug("delivery progress", "invoice", ev.InvoiceID, "kind", ev.Kind)
		return OutcomeApplied

	case domain.EventInvoiceFunded:
		return e.applyFunded(ctx, ev)

	case domain.EventInvoiceCompleted:
		return e.applyCompleted(ctx, ev)

	case domain.EventInvoiceCancelled:
		return e.applyCancelled(ctx, ev)

	default:
		e.log.Warn("unknown event kind", "kind", ev.Kind, "invoice", ev.InvoiceID)
		return OutcomeSkipped
	}
}

// applyFunded creates the held custody record. Replays are inert because
// the insert is conditional on absence.
func (e *Engine) applyFunded(ctx context.Context, ev domain.RawEvent) Outcome {
	created, err := e.custody.CreateHeld(ctx, &domain.CustodyRecord{
		InvoiceID: ev.InvoiceID,
		Amount:    ev.Amount,
		Asset:     ev.Asset,
	})
	if err != nil {
		e.log.Warn("create custody record failed", "invoice", ev.InvoiceID, "error", err)
		return OutcomeUnresolved
	}
	if !created {
		e.log.Debug("custody record already exists, skipping", "invoice", ev.InvoiceID)
		return OutcomeSkipped
	}
	e.log.Info("funds held", "invoice", ev.InvoiceID, "amount", ev.Amount.String(), "asset", ev.Asset)
	return OutcomeApplied
}

// applyCompleted releases held funds: net amount to the receiver and the
// platform fee to the platform account, as two separate idempotent
// operations.
func (e *Engine) applyCompleted(ctx context.Context, ev domain.RawEvent) Outcome {
	rec, err := e.custody.Get(ctx, ev.InvoiceID)
	if err != nil {
		e.log.Warn("get custody record failed", "invoice", ev.InvoiceID, "error", err)
		return OutcomeUnresolved
	}
	if rec == nil || rec.Status != domain.CustodyStatusHeld {
		e.log.Debug("no held custody record for completion, skipping",
			"invoice", ev.InvoiceID, "have", recStatus(rec))
		return OutcomeSkipped
	}

	net, fee, err := SplitAmount(rec.Amount, ev.FeeBps)
	if err != nil {
		e.escalate(ctx, ev, "", "bad_fee", err.Error())
		return OutcomeFailed
	}

	outcome := e.executeTransfer(ctx, ev, domain.OpReleaseNet, ev.Receiver, net, rec.Asset)
	if outcome != opDone {
		return outcome.eventOutcome()
	}
	if fee.IsPositive() {
		outcome = e.executeTransfer(ctx, ev, domain.OpReleaseFee, e.gateway.PlatformAccount(), fee, rec.Asset)
		if outcome != opDone {
			return outcome.eventOutcome()
		}
	}

	if err := e.custody.Transition(ctx, ev.InvoiceID, domain.CustodyStatusReleased); err != nil {
		if errors.Is(err, domain.ErrCustodyConflict) {
			return OutcomeSkipped
		}
		e.log.Warn("custody release transition failed", "invoice", ev.InvoiceID, "error", err)
		return OutcomeUnresolved
	}
	e.log.Info("funds released", "invoice", ev.InvoiceID,
		"net", net.String(), "fee", fee.String(), "receiver", ev.Receiver)
	return OutcomeApplied
}

// applyCancelled refunds the full held amount to the payer. A cancel for
// a never-funded invoice moves no funds.
func (e *Engine) applyCancelled(ctx context.Context, ev domain.RawEvent) Outcome {
	rec, err := e.custody.Get(ctx, ev.InvoiceID)
	if err != nil {
		e.log.Warn("get custody record failed", "invoice", ev.InvoiceID, "error", err)
		return OutcomeUnresolved
	}
	if rec == nil {
		e.log.Debug("cancellation of unfunded invoice, nothing to refund", "invoice", ev.InvoiceID)
		return OutcomeApplied
	}
	if rec.Status != domain.CustodyStatusHeld {
		e.log.Debug("custody record not held, skipping refund",
			"invoice", ev.InvoiceID, "have", recStatus(rec))
		return OutcomeSkipped
	}

	outcome := e.executeTransfer(ctx, ev, domain.OpRefund, ev.Payer, rec.Amount, rec.Asset)
	if outcome != opDone {
		return outcome.eventOutcome()
	}

	if err := e.custody.Transition(ctx, ev.InvoiceID, domain.CustodyStatusRefunded); err != nil {
		if errors.Is(err, domain.ErrCustodyConflict) {
			return OutcomeSkipped
		}
		e.log.Warn("custody refund transition failed", "invoice", ev.InvoiceID, "error", err)
		return OutcomeUnresolved
	}
	e.log.Info("funds refunded", "invoice", ev.InvoiceID,
		"amount", rec.Amount.String(), "payer", ev.Payer)
	return OutcomeApplied
}

// opOutcome is the resolution of a single idempotent fund movement.
type opOutcome int

const (
	opDone opOutcome = iota
	opFailedTerminal
	opUnresolved
)

func (o opOutcome) eventOutcome() Outcome {
	if o == opFailedTerminal {
		return OutcomeFailed
	}
	return OutcomeUnresolved
}

// executeTransfer performs one fund movement exactly-once-in-effect:
// resolved-success entries short-circuit, a pending entry is recorded
// before the call, and the outcome is recorded after.
func (e *Engine) executeTransfer(
	ctx context.Context,
	ev domain.RawEvent,
	op domain.OpType,
	to string,
	amount decimal.Decimal,
	asset string,
) opOutcome {
	key := domain.OpKey(ev.InvoiceID, op, ev.Block, ev.LogIndex)

	entry, err := e.idem.Get(ctx, key)
	if err != nil {
		e.log.Warn("idempotency lookup failed", "op_key", key, "error", err)
		return opUnresolved
	}
	if entry != nil && entry.Status == domain.OpStatusSuccess {
		e.log.Debug("operation already succeeded, skipping", "op_key", key)
		return opDone
	}

	if out := e.gateLiquidity(ctx, ev, key, to, amount, asset); out != opDone {
		return out
	}

	entry, err = e.idem.PutPending(ctx, key, domain.PayloadHash(to, amount.String(), asset))
	if err != nil {
		e.log.Warn("record pending entry failed", "op_key", key, "error", err)
		return opUnresolved
	}
	if entry.Status == domain.OpStatusSuccess {
		// A webhook resolved this key between lookup and now.
		return opDone
	}
	if entry.Attempts > e.cfg.MaxAttempts {
		e.escalate(ctx, ev, key, "retry_budget_exceeded",
			fmt.Sprintf("attempt %d of %d", entry.Attempts, e.cfg.MaxAttempts))
	}

	res, err := e.gateway.Transfer(ctx, custody.TransferRequest{
		To:             to,
		Amount:         amount,
		Asset:          asset,
		IdempotencyKey: key,
	})
	if err != nil {
		if custody.IsPermanent(err) {
			if rerr := e.idem.Resolve(ctx, key, domain.OpStatusFailed, ""); rerr != nil {
				e.log.Warn("record failed entry failed", "op_key", key, "error", rerr)
				return opUnresolved
			}
			e.escalate(ctx, ev, key, "provider_rejection", err.Error())
			metrics.TransfersSubmitted.WithLabelValues(e.cfg.ChainID, string(op), "failed").Inc()
			return opFailedTerminal
		}
		e.log.Warn("transfer failed, will retry", "op_key", key, "error", err)
		return opUnresolved
	}
	metrics.TransfersSubmitted.WithLabelValues(e.cfg.ChainID, string(op), string(res.Status)).Inc()

	switch res.Status {
	case custody.TransferSuccess:
		if err := e.idem.Resolve(ctx, key, domain.OpStatusSuccess, res.ProviderRef); err != nil {
			e.log.Warn("record success entry failed", "op_key", key, "error", err)
			return opUnresolved
		}
		return opDone

	case custody.TransferFailed:
		if err := e.idem.Resolve(ctx, key, domain.OpStatusFailed, res.ProviderRef); err != nil {
			e.log.Warn("record failed entry failed", "op_key", key, "error", err)
			return opUnresolved
		}
		e.escalate(ctx, ev, key, "transfer_failed", "provider reported failure on submission")
		return opFailedTerminal

	default: // pending
		if err := e.idem.AttachProviderRef(ctx, key, res.ProviderRef); err != nil {
			e.log.Warn("attach provider ref failed", "op_key", key, "error", err)
		}
		return e.awaitTransfer(ctx, ev, key, res.ProviderRef)
	}
}

// awaitTransfer polls a pending transfer to a terminal status. A poll
// timeout leaves the entry pending; a webhook or the next cycle resolves it.
func (e *Engine) awaitTransfer(ctx context.Context, ev domain.RawEvent, key, providerRef string) opOutcome {
	status, err := e.gateway.PollStatus(ctx, providerRef, e.cfg.StatusPollAttempts, e.cfg.StatusPollInterval)
	if err != nil {
		if errors.Is(err, custody.ErrStatusPollTimeout) {
			e.log.Warn("transfer still pending after poll budget", "op_key", key, "ref", providerRef)
		} else {
			e.log.Warn("transfer status poll failed", "op_key", key, "error", err)
		}
		return opUnresolved
	}

	switch status {
	case custody.TransferSuccess:
		if err := e.idem.Resolve(ctx, key, domain.OpStatusSuccess, providerRef); err != nil {
			e.log.Warn("record success entry failed", "op_key", key, "error", err)
			return opUnresolved
		}
		return opDone
	case custody.TransferFailed:
		if err := e.idem.Resolve(ctx, key, domain.OpStatusFailed, providerRef); err != nil {
			e.log.Warn("record failed entry failed", "op_key", key, "error", err)
			return opUnresolved
		}
		e.escalate(ctx, ev, key, "transfer_failed", "provider reported failure during polling")
		return opFailedTerminal
	default:
		return opUnresolved
	}
}

// gateLiquidity fails a movement fast when the wallet cannot cover it.
func (e *Engine) gateLiquidity(
	ctx context.Context,
	ev domain.RawEvent,
	key, to string,
	amount decimal.Decimal,
	asset string,
) opOutcome {
	est, err := e.gateway.EstimateFee(ctx, custody.FeeRequest{To: to, Amount: amount, Asset: asset})
	if err != nil {
		e.log.Warn("fee estimation failed", "op_key", key, "error", err)
		return opUnresolved
	}

	required := est.Fee
	if asset == domain.AssetNative {
		required = required.Add(amount)
	}
	ok := est.SufficientBalance
	if ok && e.liquidity != nil {
		ok, err = e.liquidity.CheckSufficientBalance(ctx, domain.AssetNative, required)
		if err != nil {
			e.log.Warn("liquidity check failed", "op_key", key, "error", err)
			return opUnresolved
		}
	}
	if !ok {
		e.escalate(ctx, ev, key, "insufficient_liquidity",
			fmt.Sprintf("%v: need %s native", domain.ErrInsufficientLiquidity, required))
		return opUnresolved
	}
	return opDone
}

func recStatus(rec *domain.CustodyRecord) string {
	if rec == nil {
		return "absent"
	}
	return string(rec.Status)
}
