// Package gateway orchestrates the submission pipeline: admission control,
// decode, tip policy, relay with endpoint fallback, and the transaction
// ledger. The transport layer (HTTP/JSON-RPC framing) calls into this
// package and must not alter its semantics.
package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/tipgate/service/ledger"
	"github.com/brojonat/tipgate/service/limiter"
	"github.com/brojonat/tipgate/service/metrics"
	"github.com/brojonat/tipgate/service/nats"
	"github.com/brojonat/tipgate/service/policy"
	"github.com/brojonat/tipgate/service/relay"
	"github.com/brojonat/tipgate/service/solana"
)

// Params contains the dependencies and tuning for a Gateway.
// Events and Metrics are optional; nil disables them.
type Params struct {
	Policy  policy.Config
	Limiter *limiter.SlidingWindow
	Relay   *relay.Relay
	Ledger  *ledger.Ledger
	Events  nats.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	SubmitTimeout       time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	MaxAttempts         int
}

// Gateway is the core of the relay service. Safe for concurrent use: the
// limiter and ledger carry their own independent locks, so rate-limiting
// contention never blocks ledger reads and vice versa.
type Gateway struct {
	policy  policy.Config
	limiter *limiter.SlidingWindow
	relay   *relay.Relay
	ledger  *ledger.Ledger
	events  nats.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	submitTimeout       time.Duration
	confirmTimeout      time.Duration
	confirmPollInterval time.Duration
	maxAttempts         int

	confirmations sync.WaitGroup
}

// New creates a Gateway from the given params.
func New(p Params) *Gateway {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.SubmitTimeout <= 0 {
		p.SubmitTimeout = 10 * time.Second
	}
	if p.ConfirmTimeout <= 0 {
		p.ConfirmTimeout = 60 * time.Second
	}
	if p.ConfirmPollInterval <= 0 {
		p.ConfirmPollInterval = 2 * time.Second
	}
	return &Gateway{
		policy:              p.Policy,
		limiter:             p.Limiter,
		relay:               p.Relay,
		ledger:              p.Ledger,
		events:              p.Events,
		metrics:             p.Metrics,
		logger:              p.Logger,
		submitTimeout:       p.SubmitTimeout,
		confirmTimeout:      p.ConfirmTimeout,
		confirmPollInterval: p.ConfirmPollInterval,
		maxAttempts:         p.MaxAttempts,
	}
}

// HandleSubmit runs the full pipeline for one base64-encoded transaction:
// rate check, decode, policy check, relay with fallback, ledger insert.
// Confirmation polling continues in the background after return.
//
// Every path returns a structured Outcome; decode and policy failures are
// outcomes, not errors.
func (g *Gateway) HandleSubmit(ctx context.Context, txBase64 string) Outcome {
	// Admission control gates everything, including decode work.
	if !g.limiter.Allow() {
		if g.metrics != nil {
			g.metrics.RecordRateLimitDenied()
			g.metrics.RecordSubmission("rate_limited")
		}
		g.logger.DebugContext(ctx, "submission denied by rate limiter")
		return Outcome{
			Kind:   OutcomeRateLimited,
			Reason: fmt.Sprintf("rate limit exceeded: %d requests per second", g.limiter.Limit()),
		}
	}

	// Decode the base64 layer first so the raw bytes are kept for the relay.
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return g.decodeFailed(ctx, fmt.Errorf("%w: %v", solana.ErrBadEncoding, err))
	}

	tx, err := solana.Decode(raw)
	if err != nil {
		return g.decodeFailed(ctx, err)
	}

	instructions, err := solana.ClassifyAll(tx)
	if err != nil {
		return g.decodeFailed(ctx, err)
	}

	// Tip policy.
	result := policy.ValidateInstructions(instructions, g.policy)
	if result.Verdict != policy.Accepted {
		reason := "no_tip"
		if result.Verdict == policy.RejectedTipTooLow {
			reason = "tip_too_low"
		}
		if g.metrics != nil {
			g.metrics.RecordPolicyRejection(reason)
			g.metrics.RecordSubmission("policy_rejected")
		}
		g.logger.InfoContext(ctx, "transaction rejected by tip policy",
			"reason", result.Reason(),
		)
		return Outcome{
			Kind:   OutcomePolicyRejected,
			Reason: result.Reason(),
			Policy: result,
		}
	}

	// Relay with retry-by-reselection. Submission must run to completion
	// once started: a client disconnect between submission and the ledger
	// write would otherwise strand a record. The last safe cancellation
	// point is here.
	if ctx.Err() != nil {
		return Outcome{
			Kind:   OutcomeRelayFailed,
			Reason: "request canceled before submission",
			Err:    ctx.Err(),
		}
	}
	submitCtx := context.WithoutCancel(ctx)

	sig, ep, err := g.submitWithFallback(submitCtx, raw)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordSubmission("relay_failed")
		}
		g.logger.ErrorContext(ctx, "all relay attempts failed", "error", err)
		return Outcome{
			Kind:   OutcomeRelayFailed,
			Reason: err.Error(),
			Err:    err,
		}
	}

	memo, _ := solana.FirstMemo(instructions)
	rec := g.ledger.Insert(ledger.Record{
		FromAddress: feePayer(tx).String(),
		ToAddress:   result.TipAccount.String(),
		Amount:      result.TipAmount,
		Memo:        memo,
		Status:      ledger.StatusPending,
		Signature:   sig.String(),
		RawPayload:  raw,
	})

	if g.metrics != nil {
		g.metrics.RecordSubmission("accepted")
		g.metrics.SetLedgerRecords(g.ledger.Len())
	}
	g.logger.InfoContext(ctx, "transaction accepted and relayed",
		"record_id", rec.ID,
		"signature", rec.Signature,
		"tip_account", rec.ToAddress,
		"tip_lamports", rec.Amount,
	)

	g.publishEvent(submitCtx, rec)

	// Confirmation runs detached from the request so a disconnecting client
	// cannot leave the record stuck in pending.
	g.confirmations.Add(1)
	go g.awaitAndRecordConfirmation(rec.ID, sig, ep)

	return Outcome{
		Kind:      OutcomeAccepted,
		Record:    rec,
		Signature: rec.Signature,
	}
}

// decodeFailed records and returns a decode-stage rejection.
func (g *Gateway) decodeFailed(ctx context.Context, err error) Outcome {
	if g.metrics != nil {
		g.metrics.RecordSubmission("decode_failed")
	}
	g.logger.InfoContext(ctx, "transaction failed to decode", "error", err)
	return Outcome{
		Kind:   OutcomeDecodeFailed,
		Reason: err.Error(),
		Err:    err,
	}
}

// submitWithFallback attempts submission up to maxAttempts times, selecting
// an endpoint per attempt and backing off between attempts. An upstream
// rejection stops the loop immediately: resubmitting the same payload
// elsewhere cannot succeed.
func (g *Gateway) submitWithFallback(ctx context.Context, raw []byte) (solanago.Signature, relay.Endpoint, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	var lastErr error
	var lastEp relay.Endpoint
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			if g.metrics != nil {
				g.metrics.RecordRelayRetry(lastEp.URL)
			}
			select {
			case <-ctx.Done():
				return solanago.Signature{}, relay.Endpoint{}, fmt.Errorf("relay aborted: %w", ctx.Err())
			case <-time.After(bo.NextBackOff()):
			}
		}

		ep := g.relay.PickEndpoint()
		lastEp = ep

		attemptCtx, cancel := context.WithTimeout(ctx, g.submitTimeout)
		sig, err := g.relay.Submit(attemptCtx, raw, ep)
		cancel()

		if err == nil {
			return sig, ep, nil
		}
		lastErr = err
		if !relay.IsRetryable(err) {
			break
		}
	}
	return solanago.Signature{}, relay.Endpoint{}, lastErr
}

// awaitAndRecordConfirmation polls for the confirmation status and applies
// the single pending -> confirmed/failed transition. A poll window that
// expires while still pending leaves the record pending; a later submission
// of the same signature can still be looked up and resolved by clients.
func (g *Gateway) awaitAndRecordConfirmation(recordID string, sig solanago.Signature, ep relay.Endpoint) {
	defer g.confirmations.Done()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), g.confirmTimeout)
	defer cancel()

	status, err := g.relay.AwaitConfirmation(ctx, sig, ep, g.confirmPollInterval)
	if err != nil {
		g.logger.Error("confirmation polling aborted",
			"record_id", recordID,
			"signature", sig.String(),
			"error", err,
		)
		return
	}

	if status == relay.StatusPending {
		// Still pending after the full window; not a state transition.
		g.logger.Warn("transaction still pending after confirmation window",
			"record_id", recordID,
			"signature", sig.String(),
		)
		if g.metrics != nil {
			g.metrics.RecordConfirmation("pending", time.Since(start).Seconds())
		}
		return
	}

	newStatus := ledger.StatusConfirmed
	if status == relay.StatusFailed {
		newStatus = ledger.StatusFailed
	}

	if err := g.ledger.UpdateStatus(recordID, newStatus, sig.String()); err != nil {
		g.logger.Error("failed to update record status",
			"record_id", recordID,
			"status", newStatus,
			"error", err,
		)
		return
	}

	if g.metrics != nil {
		g.metrics.RecordConfirmation(string(newStatus), time.Since(start).Seconds())
	}
	g.logger.Info("transaction reached terminal status",
		"record_id", recordID,
		"signature", sig.String(),
		"status", newStatus,
	)

	if rec, ok := g.ledger.Get(recordID); ok {
		g.publishEvent(ctx, rec)
	}
}

// publishEvent publishes a relay event if an event publisher is configured.
func (g *Gateway) publishEvent(ctx context.Context, rec ledger.Record) {
	if g.events == nil {
		return
	}
	start := time.Now()
	err := g.events.PublishRelayEvent(ctx, nats.FromRecord(rec))
	if g.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		g.metrics.RecordNATSPublish("relay.txns."+string(rec.Status), status, time.Since(start).Seconds())
	}
	if err != nil {
		// Event delivery is best-effort; the record is already persisted.
		g.logger.Warn("failed to publish relay event",
			"record_id", rec.ID,
			"error", err,
		)
	}
}

// ListRecords returns all stored records, newest first.
func (g *Gateway) ListRecords() []ledger.Record {
	return g.ledger.ListAll()
}

// ListRecordsByAddress returns records whose sender or tip account matches
// the given address, newest first.
func (g *Gateway) ListRecordsByAddress(address string) []ledger.Record {
	return g.ledger.ListByAddress(address)
}

// GetRecord returns one record by id.
func (g *Gateway) GetRecord(id string) (ledger.Record, bool) {
	return g.ledger.Get(id)
}

// ClearRecords removes all stored records.
func (g *Gateway) ClearRecords() {
	g.ledger.Clear()
	if g.metrics != nil {
		g.metrics.SetLedgerRecords(0)
	}
}

// Close waits for in-flight confirmation polls to finish.
func (g *Gateway) Close() {
	g.confirmations.Wait()
}

// feePayer returns the transaction's fee payer: the first account key.
func feePayer(tx *solanago.Transaction) solanago.PublicKey {
	if len(tx.Message.AccountKeys) == 0 {
		return solanago.PublicKey{}
	}
	return tx.Message.AccountKeys[0]
}
