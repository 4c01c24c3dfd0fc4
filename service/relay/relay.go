// Package relay submits accepted transactions to one of several upstream
// Solana RPC endpoints and polls them for confirmation status.
//
// Submit is a single idempotent attempt against one endpoint; retry budgets
// and backoff live at the orchestration layer so that retry policy stays
// explicit at the composition point rather than baked into the primitive.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/brojonat/tipgate/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	SendRawTransaction(ctx context.Context, rawTx []byte) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL.
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) SendRawTransaction(ctx context.Context, rawTx []byte) (solana.Signature, error) {
	return r.client.SendRawTransactionWithOpts(ctx, rawTx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

func (r *realRPCClient) GetSignatureStatuses(
	ctx context.Context,
	searchTransactionHistory bool,
	signatures ...solana.Signature,
) (*rpc.GetSignatureStatusesResult, error) {
	return r.client.GetSignatureStatuses(ctx, searchTransactionHistory, signatures...)
}

// Endpoint pairs an upstream URL with its RPC client.
type Endpoint struct {
	URL    string
	Client RPCClient
}

// NewEndpoint builds an endpoint backed by a real RPC client.
func NewEndpoint(url string) Endpoint {
	return Endpoint{URL: url, Client: NewRPCClient(url)}
}

// Status is the confirmation state reported for a submitted transaction.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Relay submits transactions to upstream endpoints selected by the injected
// picker. If metrics is nil, no metrics are recorded.
type Relay struct {
	endpoints []Endpoint
	pick      Picker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a relay over the given endpoints. Panics if endpoints is empty;
// the config layer guarantees at least one.
func New(endpoints []Endpoint, pick Picker, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if len(endpoints) == 0 {
		panic("relay: no endpoints configured")
	}
	if pick == nil {
		pick = RandomPicker()
	}
	return &Relay{
		endpoints: endpoints,
		pick:      pick,
		metrics:   m,
		logger:    logger,
	}
}

// Endpoints returns the configured endpoint set.
func (r *Relay) Endpoints() []Endpoint {
	return r.endpoints
}

// PickEndpoint selects one endpoint using the injected strategy.
func (r *Relay) PickEndpoint() Endpoint {
	return r.endpoints[r.pick(len(r.endpoints))]
}

// Submit makes a single submission attempt against the given endpoint.
// Errors are classified as *TransportError (retryable elsewhere) or
// *RejectedError (upstream refused; not retryable with this payload).
func (r *Relay) Submit(ctx context.Context, rawTx []byte, ep Endpoint) (solana.Signature, error) {
	start := time.Now()
	sig, err := ep.Client.SendRawTransaction(ctx, rawTx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordRPCCall("SendRawTransaction", status, ep.URL, duration)
	}

	if err != nil {
		classified := classifyError(ep.URL, err)
		r.logger.WarnContext(ctx, "transaction submission failed",
			"endpoint", ep.URL,
			"retryable", IsRetryable(classified),
			"error", err,
		)
		return solana.Signature{}, classified
	}

	r.logger.InfoContext(ctx, "transaction submitted",
		"endpoint", ep.URL,
		"signature", sig.String(),
	)
	return sig, nil
}

// PollStatus queries the confirmation status of a signature once.
// StatusPending is a valid answer for a single poll; the caller decides
// whether and how long to keep polling.
func (r *Relay) PollStatus(ctx context.Context, sig solana.Signature, ep Endpoint) (Status, error) {
	start := time.Now()
	result, err := ep.Client.GetSignatureStatuses(ctx, true, sig)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordRPCCall("GetSignatureStatuses", status, ep.URL, duration)
	}

	if err != nil {
		return StatusPending, classifyError(ep.URL, err)
	}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		// Signature not yet known to this node.
		return StatusPending, nil
	}

	st := result.Value[0]
	if st.Err != nil {
		return StatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return StatusConfirmed, nil
	default:
		return StatusPending, nil
	}
}

// AwaitConfirmation polls the endpoint at the given interval until the
// transaction leaves StatusPending or the context is done. A context
// deadline expiring while still pending returns StatusPending with nil
// error: partial confirmation is an acceptable terminal answer.
func (r *Relay) AwaitConfirmation(ctx context.Context, sig solana.Signature, ep Endpoint, interval time.Duration) (Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := r.PollStatus(ctx, sig, ep)
		if err != nil {
			// Transport faults during polling are not fatal to the
			// submission; keep polling until the deadline.
			r.logger.DebugContext(ctx, "confirmation poll failed",
				"signature", sig.String(),
				"endpoint", ep.URL,
				"error", err,
			)
		} else if st != StatusPending {
			return st, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return StatusPending, nil
			}
			return StatusPending, fmt.Errorf("confirmation aborted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
