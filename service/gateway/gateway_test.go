package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/tipgate/service/ledger"
	"github.com/brojonat/tipgate/service/limiter"
	"github.com/brojonat/tipgate/service/nats"
	"github.com/brojonat/tipgate/service/policy"
	"github.com/brojonat/tipgate/service/relay"
)

var (
	testTipAccount = solanago.NewWallet().PublicKey()
	testSender     = solanago.NewWallet().PublicKey()
)

// fakeRPCClient scripts the upstream RPC behavior per endpoint.
type fakeRPCClient struct {
	mu sync.Mutex

	sendSig     solanago.Signature
	sendErrs    []error // consumed one per call; nil entry means success
	sendCalls   int
	confirmed   bool
	statusCalls int
}

func (f *fakeRPCClient) SendRawTransaction(ctx context.Context, rawTx []byte) (solanago.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return solanago.Signature{}, err
		}
	}
	return f.sendSig, nil
}

func (f *fakeRPCClient) GetSignatureStatuses(
	ctx context.Context,
	searchTransactionHistory bool,
	signatures ...solanago.Signature,
) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if !f.confirmed {
		return &rpc.GetSignatureStatusesResult{}, nil
	}
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
	}, nil
}

// buildTipTx serializes a transaction paying lamports to the tip account
// and returns it base64-encoded.
func buildTipTx(t *testing.T, to solanago.PublicKey, lamports uint64) string {
	t.Helper()

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{
			system.NewTransferInstruction(lamports, testSender, to).Build(),
		},
		solanago.Hash{},
		solanago.TransactionPayer(testSender),
	)
	require.NoError(t, err)
	tx.Signatures = []solanago.Signature{{}}

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

type gatewayFixture struct {
	gw     *Gateway
	store  *ledger.Ledger
	events *nats.MockPublisher
	fakes  []*fakeRPCClient
}

func newFixture(t *testing.T, rateLimit int, fakes ...*fakeRPCClient) *gatewayFixture {
	t.Helper()

	if len(fakes) == 0 {
		sig := solanago.Signature{}
		sig[0] = 0x42
		fakes = []*fakeRPCClient{{sendSig: sig, confirmed: true}}
	}

	endpoints := make([]relay.Endpoint, len(fakes))
	for i, f := range fakes {
		endpoints[i] = relay.Endpoint{URL: "http://rpc-" + string(rune('a'+i)), Client: f}
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := ledger.New()
	events := nats.NewMockPublisher()

	gw := New(Params{
		Policy:              policy.NewConfig([]solanago.PublicKey{testTipAccount}, 1000),
		Limiter:             limiter.New(rateLimit, time.Second),
		Relay:               relay.New(endpoints, relay.RoundRobinPicker(), nil, logger),
		Ledger:              store,
		Events:              events,
		Logger:              logger,
		SubmitTimeout:       time.Second,
		ConfirmTimeout:      time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
		MaxAttempts:         3,
	})

	return &gatewayFixture{gw: gw, store: store, events: events, fakes: fakes}
}

func TestHandleSubmit_Accepted(t *testing.T) {
	fx := newFixture(t, 100)

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, testTipAccount, 5000))

	require.Equal(t, OutcomeAccepted, outcome.Kind, "reason: %s", outcome.Reason)
	assert.NotEmpty(t, outcome.Signature)
	assert.NotEmpty(t, outcome.Record.ID)
	assert.Equal(t, testSender.String(), outcome.Record.FromAddress)
	assert.Equal(t, testTipAccount.String(), outcome.Record.ToAddress)
	assert.Equal(t, uint64(5000), outcome.Record.Amount)

	// Confirmation runs in the background; wait for it to land
	fx.gw.Close()

	rec, ok := fx.store.Get(outcome.Record.ID)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusConfirmed, rec.Status)

	// Both the pending and the confirmed event were published
	events := fx.events.GetPublishedEvents()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "pending", events[0].Status)
	assert.Equal(t, "confirmed", events[len(events)-1].Status)
}

func TestHandleSubmit_NoTipRejected(t *testing.T) {
	fx := newFixture(t, 100)
	other := solanago.NewWallet().PublicKey()

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, other, 100000))

	assert.Equal(t, OutcomePolicyRejected, outcome.Kind)
	assert.Equal(t, policy.RejectedNoTip, outcome.Policy.Verdict)
	assert.Contains(t, outcome.Reason, "no tip instruction")

	// Rejected transactions never reach the ledger
	fx.gw.Close()
	assert.Equal(t, 0, fx.store.Len())
	assert.Zero(t, fx.fakes[0].sendCalls, "rejected transactions must not be relayed")
}

func TestHandleSubmit_TipTooLowRejected(t *testing.T) {
	fx := newFixture(t, 100)

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, testTipAccount, 999))

	assert.Equal(t, OutcomePolicyRejected, outcome.Kind)
	assert.Equal(t, policy.RejectedTipTooLow, outcome.Policy.Verdict)
	assert.Contains(t, outcome.Reason, "required 1000")
	assert.Contains(t, outcome.Reason, "found 999")
	assert.Equal(t, 0, fx.store.Len())
}

func TestHandleSubmit_DecodeFailures(t *testing.T) {
	fx := newFixture(t, 100)

	for _, payload := range []string{
		"not base64 at all!!!",
		base64.StdEncoding.EncodeToString([]byte("garbage bytes")),
		"",
	} {
		outcome := fx.gw.HandleSubmit(context.Background(), payload)
		assert.Equal(t, OutcomeDecodeFailed, outcome.Kind, "payload %q", payload)
		assert.NotEmpty(t, outcome.Reason)
	}
	assert.Equal(t, 0, fx.store.Len())
}

func TestHandleSubmit_RateLimited(t *testing.T) {
	fx := newFixture(t, 5)
	tx := buildTipTx(t, testTipAccount, 5000)

	for i := 0; i < 5; i++ {
		outcome := fx.gw.HandleSubmit(context.Background(), tx)
		require.Equal(t, OutcomeAccepted, outcome.Kind, "submission %d", i+1)
	}

	outcome := fx.gw.HandleSubmit(context.Background(), tx)
	assert.Equal(t, OutcomeRateLimited, outcome.Kind)
	assert.Contains(t, outcome.Reason, "rate limit exceeded")

	fx.gw.Close()
	assert.Equal(t, 5, fx.store.Len(), "denied submission leaves no record")
}

func TestHandleSubmit_FallbackToSecondEndpoint(t *testing.T) {
	sig := solanago.Signature{}
	sig[0] = 0x42
	failing := &fakeRPCClient{sendErrs: []error{errors.New("connection refused"), errors.New("connection refused"), errors.New("connection refused")}}
	healthy := &fakeRPCClient{sendSig: sig, confirmed: true}

	fx := newFixture(t, 100, failing, healthy)

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, testTipAccount, 5000))

	require.Equal(t, OutcomeAccepted, outcome.Kind, "reason: %s", outcome.Reason)
	assert.Equal(t, 1, failing.sendCalls)
	assert.Equal(t, 1, healthy.sendCalls)
	fx.gw.Close()
}

func TestHandleSubmit_AllEndpointsFail(t *testing.T) {
	failing := &fakeRPCClient{sendErrs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	fx := newFixture(t, 100, failing)

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, testTipAccount, 5000))

	assert.Equal(t, OutcomeRelayFailed, outcome.Kind)
	assert.Equal(t, 3, failing.sendCalls, "retries up to the attempt budget")
	assert.Equal(t, 0, fx.store.Len())
}

func TestHandleSubmit_UpstreamRejectionStopsRetries(t *testing.T) {
	rejecting := &fakeRPCClient{sendErrs: []error{
		&jsonrpc.RPCError{Code: -32002, Message: "Blockhash not found"},
	}}
	fx := newFixture(t, 100, rejecting)

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, testTipAccount, 5000))

	assert.Equal(t, OutcomeRelayFailed, outcome.Kind)
	assert.Equal(t, 1, rejecting.sendCalls, "an explicit refusal must not be resubmitted")
}

func TestHandleSubmit_PendingAfterConfirmWindow(t *testing.T) {
	sig := solanago.Signature{}
	sig[0] = 0x42
	neverConfirms := &fakeRPCClient{sendSig: sig, confirmed: false}
	fx := newFixture(t, 100, neverConfirms)

	outcome := fx.gw.HandleSubmit(context.Background(), buildTipTx(t, testTipAccount, 5000))
	require.Equal(t, OutcomeAccepted, outcome.Kind)

	fx.gw.Close()

	// Expired confirmation window is not a state transition
	rec, ok := fx.store.Get(outcome.Record.ID)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusPending, rec.Status)
}

func TestHandleSubmit_CanceledBeforeSubmission(t *testing.T) {
	fx := newFixture(t, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := fx.gw.HandleSubmit(ctx, buildTipTx(t, testTipAccount, 5000))
	assert.Equal(t, OutcomeRelayFailed, outcome.Kind)
	assert.Equal(t, 0, fx.fakes[0].sendCalls)
	assert.Equal(t, 0, fx.store.Len())
}

func TestListAndClearRecords(t *testing.T) {
	fx := newFixture(t, 100)
	tx := buildTipTx(t, testTipAccount, 5000)

	out1 := fx.gw.HandleSubmit(context.Background(), tx)
	out2 := fx.gw.HandleSubmit(context.Background(), tx)
	require.Equal(t, OutcomeAccepted, out1.Kind)
	require.Equal(t, OutcomeAccepted, out2.Kind)
	fx.gw.Close()

	records := fx.gw.ListRecords()
	assert.Len(t, records, 2)

	got, ok := fx.gw.GetRecord(out1.Record.ID)
	require.True(t, ok)
	assert.Equal(t, out1.Record.ID, got.ID)

	bySender := fx.gw.ListRecordsByAddress(testSender.String())
	assert.Len(t, bySender, 2)

	fx.gw.ClearRecords()
	assert.Empty(t, fx.gw.ListRecords())
}
