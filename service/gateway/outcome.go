package gateway

import (
	"github.com/brojonat/tipgate/service/ledger"
	"github.com/brojonat/tipgate/service/policy"
)

// OutcomeKind is the closed set of results a submission can produce.
type OutcomeKind int

const (
	// OutcomeAccepted means the transaction passed policy and was submitted
	// upstream; Record and Signature are set.
	OutcomeAccepted OutcomeKind = iota
	// OutcomeRateLimited means the admission window denied the request.
	OutcomeRateLimited
	// OutcomeDecodeFailed means the payload could not be decoded.
	OutcomeDecodeFailed
	// OutcomePolicyRejected means the tip policy refused the transaction.
	OutcomePolicyRejected
	// OutcomeRelayFailed means all submission attempts failed.
	OutcomeRelayFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeDecodeFailed:
		return "decode_failed"
	case OutcomePolicyRejected:
		return "policy_rejected"
	case OutcomeRelayFailed:
		return "relay_failed"
	default:
		return "unknown"
	}
}

// Outcome is the structured result of HandleSubmit. Every rejection carries a
// machine-readable reason so clients can distinguish policy rejection from
// transport failure.
type Outcome struct {
	Kind OutcomeKind

	// Record and Signature are set when Kind == OutcomeAccepted.
	Record    ledger.Record
	Signature string

	// Reason is a human-readable explanation for non-accepted outcomes.
	Reason string

	// Policy carries the validator result when Kind == OutcomePolicyRejected.
	Policy policy.Result

	// Err is the underlying error for decode and relay failures.
	Err error
}
