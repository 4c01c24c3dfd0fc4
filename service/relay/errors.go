package relay

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// TransportError indicates the submission never reached (or never got an
// answer from) the upstream endpoint: connection failure, timeout, or a
// server-side fault. Retryable against a different endpoint.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay transport error (endpoint %s): %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError indicates the upstream explicitly refused the transaction
// (duplicate, expired blockhash, simulation failure). Not retryable without
// rebuilding the transaction.
type RejectedError struct {
	Endpoint string
	Err      error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected by upstream (endpoint %s): %v", e.Endpoint, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// classifyError wraps an RPC submission error as either a rejection or a
// transport failure. An error carrying a JSON-RPC error object means the
// upstream answered and refused; anything else is a transport fault.
func classifyError(endpoint string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return &RejectedError{Endpoint: endpoint, Err: err}
	}
	return &TransportError{Endpoint: endpoint, Err: err}
}

// IsRetryable reports whether a submission error may succeed against a
// different endpoint.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
