package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brojonat/tipgate/service/gateway"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
)

// Application-specific JSON-RPC error codes. Codes in the -32601..-32700
// range are produced by the jrpc2 framework itself.
const (
	codeRelayFailed jrpc2.Code = -32000
	codeMissingTip  jrpc2.Code = -32001
	codeRateLimited jrpc2.Code = -32098
)

// sendTransactionOpts is the optional second positional parameter of
// sendTransaction. Only base64 encoding is supported.
type sendTransactionOpts struct {
	Encoding string `json:"encoding"`
}

// newRPCBridge builds the HTTP handler for the JSON-RPC submission surface.
// Unknown methods and malformed envelopes are answered by jrpc2 with the
// standard protocol errors.
func newRPCBridge(gw *gateway.Gateway, logger *slog.Logger) http.Handler {
	mux := handler.Map{
		"sendTransaction": newSendTransactionHandler(gw, logger),
	}
	return jhttp.NewBridge(mux, nil)
}

// newSendTransactionHandler accepts the Solana-style positional params
// shape ["<base64 tx>", {"encoding": "base64"}] and runs the submission
// pipeline. The result on success is the transaction signature.
func newSendTransactionHandler(gw *gateway.Gateway, logger *slog.Logger) jrpc2.Handler {
	return func(ctx context.Context, req *jrpc2.Request) (any, error) {
		var params []json.RawMessage
		if err := req.UnmarshalParams(&params); err != nil {
			return nil, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: "params must be a positional array",
			}
		}
		if len(params) == 0 {
			return nil, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: "missing transaction parameter",
			}
		}

		var txBase64 string
		if err := json.Unmarshal(params[0], &txBase64); err != nil {
			return nil, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: "transaction parameter must be a string",
			}
		}

		if len(params) > 1 {
			var opts sendTransactionOpts
			if err := json.Unmarshal(params[1], &opts); err != nil {
				return nil, &jrpc2.Error{
					Code:    jrpc2.InvalidParams,
					Message: "options parameter must be an object",
				}
			}
			if opts.Encoding != "" && opts.Encoding != "base64" {
				return nil, &jrpc2.Error{
					Code:    jrpc2.InvalidParams,
					Message: "unsupported encoding: " + opts.Encoding,
				}
			}
		}

		outcome := gw.HandleSubmit(ctx, txBase64)
		switch outcome.Kind {
		case gateway.OutcomeAccepted:
			return outcome.Signature, nil
		case gateway.OutcomeRateLimited:
			return nil, &jrpc2.Error{Code: codeRateLimited, Message: outcome.Reason}
		case gateway.OutcomeDecodeFailed:
			return nil, &jrpc2.Error{Code: jrpc2.InvalidParams, Message: outcome.Reason}
		case gateway.OutcomePolicyRejected:
			return nil, &jrpc2.Error{Code: codeMissingTip, Message: outcome.Reason}
		case gateway.OutcomeRelayFailed:
			return nil, &jrpc2.Error{Code: codeRelayFailed, Message: outcome.Reason}
		default:
			logger.Error("unhandled submission outcome", "kind", outcome.Kind)
			return nil, &jrpc2.Error{Code: jrpc2.InternalError, Message: "internal error"}
		}
	}
}
