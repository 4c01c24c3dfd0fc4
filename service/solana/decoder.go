package solana

import (
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrBadEncoding indicates the base64 framing layer could not be decoded.
	ErrBadEncoding = errors.New("invalid transaction encoding")

	// ErrMalformed indicates the binary transaction format is self-inconsistent:
	// truncated data, out-of-range account indices, or an unparseable header.
	ErrMalformed = errors.New("malformed transaction")
)

// DecodeBase64 decodes a base64-encoded wire transaction into a structured
// transaction. Base64 failures map to ErrBadEncoding, binary failures to
// ErrMalformed.
func DecodeBase64(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return Decode(raw)
}

// Decode parses raw transaction bytes into a structured transaction.
// Deterministic and side-effect free: the same bytes always produce the same
// structure or the same error. Never panics on arbitrary input.
func Decode(raw []byte) (tx *solana.Transaction, err error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty transaction", ErrMalformed)
	}

	// The binary decoder operates on untrusted bytes; convert any decoder
	// panic into a malformed-transaction error.
	defer func() {
		if r := recover(); r != nil {
			tx = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	tx, err = solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := validateAccountIndices(tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// validateAccountIndices rejects transactions whose instructions reference
// indices outside the account-key table.
func validateAccountIndices(tx *solana.Transaction) error {
	numKeys := len(tx.Message.AccountKeys)
	for i, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= numKeys {
			return fmt.Errorf("%w: instruction %d program index %d out of range (%d keys)",
				ErrMalformed, i, ix.ProgramIDIndex, numKeys)
		}
		for _, acct := range ix.Accounts {
			if int(acct) >= numKeys {
				return fmt.Errorf("%w: instruction %d account index %d out of range (%d keys)",
					ErrMalformed, i, acct, numKeys)
			}
		}
	}
	return nil
}
