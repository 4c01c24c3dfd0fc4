// Package policy validates decoded transactions against the gateway's tip
// policy: every relayed transaction must carry a System Program transfer of
// at least the configured minimum to one of the configured tip accounts.
package policy

import (
	"fmt"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/brojonat/tipgate/service/solana"
)

// Config is the tip policy, constructed once at startup and never mutated.
// Reads require no synchronization.
type Config struct {
	tipAccounts    map[solanago.PublicKey]struct{}
	minTipLamports uint64
}

// NewConfig builds a policy config from the configured tip accounts and
// minimum tip amount in lamports.
func NewConfig(tipAccounts []solanago.PublicKey, minTipLamports uint64) Config {
	set := make(map[solanago.PublicKey]struct{}, len(tipAccounts))
	for _, a := range tipAccounts {
		set[a] = struct{}{}
	}
	return Config{
		tipAccounts:    set,
		minTipLamports: minTipLamports,
	}
}

// MinTipLamports returns the configured minimum tip.
func (c Config) MinTipLamports() uint64 {
	return c.minTipLamports
}

// IsTipAccount reports whether the given account is a configured beneficiary.
func (c Config) IsTipAccount(account solanago.PublicKey) bool {
	_, ok := c.tipAccounts[account]
	return ok
}

// Verdict is the outcome kind of a policy check.
type Verdict int

const (
	// Accepted means a qualifying tip transfer was found.
	Accepted Verdict = iota
	// RejectedNoTip means no instruction transfers to a tip account.
	RejectedNoTip
	// RejectedTipTooLow means the first tip transfer found is below the minimum.
	RejectedTipTooLow
)

// Result carries the verdict plus the tip details that produced it.
type Result struct {
	Verdict    Verdict
	TipAccount solanago.PublicKey // destination of the matched transfer, zero if none
	TipAmount  uint64             // lamports found, 0 if no tip instruction
	Required   uint64             // configured minimum, set on RejectedTipTooLow
}

// Reason returns a human-readable rejection reason, empty when accepted.
func (r Result) Reason() string {
	switch r.Verdict {
	case RejectedNoTip:
		return "no tip instruction found in transaction"
	case RejectedTipTooLow:
		return fmt.Sprintf("tip amount too low: required %d lamports, found %d", r.Required, r.TipAmount)
	default:
		return ""
	}
}

// Validate scans the transaction's instructions in order for a System Program
// transfer whose destination is a configured tip account. The first such
// transfer decides the outcome: if its amount meets the minimum the
// transaction is accepted, otherwise it is rejected immediately without
// considering later instructions. Pure function, no I/O.
func Validate(tx *solanago.Transaction, cfg Config) (Result, error) {
	instructions, err := solana.ClassifyAll(tx)
	if err != nil {
		return Result{}, err
	}
	return ValidateInstructions(instructions, cfg), nil
}

// ValidateInstructions applies the tip policy to pre-classified instructions.
func ValidateInstructions(instructions []solana.Instruction, cfg Config) Result {
	for _, ix := range instructions {
		if ix.Kind != solana.KindTransfer {
			continue
		}
		if !cfg.IsTipAccount(ix.Destination) {
			continue
		}

		// First matching transfer governs.
		if ix.Lamports < cfg.minTipLamports {
			return Result{
				Verdict:    RejectedTipTooLow,
				TipAccount: ix.Destination,
				TipAmount:  ix.Lamports,
				Required:   cfg.minTipLamports,
			}
		}
		return Result{
			Verdict:    Accepted,
			TipAccount: ix.Destination,
			TipAmount:  ix.Lamports,
		}
	}

	return Result{Verdict: RejectedNoTip}
}
