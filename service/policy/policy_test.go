package policy

import (
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/tipgate/service/solana"
)

var (
	tipAccount   = solanago.NewWallet().PublicKey()
	tipAccount2  = solanago.NewWallet().PublicKey()
	otherAccount = solanago.NewWallet().PublicKey()
	sender       = solanago.NewWallet().PublicKey()
)

func testConfig(minTip uint64) Config {
	return NewConfig([]solanago.PublicKey{tipAccount, tipAccount2}, minTip)
}

func transfer(to solanago.PublicKey, lamports uint64) solana.Instruction {
	return solana.Instruction{
		Kind:        solana.KindTransfer,
		ProgramID:   solana.SystemProgramID,
		Source:      sender,
		Destination: to,
		Lamports:    lamports,
	}
}

func TestValidateInstructions_Accepted(t *testing.T) {
	result := ValidateInstructions([]solana.Instruction{
		{Kind: solana.KindComputeBudget},
		transfer(tipAccount, 5000),
	}, testConfig(1000))

	assert.Equal(t, Accepted, result.Verdict)
	assert.Equal(t, tipAccount, result.TipAccount)
	assert.Equal(t, uint64(5000), result.TipAmount)
	assert.Empty(t, result.Reason())
}

func TestValidateInstructions_ExactMinimumAccepted(t *testing.T) {
	result := ValidateInstructions([]solana.Instruction{
		transfer(tipAccount, 1000),
	}, testConfig(1000))

	assert.Equal(t, Accepted, result.Verdict)
	assert.Equal(t, uint64(1000), result.TipAmount)
}

func TestValidateInstructions_NoTip(t *testing.T) {
	result := ValidateInstructions([]solana.Instruction{
		{Kind: solana.KindMemo, Memo: "no tip here"},
		transfer(otherAccount, 100000),
	}, testConfig(1000))

	assert.Equal(t, RejectedNoTip, result.Verdict)
	assert.Equal(t, "no tip instruction found in transaction", result.Reason())
}

func TestValidateInstructions_TipTooLow(t *testing.T) {
	result := ValidateInstructions([]solana.Instruction{
		transfer(tipAccount, 999),
	}, testConfig(1000))

	assert.Equal(t, RejectedTipTooLow, result.Verdict)
	assert.Equal(t, uint64(999), result.TipAmount)
	assert.Equal(t, uint64(1000), result.Required)
	// The rejection reason reports both the requirement and what was found
	assert.Contains(t, result.Reason(), "required 1000")
	assert.Contains(t, result.Reason(), "found 999")
}

func TestValidateInstructions_FirstMatchGoverns(t *testing.T) {
	// The first transfer to a tip account decides the outcome even when a
	// later instruction carries a qualifying tip.
	result := ValidateInstructions([]solana.Instruction{
		transfer(tipAccount, 10),
		transfer(tipAccount2, 1_000_000),
	}, testConfig(1000))

	assert.Equal(t, RejectedTipTooLow, result.Verdict)
	assert.Equal(t, tipAccount, result.TipAccount)
	assert.Equal(t, uint64(10), result.TipAmount)
}

func TestValidateInstructions_SkipsNonTipTransfers(t *testing.T) {
	// Transfers to non-tip destinations are ignored, not matched
	result := ValidateInstructions([]solana.Instruction{
		transfer(otherAccount, 1),
		transfer(tipAccount2, 2000),
	}, testConfig(1000))

	assert.Equal(t, Accepted, result.Verdict)
	assert.Equal(t, tipAccount2, result.TipAccount)
	assert.Equal(t, uint64(2000), result.TipAmount)
}

func TestValidateInstructions_Empty(t *testing.T) {
	result := ValidateInstructions(nil, testConfig(1000))
	assert.Equal(t, RejectedNoTip, result.Verdict)
}

func TestValidate_FullTransaction(t *testing.T) {
	tx := &solanago.Transaction{
		Message: solanago.Message{
			AccountKeys: []solanago.PublicKey{sender, tipAccount, solana.SystemProgramID},
			Instructions: []solanago.CompiledInstruction{
				{
					ProgramIDIndex: 2,
					Accounts:       []uint16{0, 1},
					Data: []byte{
						2, 0, 0, 0, // transfer discriminant, u32 LE
						0x88, 0x13, 0, 0, 0, 0, 0, 0, // 5000 lamports, u64 LE
					},
				},
			},
		},
	}

	result, err := Validate(tx, testConfig(1000))
	require.NoError(t, err)
	assert.Equal(t, Accepted, result.Verdict)
	assert.Equal(t, uint64(5000), result.TipAmount)
}

func TestIsTipAccount(t *testing.T) {
	cfg := testConfig(1000)
	assert.True(t, cfg.IsTipAccount(tipAccount))
	assert.True(t, cfg.IsTipAccount(tipAccount2))
	assert.False(t, cfg.IsTipAccount(otherAccount))
	assert.Equal(t, uint64(1000), cfg.MinTipLamports())
}
