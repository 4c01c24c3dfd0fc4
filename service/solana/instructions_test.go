package solana

import (
	"encoding/binary"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transferData builds System Program transfer instruction data.
func transferData(lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], SystemProgramTransferInstruction)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return data
}

func TestClassify_SystemTransfer(t *testing.T) {
	from := solanago.NewWallet().PublicKey()
	to := solanago.NewWallet().PublicKey()
	keys := []solanago.PublicKey{from, to, SystemProgramID}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 2,
		Accounts:       []uint16{0, 1},
		Data:           transferData(7500),
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)

	assert.Equal(t, KindTransfer, classified.Kind)
	assert.Equal(t, from, classified.Source)
	assert.Equal(t, to, classified.Destination)
	assert.Equal(t, uint64(7500), classified.Lamports)
}

func TestClassify_SystemNonTransfer(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), SystemProgramID}

	// Discriminant 0 is CreateAccount, not Transfer
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 0)

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Accounts:       []uint16{0},
		Data:           data,
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, classified.Kind)
	assert.Equal(t, SystemProgramID, classified.ProgramID)
}

func TestClassify_SystemShortData(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), SystemProgramID}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Accounts:       []uint16{0},
		Data:           []byte{2, 0, 0}, // too short to be a transfer
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, classified.Kind)
}

func TestClassify_TransferMissingAccounts(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), SystemProgramID}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Accounts:       []uint16{0}, // transfer needs [from, to]
		Data:           transferData(100),
	}

	_, err := Classify(ix, keys)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClassify_Memo(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), MemoProgramIDSPL}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Data:           []byte("order-12345"),
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)
	assert.Equal(t, KindMemo, classified.Kind)
	assert.Equal(t, "order-12345", classified.Memo)
}

func TestClassify_LegacyMemo(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), MemoProgramIDLegacy}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Data:           []byte("legacy memo"),
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)
	assert.Equal(t, KindMemo, classified.Kind)
	assert.Equal(t, "legacy memo", classified.Memo)
}

func TestClassify_ComputeBudget(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), ComputeBudgetProgramID}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Data:           []byte{3, 0, 0, 0, 0},
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)
	assert.Equal(t, KindComputeBudget, classified.Kind)
}

func TestClassify_UnknownProgram(t *testing.T) {
	program := solanago.NewWallet().PublicKey()
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey(), program}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 1,
		Data:           []byte{1, 2, 3},
	}

	classified, err := Classify(ix, keys)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, classified.Kind)
	assert.Equal(t, program, classified.ProgramID)
	assert.Equal(t, []byte{1, 2, 3}, []byte(classified.Data))
}

func TestClassify_ProgramIndexOutOfRange(t *testing.T) {
	keys := []solanago.PublicKey{solanago.NewWallet().PublicKey()}

	ix := solanago.CompiledInstruction{
		ProgramIDIndex: 9,
	}

	_, err := Classify(ix, keys)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClassifyAll_PreservesOrder(t *testing.T) {
	from := solanago.NewWallet().PublicKey()
	to := solanago.NewWallet().PublicKey()
	keys := []solanago.PublicKey{from, to, SystemProgramID, ComputeBudgetProgramID, MemoProgramIDSPL}

	tx := &solanago.Transaction{
		Message: solanago.Message{
			AccountKeys: keys,
			Instructions: []solanago.CompiledInstruction{
				{ProgramIDIndex: 3, Data: []byte{2}},
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: transferData(1000)},
				{ProgramIDIndex: 4, Data: []byte("hello")},
			},
		},
	}

	instructions, err := ClassifyAll(tx)
	require.NoError(t, err)
	require.Len(t, instructions, 3)

	assert.Equal(t, KindComputeBudget, instructions[0].Kind)
	assert.Equal(t, KindTransfer, instructions[1].Kind)
	assert.Equal(t, KindMemo, instructions[2].Kind)
}

func TestFirstMemo(t *testing.T) {
	instructions := []Instruction{
		{Kind: KindComputeBudget},
		{Kind: KindMemo, Memo: "first"},
		{Kind: KindMemo, Memo: "second"},
	}

	memo, ok := FirstMemo(instructions)
	assert.True(t, ok)
	assert.Equal(t, "first", memo)

	memo, ok = FirstMemo([]Instruction{{Kind: KindTransfer}})
	assert.False(t, ok)
	assert.Empty(t, memo)
}
