package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	// ComputeBudgetProgramID sets compute unit limits and priority fees
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// InstructionKind is the closed set of instruction classifications the
// gateway cares about. Anything not recognized is KindUnknown and carries
// the raw program ID and data.
type InstructionKind int

const (
	KindUnknown InstructionKind = iota
	KindTransfer
	KindComputeBudget
	KindMemo
)

func (k InstructionKind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindComputeBudget:
		return "compute-budget"
	case KindMemo:
		return "memo"
	default:
		return "unknown"
	}
}

// Instruction is a classified view of a compiled instruction with account
// indices resolved against the transaction's account-key table.
type Instruction struct {
	Kind      InstructionKind
	ProgramID solana.PublicKey

	// Transfer fields, valid only when Kind == KindTransfer
	Source      solana.PublicKey
	Destination solana.PublicKey
	Lamports    uint64

	// Memo text, valid only when Kind == KindMemo
	Memo string

	// Raw instruction data, always set
	Data []byte
}

// classifier maps a program ID to its instruction decoder.
type classifier func(ix solana.CompiledInstruction, keys []solana.PublicKey, out *Instruction) error

var classifiers = map[solana.PublicKey]classifier{
	SystemProgramID:        classifySystem,
	ComputeBudgetProgramID: classifyComputeBudget,
	MemoProgramIDSPL:       classifyMemo,
	MemoProgramIDLegacy:    classifyMemo,
}

// Classify resolves a compiled instruction into a tagged Instruction.
// The caller must have validated account indices first (Decode does this);
// out-of-range indices surface as errors here as well.
func Classify(ix solana.CompiledInstruction, keys []solana.PublicKey) (Instruction, error) {
	if int(ix.ProgramIDIndex) >= len(keys) {
		return Instruction{}, fmt.Errorf("%w: program index %d out of range", ErrMalformed, ix.ProgramIDIndex)
	}
	programID := keys[ix.ProgramIDIndex]

	out := Instruction{
		Kind:      KindUnknown,
		ProgramID: programID,
		Data:      ix.Data,
	}

	fn, ok := classifiers[programID]
	if !ok {
		return out, nil
	}
	if err := fn(ix, keys, &out); err != nil {
		return Instruction{}, err
	}
	return out, nil
}

// classifySystem decodes System Program instructions. Only Transfer is
// recognized; other system instructions stay KindUnknown.
//
// System Transfer instruction format:
// [0..4]  = instruction type (u32 LE, 2 = Transfer)
// [4..12] = lamports (u64 LE)
// accounts: [from, to]
func classifySystem(ix solana.CompiledInstruction, keys []solana.PublicKey, out *Instruction) error {
	if len(ix.Data) < 12 {
		return nil
	}
	if binary.LittleEndian.Uint32(ix.Data[0:4]) != SystemProgramTransferInstruction {
		return nil
	}
	if len(ix.Accounts) < 2 {
		return fmt.Errorf("%w: system transfer missing accounts", ErrMalformed)
	}
	srcIdx, dstIdx := ix.Accounts[0], ix.Accounts[1]
	if int(srcIdx) >= len(keys) || int(dstIdx) >= len(keys) {
		return fmt.Errorf("%w: system transfer account index out of range", ErrMalformed)
	}

	out.Kind = KindTransfer
	out.Source = keys[srcIdx]
	out.Destination = keys[dstIdx]
	out.Lamports = binary.LittleEndian.Uint64(ix.Data[4:12])
	return nil
}

func classifyComputeBudget(_ solana.CompiledInstruction, _ []solana.PublicKey, out *Instruction) error {
	out.Kind = KindComputeBudget
	return nil
}

func classifyMemo(ix solana.CompiledInstruction, _ []solana.PublicKey, out *Instruction) error {
	out.Kind = KindMemo
	out.Memo = string(ix.Data)
	return nil
}

// ClassifyAll classifies every instruction in a decoded transaction, in order.
func ClassifyAll(tx *solana.Transaction) ([]Instruction, error) {
	out := make([]Instruction, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		classified, err := Classify(ix, tx.Message.AccountKeys)
		if err != nil {
			return nil, err
		}
		out = append(out, classified)
	}
	return out, nil
}

// FirstMemo returns the first memo instruction's text, if any.
func FirstMemo(instructions []Instruction) (string, bool) {
	for _, ix := range instructions {
		if ix.Kind == KindMemo {
			return ix.Memo, true
		}
	}
	return "", false
}
