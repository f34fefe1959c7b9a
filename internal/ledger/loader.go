package ledger

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

var (
	// LoaderProgramID is the upgradeable loader that owns deployed programs
	// and their program-data records.
	LoaderProgramID = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

	// NativeLoaderID owns builtin program accounts.
	NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")
)

// Upgradeable loader account states.
const (
	loaderStateProgram     uint32 = 2
	loaderStateProgramData uint32 = 3
)

// Loader instruction tags.
const (
	LoaderSetAuthority uint32 = 4
)

// ProgramAccountLen is the size of a deployed program account.
const ProgramAccountLen = 4 + 32

// ProgramDataMetadataLen is the header size of a program-data account.
const ProgramDataMetadataLen = 4 + 8 + 1 + 32

// FindProgramDataAddress derives the program-data record of programID.
func FindProgramDataAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{programID[:]}, LoaderProgramID)
}

// ProgramData is the decoded header of a program-data account.
type ProgramData struct {
	Slot             uint64
	UpgradeAuthority *solana.PublicKey
}

// MarshalProgramData packs the program-data header.
func MarshalProgramData(pd ProgramData) []byte {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	_ = enc.WriteUint32(loaderStateProgramData, binary.LittleEndian)
	_ = enc.WriteUint64(pd.Slot, binary.LittleEndian)
	if pd.UpgradeAuthority != nil {
		_ = enc.WriteUint8(1)
		_ = enc.WriteBytes(pd.UpgradeAuthority[:], false)
	} else {
		_ = enc.WriteUint8(0)
		_ = enc.WriteBytes(make([]byte, 32), false)
	}
	return buf.Bytes()
}

// ParseProgramData decodes a program-data account.
func ParseProgramData(data []byte) (ProgramData, error) {
	if len(data) < ProgramDataMetadataLen {
		return ProgramData{}, errors.ErrAccountDataTooSmall.Withf("program data holds %d bytes", len(data))
	}
	dec := bin.NewBorshDecoder(data)
	state, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return ProgramData{}, errors.ErrInvalidAccountData.WithCause(err)
	}
	if state != loaderStateProgramData {
		return ProgramData{}, errors.ErrInvalidAccountData.Withf("loader state %d is not program data", state)
	}
	var pd ProgramData
	if pd.Slot, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return ProgramData{}, errors.ErrInvalidAccountData.WithCause(err)
	}
	tag, err := dec.ReadUint8()
	if err != nil {
		return ProgramData{}, errors.ErrInvalidAccountData.WithCause(err)
	}
	key, err := dec.ReadNBytes(32)
	if err != nil {
		return ProgramData{}, errors.ErrInvalidAccountData.WithCause(err)
	}
	if tag == 1 {
		auth := solana.PublicKeyFromBytes(key)
		pd.UpgradeAuthority = &auth
	}
	return pd, nil
}

func marshalProgramAccount(programData solana.PublicKey) []byte {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	_ = enc.WriteUint32(loaderStateProgram, binary.LittleEndian)
	_ = enc.WriteBytes(programData[:], false)
	return buf.Bytes()
}

// SetAuthority builds a loader instruction that changes or removes the
// upgrade authority of a program-data record.
func SetAuthority(programData, currentAuthority solana.PublicKey, newAuthority *solana.PublicKey) types.Instruction {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	_ = enc.WriteUint32(LoaderSetAuthority, binary.LittleEndian)
	metas := []types.AccountMeta{types.Writable(programData), types.ReadonlySigner(currentAuthority)}
	if newAuthority != nil {
		metas = append(metas, types.Readonly(*newAuthority))
	}
	return types.Instruction{ProgramID: LoaderProgramID, Accounts: metas, Data: buf.Bytes()}
}

// LoaderProgram is the builtin that manages program-data records. Only
// SetAuthority is supported; deployment happens through Bank.Deploy.
type LoaderProgram struct{}

// Process implements Program.
func (LoaderProgram) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return errors.ErrInvalidInstructionData.WithCause(err)
	}
	if tag != LoaderSetAuthority {
		return errors.ErrInvalidInstructionData.Withf("unsupported loader instruction %d", tag)
	}
	if len(accounts) < 2 {
		return errors.ErrNotEnoughAccountKeys
	}
	record, current := accounts[0], accounts[1]
	if !record.IsOwnedBy(LoaderProgramID) {
		return errors.ErrIncorrectProgramID.Withf("program data %s is not owned by the loader", record.Key)
	}
	pd, err := ParseProgramData(record.Data())
	if err != nil {
		return err
	}
	if pd.UpgradeAuthority == nil {
		ic.Logf("Program not upgradeable")
		return errors.ErrInvalidArgument.Withf("program is immutable")
	}
	if !pd.UpgradeAuthority.Equals(current.Key) {
		ic.Logf("Incorrect upgrade authority provided")
		return errors.ErrIncorrectAuthority
	}
	if !current.IsSigner {
		ic.Logf("Upgrade authority did not sign")
		return errors.ErrMissingRequiredSignature
	}
	if len(accounts) > 2 {
		next := accounts[2].Key
		pd.UpgradeAuthority = &next
	} else {
		pd.UpgradeAuthority = nil
	}
	header := MarshalProgramData(pd)
	return record.WriteData(func(dst []byte) error {
		copy(dst, header)
		return nil
	})
}
