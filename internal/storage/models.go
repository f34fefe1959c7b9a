package storage

import (
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// AccountModel is the latest committed snapshot of one ledger account.
type AccountModel struct {
	ID         string    `json:"id" bson:"_id,omitempty" db:"id"`
	Pubkey     string    `json:"pubkey" bson:"pubkey" db:"pubkey"`
	Lamports   uint64    `json:"lamports" bson:"lamports" db:"lamports"`
	Data       []byte    `json:"data" bson:"data" db:"data"`
	Owner      string    `json:"owner" bson:"owner" db:"owner"`
	Executable bool      `json:"executable" bson:"executable" db:"executable"`
	RentEpoch  uint64    `json:"rent_epoch" bson:"rent_epoch" db:"rent_epoch"`
	Slot       uint64    `json:"slot" bson:"slot" db:"slot"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// TransactionModel records one processed transaction, committed or failed.
type TransactionModel struct {
	ID                   string    `json:"id" bson:"_id,omitempty" db:"id"`
	Signature            string    `json:"signature" bson:"signature" db:"signature"`
	Slot                 uint64    `json:"slot" bson:"slot" db:"slot"`
	BlockTime            *int64    `json:"block_time,omitempty" bson:"block_time,omitempty" db:"block_time"`
	Fee                  uint64    `json:"fee" bson:"fee" db:"fee"`
	Success              bool      `json:"success" bson:"success" db:"success"`
	ErrorMessage         string    `json:"error_message,omitempty" bson:"error_message,omitempty" db:"error_message"`
	ErrorCode            *uint32   `json:"error_code,omitempty" bson:"error_code,omitempty" db:"error_code"`
	AccountKeys          []string  `json:"account_keys" bson:"account_keys" db:"account_keys"`
	NumInstructions      int       `json:"num_instructions" bson:"num_instructions" db:"num_instructions"`
	NumInnerInstructions int       `json:"num_inner_instructions" bson:"num_inner_instructions" db:"num_inner_instructions"`
	LogMessages          []string  `json:"log_messages,omitempty" bson:"log_messages,omitempty" db:"log_messages"`
	ComputeUnitsConsumed uint64    `json:"compute_units_consumed" bson:"compute_units_consumed" db:"compute_units_consumed"`
	ReturnData           []byte    `json:"return_data,omitempty" bson:"return_data,omitempty" db:"return_data"`
	CreatedAt            time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// InstructionModel records one top-level or inner instruction.
type InstructionModel struct {
	ID               string    `json:"id" bson:"_id,omitempty" db:"id"`
	Signature        string    `json:"signature" bson:"signature" db:"signature"`
	InstructionIndex int       `json:"instruction_index" bson:"instruction_index" db:"instruction_index"`
	ProgramID        string    `json:"program_id" bson:"program_id" db:"program_id"`
	Name             string    `json:"name,omitempty" bson:"name,omitempty" db:"name"`
	Data             []byte    `json:"data" bson:"data" db:"data"`
	Accounts         []string  `json:"accounts" bson:"accounts" db:"accounts"`
	IsInner          bool      `json:"is_inner" bson:"is_inner" db:"is_inner"`
	InnerIndex       *int      `json:"inner_index,omitempty" bson:"inner_index,omitempty" db:"inner_index"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// EventModel is a decoded program event.
type EventModel struct {
	ID        string                 `json:"id" bson:"_id,omitempty" db:"id"`
	Signature string                 `json:"signature" bson:"signature" db:"signature"`
	ProgramID string                 `json:"program_id" bson:"program_id" db:"program_id"`
	EventName string                 `json:"event_name" bson:"event_name" db:"event_name"`
	Data      map[string]interface{} `json:"data" bson:"data" db:"data"`
	Slot      uint64                 `json:"slot" bson:"slot" db:"slot"`
	BlockTime *int64                 `json:"block_time,omitempty" bson:"block_time,omitempty" db:"block_time"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at" db:"created_at"`
}

// TokenAccountModel is the decoded view of a committed token account.
type TokenAccountModel struct {
	ID              string    `json:"id" bson:"_id,omitempty" db:"id"`
	Address         string    `json:"address" bson:"address" db:"address"`
	Mint            string    `json:"mint" bson:"mint" db:"mint"`
	Owner           string    `json:"owner" bson:"owner" db:"owner"`
	Amount          uint64    `json:"amount" bson:"amount" db:"amount"`
	Delegate        *string   `json:"delegate,omitempty" bson:"delegate,omitempty" db:"delegate"`
	DelegatedAmount uint64    `json:"delegated_amount" bson:"delegated_amount" db:"delegated_amount"`
	IsNative        bool      `json:"is_native" bson:"is_native" db:"is_native"`
	CloseAuthority  *string   `json:"close_authority,omitempty" bson:"close_authority,omitempty" db:"close_authority"`
	Slot            uint64    `json:"slot" bson:"slot" db:"slot"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

func AccountToModel(pubkey solana.PublicKey, account *types.Account, slot uint64) *AccountModel {
	now := time.Now()
	return &AccountModel{
		ID:         pubkey.String(),
		Pubkey:     pubkey.String(),
		Lamports:   account.Lamports,
		Data:       account.Data,
		Owner:      account.Owner.String(),
		Executable: account.Executable,
		RentEpoch:  account.RentEpoch,
		Slot:       slot,
		UpdatedAt:  now,
		CreatedAt:  now,
	}
}

// TransactionToModel records meta under a fresh id. blockTime is the ledger
// clock at processing time.
func TransactionToModel(meta *types.TransactionStatusMeta, numInstructions int, blockTime int64) *TransactionModel {
	accountKeys := make([]string, 0, len(meta.AccountKeys))
	for _, key := range meta.AccountKeys {
		accountKeys = append(accountKeys, key.String())
	}

	numInner := 0
	for _, inner := range meta.InnerInstructions {
		numInner += len(inner.Instructions)
	}

	model := &TransactionModel{
		ID:                   uuid.NewString(),
		Signature:            meta.Signature.String(),
		Slot:                 meta.Slot,
		BlockTime:            &blockTime,
		Fee:                  meta.Fee,
		Success:              meta.IsSuccess(),
		AccountKeys:          accountKeys,
		NumInstructions:      numInstructions,
		NumInnerInstructions: numInner,
		LogMessages:          meta.LogMessages,
		ComputeUnitsConsumed: meta.ComputeUnitsConsumed,
		CreatedAt:            time.Now(),
	}
	if meta.Err != nil {
		model.ErrorMessage = errors.LogString(meta.Err)
		if code, ok := errors.CustomCode(meta.Err); ok {
			model.ErrorCode = &code
		}
	}
	if meta.ReturnData != nil {
		model.ReturnData = meta.ReturnData.Data
	}
	return model
}

// InstructionToModel records ix. innerIndex is nil for top-level instructions.
func InstructionToModel(signature string, index int, innerIndex *int, ix types.Instruction, name string) *InstructionModel {
	accounts := make([]string, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		accounts = append(accounts, meta.Pubkey.String())
	}
	return &InstructionModel{
		ID:               uuid.NewString(),
		Signature:        signature,
		InstructionIndex: index,
		ProgramID:        ix.ProgramID.String(),
		Name:             name,
		Data:             ix.Data,
		Accounts:         accounts,
		IsInner:          innerIndex != nil,
		InnerIndex:       innerIndex,
		CreatedAt:        time.Now(),
	}
}

// EventToModel flattens a decoded event body through its JSON form.
func EventToModel(signature string, programID solana.PublicKey, name string, body interface{}, slot uint64, blockTime int64) (*EventModel, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	data := make(map[string]interface{})
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &EventModel{
		ID:        uuid.NewString(),
		Signature: signature,
		ProgramID: programID.String(),
		EventName: name,
		Data:      data,
		Slot:      slot,
		BlockTime: &blockTime,
		CreatedAt: time.Now(),
	}, nil
}

// TokenAccountToModel decodes account when it is a packed token account.
func TokenAccountToModel(address solana.PublicKey, account *types.Account, slot uint64) (*TokenAccountModel, bool) {
	if !account.Owner.Equals(token.ProgramID) || len(account.Data) != token.AccountLen {
		return nil, false
	}
	ta, err := token.UnpackAccount(account.Data)
	if err != nil {
		return nil, false
	}
	now := time.Now()
	model := &TokenAccountModel{
		ID:              address.String(),
		Address:         address.String(),
		Mint:            ta.Mint.String(),
		Owner:           ta.Owner.String(),
		Amount:          ta.Amount,
		DelegatedAmount: ta.DelegatedAmount,
		IsNative:        ta.IsNative != nil,
		Slot:            slot,
		UpdatedAt:       now,
		CreatedAt:       now,
	}

	if ta.Delegate != nil {
		delegateStr := ta.Delegate.String()
		model.Delegate = &delegateStr
	}

	if ta.CloseAuthority != nil {
		closeAuthorityStr := ta.CloseAuthority.String()
		model.CloseAuthority = &closeAuthorityStr
	}

	return model, true
}
