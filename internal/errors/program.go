package errors

// Program error codes returned by the fixed-ratio trading program.
const (
	CodeInvalidTokenPair              uint32 = 1001
	CodeInvalidRatio                  uint32 = 1002
	CodeInsufficientFunds             uint32 = 1003
	CodeInvalidTokenAccount           uint32 = 1004
	CodeInvalidSwapAmount             uint32 = 1005
	CodeRentExemptError               uint32 = 1006
	CodePoolPaused                    uint32 = 1007
	CodeDelegateLimitExceeded         uint32 = 1008
	CodeDelegateAlreadyExists         uint32 = 1009
	CodeDelegateNotFound              uint32 = 1010
	CodeInvalidWaitTime               uint32 = 1011
	CodeUnauthorized                  uint32 = 1012
	CodeUnauthorizedDelegate          uint32 = 1013
	CodeInvalidActionParameters       uint32 = 1014
	CodeInvalidActionType             uint32 = 1015
	CodeActionNotReady                uint32 = 1016
	CodeActionNotFound                uint32 = 1017
	CodeMaxPendingActionsReached      uint32 = 1018
	CodeArithmeticOverflow            uint32 = 1019
	CodeActionAlreadyExecuted         uint32 = 1020
	CodeActionExpired                 uint32 = 1021
	CodeRateLimitExceeded             uint32 = 1022
	CodeSystemPaused                  uint32 = 1023
	CodeSystemAlreadyPaused           uint32 = 1024
	CodeSystemNotPaused               uint32 = 1025
	CodeUnauthorizedAccess            uint32 = 1026
	CodePoolSwapsPaused               uint32 = 1027
	CodePoolSwapsAlreadyPaused        uint32 = 1028
	CodePoolSwapsNotPaused            uint32 = 1029
	CodeUnsupportedRatioType          uint32 = 1030
	CodeInvalidFeeUpdateFlags         uint32 = 1031
	CodeInvalidLiquidityFee           uint32 = 1032
	CodeInvalidSwapFee                uint32 = 1033
	CodeSwapAccessRestricted          uint32 = 1034
	CodeAmountMismatch                uint32 = 1035
	CodePoolNotPausedForConsolidation uint32 = 1036
	CodeInvalidPauseFlags             uint32 = 1037
	CodeInexactExchange               uint32 = 1038
	CodeLpSupplyMismatch              uint32 = 1039
	CodeUninitializedPool             uint32 = 1040
	CodeLiquidityPaused               uint32 = 1041
	CodeAmountOutOfRange              uint32 = 1042
)

var (
	ErrInvalidTokenPair              = NewCustom(CodeInvalidTokenPair, "invalid token pair")
	ErrInvalidRatio                  = NewCustom(CodeInvalidRatio, "invalid ratio")
	ErrProgramInsufficientFunds      = NewCustom(CodeInsufficientFunds, "insufficient funds")
	ErrInvalidTokenAccount           = NewCustom(CodeInvalidTokenAccount, "invalid token account")
	ErrInvalidSwapAmount             = NewCustom(CodeInvalidSwapAmount, "invalid swap amount")
	ErrRentExempt                    = NewCustom(CodeRentExemptError, "account is not rent exempt")
	ErrPoolPaused                    = NewCustom(CodePoolPaused, "pool is paused")
	ErrDelegateLimitExceeded         = NewCustom(CodeDelegateLimitExceeded, "delegate limit exceeded")
	ErrDelegateAlreadyExists         = NewCustom(CodeDelegateAlreadyExists, "delegate already exists")
	ErrDelegateNotFound              = NewCustom(CodeDelegateNotFound, "delegate not found")
	ErrInvalidWaitTime               = NewCustom(CodeInvalidWaitTime, "invalid wait time")
	ErrUnauthorized                  = NewCustom(CodeUnauthorized, "unauthorized")
	ErrUnauthorizedDelegate          = NewCustom(CodeUnauthorizedDelegate, "signer is not a pool delegate")
	ErrInvalidActionParameters       = NewCustom(CodeInvalidActionParameters, "invalid action parameters")
	ErrInvalidActionType             = NewCustom(CodeInvalidActionType, "invalid action type")
	ErrActionNotReady                = NewCustom(CodeActionNotReady, "action wait time has not elapsed")
	ErrActionNotFound                = NewCustom(CodeActionNotFound, "action not found")
	ErrMaxPendingActionsReached      = NewCustom(CodeMaxPendingActionsReached, "pending action list is full")
	ErrProgramArithmeticOverflow     = NewCustom(CodeArithmeticOverflow, "arithmetic overflow")
	ErrSystemPaused                  = NewCustom(CodeSystemPaused, "system is paused")
	ErrSystemAlreadyPaused           = NewCustom(CodeSystemAlreadyPaused, "system is already paused")
	ErrSystemNotPaused               = NewCustom(CodeSystemNotPaused, "system is not paused")
	ErrUnauthorizedAccess            = NewCustom(CodeUnauthorizedAccess, "signer is not the program authority")
	ErrPoolSwapsPaused               = NewCustom(CodePoolSwapsPaused, "pool swaps are paused")
	ErrUnsupportedRatioType          = NewCustom(CodeUnsupportedRatioType, "unsupported ratio type")
	ErrInvalidFeeUpdateFlags         = NewCustom(CodeInvalidFeeUpdateFlags, "invalid fee update flags")
	ErrInvalidLiquidityFee           = NewCustom(CodeInvalidLiquidityFee, "liquidity fee out of bounds")
	ErrInvalidSwapFee                = NewCustom(CodeInvalidSwapFee, "swap fee out of bounds")
	ErrSwapAccessRestricted          = NewCustom(CodeSwapAccessRestricted, "swaps are restricted to the designated owner")
	ErrAmountMismatch                = NewCustom(CodeAmountMismatch, "amount out does not match expected amount")
	ErrPoolNotPausedForConsolidation = NewCustom(CodePoolNotPausedForConsolidation, "pool must be fully paused for consolidation")
	ErrInvalidPauseFlags             = NewCustom(CodeInvalidPauseFlags, "invalid pause flags")
	ErrInexactExchange               = NewCustom(CodeInexactExchange, "exchange leaves a remainder")
	ErrLpSupplyMismatch              = NewCustom(CodeLpSupplyMismatch, "lp token supply changed by an unexpected amount")
	ErrUninitializedPool             = NewCustom(CodeUninitializedPool, "pool is not initialized")
	ErrLiquidityPaused               = NewCustom(CodeLiquidityPaused, "pool liquidity operations are paused")
	ErrAmountOutOfRange              = NewCustom(CodeAmountOutOfRange, "amount outside pool limits")
)
