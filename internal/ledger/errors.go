package ledger

import "errors"

// 账本错误分类。调用方使用 errors.Is 判断。
var (
	ErrAccessDenied          = errors.New("access denied")
	ErrTokenNotWhitelisted   = errors.New("token not whitelisted")
	ErrSubsystemPaused       = errors.New("subsystem paused")
	ErrAmountTooSmall        = errors.New("amount too small")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrContactNotAuthorized  = errors.New("contact not authorized")
	ErrDistributionExhausted = errors.New("tiptoken distribution exhausted")
	ErrExternalCallFailed    = errors.New("external call failed")

	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOverflow          = errors.New("amount overflow")
	ErrSwapNotAllowed    = errors.New("swap is not allowed for token")
	ErrUnknownRequest    = errors.New("unknown settlement request")
	ErrAlreadyReconciled = errors.New("settlement request already reconciled")
)
