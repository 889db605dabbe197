package models

import (
	"errors"
	"fmt"

	"twubi/internal/ledger/wad"
	dErrors "twubi/pkg/domain-errors"
)

// ErrorKind enumerates every failure a ledger operation can report.
// The set is closed: callers can switch over it exhaustively.
type ErrorKind int

const (
	// input
	KindMalformedAmount ErrorKind = iota + 1
	KindInvalidAmount
	KindInvalidPersonID
	KindInvalidRequest
	KindWalletNotActive
	// policy
	KindRegistrationExpired
	KindAlreadyClaimed
	KindConversionCapExceeded
	KindInsufficientBalance
	KindSlippageTooHigh
	KindNotYetUnlocked
	KindConversionAlreadyClaimed
	KindNotFound
	KindAlreadyRegistered
	// invariant
	KindRateIndexNotInitialized
	KindTreasuryInsufficient
)

var kindNames = map[ErrorKind]string{
	KindMalformedAmount:          "malformed_amount",
	KindInvalidAmount:            "invalid_amount",
	KindInvalidPersonID:          "invalid_person_id",
	KindInvalidRequest:           "invalid_request",
	KindWalletNotActive:          "wallet_not_active",
	KindRegistrationExpired:      "registration_expired",
	KindAlreadyClaimed:           "already_claimed",
	KindConversionCapExceeded:    "conversion_cap_exceeded",
	KindInsufficientBalance:      "insufficient_balance",
	KindSlippageTooHigh:          "slippage_too_high",
	KindNotYetUnlocked:           "not_yet_unlocked",
	KindConversionAlreadyClaimed: "conversion_already_claimed",
	KindNotFound:                 "not_found",
	KindAlreadyRegistered:        "already_registered",
	KindRateIndexNotInitialized:  "rate_index_not_initialized",
	KindTreasuryInsufficient:     "treasury_insufficient",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsInvariant reports kinds that indicate a defect rather than a caller mistake.
func (k ErrorKind) IsInvariant() bool {
	return k == KindRateIndexNotInitialized || k == KindTreasuryInsufficient
}

// LedgerError is the single error type returned by ledger operations for
// input, policy and invariant failures. Infrastructure failures are returned
// as coded domain errors instead.
type LedgerError struct {
	Kind ErrorKind

	Field       string
	Detail      string
	Epoch       int64
	Region      RegionID
	MinBUOut    wad.Amount
	ComputedBU  wad.Amount
	Requested   wad.Amount
	Available   wad.Amount
	Conversion  ConversionID
	WalletValue Wallet

	Err error
}

func (e *LedgerError) Error() string {
	switch e.Kind {
	case KindMalformedAmount:
		return fmt.Sprintf("malformed amount for %s: %s", e.Field, e.Detail)
	case KindInvalidAmount:
		return fmt.Sprintf("invalid amount for %s: %s", e.Field, e.Detail)
	case KindInvalidPersonID:
		return fmt.Sprintf("invalid person id %q", e.Detail)
	case KindInvalidRequest:
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
	case KindWalletNotActive:
		return fmt.Sprintf("wallet %s is not registered or not active", e.WalletValue)
	case KindRegistrationExpired:
		return fmt.Sprintf("registration expired at epoch %d", e.Epoch)
	case KindAlreadyClaimed:
		return fmt.Sprintf("ubi already claimed for epoch %d", e.Epoch)
	case KindConversionCapExceeded:
		return fmt.Sprintf("conversion cap exceeded: requested %s, remaining %s", e.Requested, e.Available)
	case KindInsufficientBalance:
		return fmt.Sprintf("insufficient balance: requested %s, available %s", e.Requested, e.Available)
	case KindSlippageTooHigh:
		return fmt.Sprintf("slippage too high: min_bu_out %s, computed %s", e.MinBUOut, e.ComputedBU)
	case KindNotYetUnlocked:
		return fmt.Sprintf("conversion unlocks at epoch %d", e.Epoch)
	case KindConversionAlreadyClaimed:
		return fmt.Sprintf("conversion %s already claimed", e.Conversion)
	case KindNotFound:
		return e.Detail + " not found"
	case KindAlreadyRegistered:
		return e.Detail + " already registered"
	case KindRateIndexNotInitialized:
		return fmt.Sprintf("rate index for region %d not initialized", e.Region)
	case KindTreasuryInsufficient:
		return fmt.Sprintf("treasury cannot cover %s BU", e.Requested)
	}
	return e.Kind.String()
}

func (e *LedgerError) Unwrap() error { return e.Err }

// Is matches another *LedgerError of the same kind.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Kind == e.Kind
}

// DomainCode maps the kind onto the transport-facing code.
func (e *LedgerError) DomainCode() dErrors.Code {
	switch e.Kind {
	case KindMalformedAmount, KindInvalidPersonID:
		return dErrors.CodeInvalidInput
	case KindInvalidAmount, KindInvalidRequest:
		return dErrors.CodeValidation
	case KindWalletNotActive:
		return dErrors.CodeForbidden
	case KindRegistrationExpired, KindInsufficientBalance, KindSlippageTooHigh, KindNotYetUnlocked:
		return dErrors.CodePreconditionFailed
	case KindConversionCapExceeded:
		return dErrors.CodeLimitExceeded
	case KindAlreadyClaimed, KindConversionAlreadyClaimed, KindAlreadyRegistered:
		return dErrors.CodeConflict
	case KindNotFound:
		return dErrors.CodeNotFound
	case KindTreasuryInsufficient:
		return dErrors.CodeUnavailable
	case KindRateIndexNotInitialized:
		return dErrors.CodeInvariantViolation
	}
	return dErrors.CodeInternal
}

// KindOf returns the ledger kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given ledger kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func MalformedAmount(field string, err error) *LedgerError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &LedgerError{Kind: KindMalformedAmount, Field: field, Detail: detail, Err: err}
}

func InvalidAmount(field, detail string) *LedgerError {
	return &LedgerError{Kind: KindInvalidAmount, Field: field, Detail: detail}
}

func InvalidPersonID(raw string) *LedgerError {
	return &LedgerError{Kind: KindInvalidPersonID, Detail: raw}
}

func InvalidRequest(field, detail string) *LedgerError {
	return &LedgerError{Kind: KindInvalidRequest, Field: field, Detail: detail}
}

func WalletNotActive(w Wallet) *LedgerError {
	return &LedgerError{Kind: KindWalletNotActive, WalletValue: w}
}

func RegistrationExpired(expiry int64) *LedgerError {
	return &LedgerError{Kind: KindRegistrationExpired, Epoch: expiry}
}

func AlreadyClaimed(epoch int64) *LedgerError {
	return &LedgerError{Kind: KindAlreadyClaimed, Epoch: epoch}
}

func ConversionCapExceeded(requested, remaining wad.Amount) *LedgerError {
	return &LedgerError{Kind: KindConversionCapExceeded, Requested: requested, Available: remaining}
}

func InsufficientBalance(requested, available wad.Amount) *LedgerError {
	return &LedgerError{Kind: KindInsufficientBalance, Requested: requested, Available: available}
}

func SlippageTooHigh(minOut, computed wad.Amount) *LedgerError {
	return &LedgerError{Kind: KindSlippageTooHigh, MinBUOut: minOut, ComputedBU: computed}
}

func NotYetUnlocked(unlockEpoch int64) *LedgerError {
	return &LedgerError{Kind: KindNotYetUnlocked, Epoch: unlockEpoch}
}

func ConversionAlreadyClaimed(id ConversionID) *LedgerError {
	return &LedgerError{Kind: KindConversionAlreadyClaimed, Conversion: id}
}

func NotFound(what string) *LedgerError {
	return &LedgerError{Kind: KindNotFound, Detail: what}
}

func AlreadyRegistered(what string) *LedgerError {
	return &LedgerError{Kind: KindAlreadyRegistered, Detail: what}
}

func RateIndexNotInitialized(region RegionID) *LedgerError {
	return &LedgerError{Kind: KindRateIndexNotInitialized, Region: region}
}

func TreasuryInsufficient(requested wad.Amount) *LedgerError {
	return &LedgerError{Kind: KindTreasuryInsufficient, Requested: requested}
}

var _ dErrors.Coder = (*LedgerError)(nil)
