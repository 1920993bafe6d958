// Package businessflow contains the financial distribution engine: tier classification,
// referral commissions, clawbacks, settlement, profit pool distribution and tier upgrades
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/Susanoo/models"
)

// Business flow error constants
var (
	// Missing references
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvestmentNotFound   = errors.New("investment not found")
	ErrDistributionNotFound = errors.New("distribution not found")
	ErrWorkUnitNotFound     = errors.New("work unit not found")

	// Validation
	ErrInvestmentNotActive           = errors.New("investment is not active")
	ErrInvalidInvestmentAmount       = errors.New("investment amount must be positive")
	ErrWithdrawalBeforeInvestment    = errors.New("withdrawal timestamp precedes the investment")
	ErrWithdrawalReferenceRequired   = errors.New("withdrawal reference is required")
	ErrInvalidBatchSize              = errors.New("batch size is out of range")
	ErrInvalidMaxAgeDays             = errors.New("max age days must not be negative")
	ErrNegativeProfit                = errors.New("profit figure must not be negative")
	ErrInvalidDistributionPercentage = errors.New("distribution percentage must be within (0, 1]")
	ErrBonusPercentageOutOfRange     = errors.New("bonus pool percentage must be between 5 and 10")
	ErrUnknownDistributionType       = errors.New("unknown distribution type")
	ErrDistributionDateRequired      = errors.New("distribution date is required")
	ErrInvalidTierTable              = models.ErrInvalidTierTable

	// Conflicts
	ErrDistributionAlreadyExists = errors.New("distribution already exists for this type and date")

	// Transient
	ErrMatrixCommissionFailed = errors.New("matrix commission computation failed")
	ErrSettlementRaced        = errors.New("pending commissions changed during settlement")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ErrorKind groups errors by how callers must react to them
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindConflict   ErrorKind = "conflict"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindTransient  ErrorKind = "transient"
)

var (
	validationErrors = []error{
		ErrInvestmentNotActive,
		ErrInvalidInvestmentAmount,
		ErrWithdrawalBeforeInvestment,
		ErrWithdrawalReferenceRequired,
		ErrInvalidBatchSize,
		ErrInvalidMaxAgeDays,
		ErrNegativeProfit,
		ErrInvalidDistributionPercentage,
		ErrBonusPercentageOutOfRange,
		ErrUnknownDistributionType,
		ErrDistributionDateRequired,
		ErrInvalidTierTable,
	}
	notFoundErrors = []error{
		ErrAccountNotFound,
		ErrInvestmentNotFound,
		ErrDistributionNotFound,
		ErrWorkUnitNotFound,
	}
)

// KindOf classifies err. Anything not known to be a caller mistake is transient.
func KindOf(err error) ErrorKind {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return ErrorKindValidation
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return ErrorKindNotFound
		}
	}
	if errors.Is(err, ErrDistributionAlreadyExists) {
		return ErrorKindConflict
	}
	return ErrorKindTransient
}

// IsRetryable reports whether re-running the failed unit can succeed
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == ErrorKindTransient
}

func IsValidationError(err error) bool {
	return err != nil && KindOf(err) == ErrorKindValidation
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == ErrorKindNotFound
}

func IsDistributionAlreadyExists(err error) bool {
	return errors.Is(err, ErrDistributionAlreadyExists)
}
