package dto

import (
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/shopspring/decimal"
)

// WithdrawalRequest reports an early withdrawal of an investment
type WithdrawalRequest struct {
	WithdrawalReference string     `json:"withdrawal_reference" validate:"required,max=255"`
	WithdrawnAt         *time.Time `json:"withdrawn_at" validate:"required"`
}

// SettleCommissionsRequest bounds one settlement batch. Zero values fall back to the configured defaults.
type SettleCommissionsRequest struct {
	BatchSize  int  `json:"batch_size" validate:"omitempty,min=1,max=10000"`
	MaxAgeDays *int `json:"max_age_days,omitempty" validate:"omitempty,min=0"`
}

// AnnualDistributionRequest triggers the annual profit pool run
type AnnualDistributionRequest struct {
	TotalProfit      decimal.Decimal `json:"total_profit" swaggertype:"string"`
	DistributionDate string          `json:"distribution_date" validate:"required,datetime=2006-01-02"`
	Force            bool            `json:"force"`
	CreatedBy        string          `json:"created_by" validate:"required,max=100"`
}

// QuarterlyBonusRequest triggers the quarterly bonus pool run
type QuarterlyBonusRequest struct {
	TotalProfit         decimal.Decimal `json:"total_profit" swaggertype:"string"`
	BonusPoolPercentage decimal.Decimal `json:"bonus_pool_percentage" swaggertype:"string"`
	DistributionDate    string          `json:"distribution_date" validate:"required,datetime=2006-01-02"`
	Force               bool            `json:"force"`
	CreatedBy           string          `json:"created_by" validate:"required,max=100"`
}

// TierUpgradeRequest asks for one account to be reclassified
type TierUpgradeRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=investment_activity scheduled_sweep manual"`
}

// TierSweepRequest reclassifies accounts with investment activity since an instant
type TierSweepRequest struct {
	Since     *time.Time `json:"since" validate:"required"`
	BatchSize int        `json:"batch_size" validate:"omitempty,min=1,max=10000"`
}

// WorkUnitResponse is the externally visible state of a dispatched unit
type WorkUnitResponse struct {
	UUID        string                `json:"uuid"`
	TaskType    string                `json:"task_type"`
	IdentityKey string                `json:"identity_key"`
	Status      models.WorkUnitStatus `json:"status"`
	Attempts    int                   `json:"attempts"`
	MaxAttempts int                   `json:"max_attempts"`
	LastError   *string               `json:"last_error,omitempty"`
	Payload     models.JSONMap        `json:"payload,omitempty"`
	Result      models.JSONMap        `json:"result,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
}

// NewWorkUnitResponse converts a work unit for the API
func NewWorkUnitResponse(unit *models.WorkUnit) WorkUnitResponse {
	return WorkUnitResponse{
		UUID:        unit.UUID.String(),
		TaskType:    unit.TaskType,
		IdentityKey: unit.IdentityKey,
		Status:      unit.Status,
		Attempts:    unit.Attempts,
		MaxAttempts: unit.MaxAttempts,
		LastError:   unit.LastError,
		Payload:     unit.Payload,
		Result:      unit.Result,
		CreatedAt:   unit.CreatedAt,
		StartedAt:   unit.StartedAt,
		FinishedAt:  unit.FinishedAt,
	}
}

// BenefitsResponse is the cached benefit snapshot of an account
type BenefitsResponse struct {
	AccountID uint           `json:"account_id"`
	Benefits  models.JSONMap `json:"benefits"`
}
