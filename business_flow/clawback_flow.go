package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Clawback step function boundaries, in whole months since the investment
const (
	clawbackFullWindowMonths = 1
	clawbackHalfWindowMonths = 3
)

var (
	clawbackFullPercentage = decimal.NewFromInt(50)
	clawbackHalfPercentage = decimal.NewFromInt(25)
)

// ClawbackPercentage maps elapsed months to the share of a paid commission to reclaim:
// up to 1 month 50, up to 3 months 25, later 0.
func ClawbackPercentage(monthsElapsed int) decimal.Decimal {
	switch {
	case monthsElapsed <= clawbackFullWindowMonths:
		return clawbackFullPercentage
	case monthsElapsed <= clawbackHalfWindowMonths:
		return clawbackHalfPercentage
	default:
		return decimal.Zero
	}
}

// WithdrawalEvent is an early capital withdrawal of one investment
type WithdrawalEvent struct {
	InvestmentID        uint
	WithdrawalReference string
	WithdrawnAt         time.Time
}

// ReferrerAdjustment summarizes what one referrer lost to a withdrawal
type ReferrerAdjustment struct {
	AccountID     uint            `json:"account_id"`
	ClawedBack    decimal.Decimal `json:"clawed_back"`
	DebtRecorded  decimal.Decimal `json:"debt_recorded"`
	CommissionIDs []uint          `json:"commission_ids"`
}

// ClawbackResult reports the effects of a withdrawal
type ClawbackResult struct {
	InvestmentID        uint                         `json:"investment_id"`
	AccountID           uint                         `json:"account_id"`
	CorrelationID       uuid.UUID                    `json:"correlation_id"`
	WithdrawalReference string                       `json:"withdrawal_reference"`
	MonthsElapsed       int                          `json:"months_elapsed"`
	Percentage          decimal.Decimal              `json:"percentage"`
	Clawbacks           []*models.CommissionClawback `json:"clawbacks"`
	Adjustments         []ReferrerAdjustment         `json:"adjustments"`
	TotalClawedBack     decimal.Decimal              `json:"total_clawed_back"`
	AlreadyProcessed    bool                         `json:"already_processed"`
}

// ClawbackPolicy selects which commission types a withdrawal reclaims
type ClawbackPolicy struct {
	IncludeMatrix bool
}

func (p ClawbackPolicy) types() []models.CommissionType {
	if p.IncludeMatrix {
		return []models.CommissionType{models.CommissionTypeMultiLevel, models.CommissionTypeMatrix}
	}
	return []models.CommissionType{models.CommissionTypeMultiLevel}
}

// ClawbackFlow reclaims commissions when an investment is withdrawn early
type ClawbackFlow interface {
	ProcessWithdrawal(ctx context.Context, event WithdrawalEvent) (*ClawbackResult, error)
}

// ClawbackFlowImpl implements ClawbackFlow
type ClawbackFlowImpl struct {
	accountRepo    repository.AccountRepository
	investmentRepo repository.InvestmentRepository
	commissionRepo repository.ReferralCommissionRepository
	clawbackRepo   repository.CommissionClawbackRepository
	activityRepo   repository.ActivityLogRepository
	policy         ClawbackPolicy
	notifier       services.NotificationSink
	logger         *zap.Logger
	db             *gorm.DB
}

// NewClawbackFlow constructs a ClawbackFlow
func NewClawbackFlow(
	accountRepo repository.AccountRepository,
	investmentRepo repository.InvestmentRepository,
	commissionRepo repository.ReferralCommissionRepository,
	clawbackRepo repository.CommissionClawbackRepository,
	activityRepo repository.ActivityLogRepository,
	policy ClawbackPolicy,
	notifier services.NotificationSink,
	logger *zap.Logger,
	db *gorm.DB,
) ClawbackFlow {
	return &ClawbackFlowImpl{
		accountRepo:    accountRepo,
		investmentRepo: investmentRepo,
		commissionRepo: commissionRepo,
		clawbackRepo:   clawbackRepo,
		activityRepo:   activityRepo,
		policy:         policy,
		notifier:       notifier,
		logger:         logger,
		db:             db,
	}
}

type referrerClawback struct {
	account    *models.Account
	adjustment ReferrerAdjustment
}

// ProcessWithdrawal marks the investment inactive and reclaims a time-based share of every
// paid commission it produced. All referrers are adjusted in one transaction.
func (f *ClawbackFlowImpl) ProcessWithdrawal(ctx context.Context, event WithdrawalEvent) (*ClawbackResult, error) {
	if err := f.validateWithdrawal(event); err != nil {
		return nil, err
	}

	investment, err := getInvestment(ctx, f.investmentRepo, event.InvestmentID)
	if err != nil {
		return nil, err
	}
	if event.WithdrawnAt.Before(investment.CreatedAt) {
		return nil, NewBusinessErrorf("PROCESS_WITHDRAWAL_VALIDATION_FAILED", "Withdrawal at %s precedes investment %d", ErrWithdrawalBeforeInvestment,
			event.WithdrawnAt.Format(time.RFC3339), investment.ID)
	}

	if existing, err := f.existingResult(ctx, investment); err != nil || existing != nil {
		return existing, err
	}
	if !investment.IsActive() {
		return nil, NewBusinessErrorf("PROCESS_WITHDRAWAL_VALIDATION_FAILED", "Investment %d is %s", ErrInvestmentNotActive, investment.ID, investment.Status)
	}

	months := utils.MonthsBetween(investment.CreatedAt, event.WithdrawnAt)
	result := &ClawbackResult{
		InvestmentID:        investment.ID,
		AccountID:           investment.AccountID,
		CorrelationID:       uuid.New(),
		WithdrawalReference: event.WithdrawalReference,
		MonthsElapsed:       months,
		Percentage:          ClawbackPercentage(months),
	}

	var affected []*referrerClawback
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if _, err := f.investmentRepo.MarkInactive(txCtx, investment.ID, event.WithdrawnAt); err != nil {
			return err
		}
		if result.Percentage.IsZero() {
			return nil
		}

		commissions, err := f.commissionRepo.PaidForWithdrawal(txCtx, investment.ID, investment.AccountID, f.policy.types())
		if err != nil {
			return err
		}

		affected, err = f.clawBack(txCtx, investment, event, result, commissions)
		return err
	})
	if err != nil {
		f.logger.Error("withdrawal clawback failed",
			zap.Uint("investment_id", investment.ID),
			zap.String("withdrawal_reference", event.WithdrawalReference),
			zap.Error(err),
		)
		return nil, NewBusinessError("PROCESS_WITHDRAWAL_FAILED", "Failed to process withdrawal clawback", err)
	}

	for _, a := range affected {
		result.Adjustments = append(result.Adjustments, a.adjustment)
		services.Deliver(ctx, f.notifier, f.logger, services.AccountRecipient(a.account.ID, a.account.Email),
			services.NewEvent(services.EventCommissionClawedBack, "Referral commission reclaimed after early withdrawal", map[string]any{
				"investment_id":        investment.ID,
				"withdrawal_reference": event.WithdrawalReference,
				"percentage":           result.Percentage.String(),
				"amount":               a.adjustment.ClawedBack.StringFixed(utils.MoneyPlaces),
				"debt_recorded":        a.adjustment.DebtRecorded.StringFixed(utils.MoneyPlaces),
			}))
	}

	f.logger.Info("withdrawal processed",
		zap.Uint("investment_id", investment.ID),
		zap.String("withdrawal_reference", event.WithdrawalReference),
		zap.Int("months_elapsed", months),
		zap.String("percentage", result.Percentage.String()),
		zap.Int("clawback_count", len(result.Clawbacks)),
		zap.String("total_clawed_back", result.TotalClawedBack.String()),
	)

	return result, nil
}

func (f *ClawbackFlowImpl) validateWithdrawal(event WithdrawalEvent) error {
	if strings.TrimSpace(event.WithdrawalReference) == "" {
		return NewBusinessError("PROCESS_WITHDRAWAL_VALIDATION_FAILED", "Withdrawal reference is required", ErrWithdrawalReferenceRequired)
	}
	if event.WithdrawnAt.IsZero() {
		return NewBusinessError("PROCESS_WITHDRAWAL_VALIDATION_FAILED", "Withdrawal timestamp is required", ErrWithdrawalBeforeInvestment)
	}
	return nil
}

func (f *ClawbackFlowImpl) existingResult(ctx context.Context, investment *models.Investment) (*ClawbackResult, error) {
	clawbacks, err := f.clawbackRepo.ByInvestment(ctx, investment.ID)
	if err != nil {
		return nil, err
	}
	if len(clawbacks) == 0 {
		return nil, nil
	}

	first := clawbacks[0]
	result := &ClawbackResult{
		InvestmentID:        investment.ID,
		AccountID:           investment.AccountID,
		CorrelationID:       first.CorrelationID,
		WithdrawalReference: first.WithdrawalReference,
		MonthsElapsed:       first.MonthsElapsed,
		Percentage:          first.ClawbackPercentage,
		Clawbacks:           clawbacks,
		AlreadyProcessed:    true,
	}
	for _, c := range clawbacks {
		result.TotalClawedBack = result.TotalClawedBack.Add(c.ClawbackAmount)
	}
	return result, nil
}

// clawBack writes one clawback per commission, then adjusts each referrer once
func (f *ClawbackFlowImpl) clawBack(
	ctx context.Context,
	investment *models.Investment,
	event WithdrawalEvent,
	result *ClawbackResult,
	commissions []*models.ReferralCommission,
) ([]*referrerClawback, error) {
	now := utils.UTCNow()
	byReferrer := make(map[uint]*referrerClawback)

	for _, commission := range commissions {
		amount := utils.PercentOf(commission.Amount, result.Percentage)
		if !amount.IsPositive() {
			continue
		}

		clawback := &models.CommissionClawback{
			CorrelationID:       result.CorrelationID,
			CommissionID:        commission.ID,
			AccountID:           commission.ReferrerAccountID,
			InvestmentID:        investment.ID,
			WithdrawalReference: event.WithdrawalReference,
			OriginalAmount:      commission.Amount,
			ClawbackPercentage:  result.Percentage,
			ClawbackAmount:      amount,
			MonthsElapsed:       result.MonthsElapsed,
			Reason: fmt.Sprintf("Early withdrawal after %d month(s): %s%% of %s %s commission (level %d)",
				result.MonthsElapsed, result.Percentage.String(), commission.Amount.StringFixed(utils.MoneyPlaces), commission.Type, commission.Level),
			ProcessedAt: now,
			CreatedAt:   now,
		}
		if err := f.clawbackRepo.Save(ctx, clawback); err != nil {
			return nil, err
		}
		result.Clawbacks = append(result.Clawbacks, clawback)
		result.TotalClawedBack = result.TotalClawedBack.Add(amount)

		rc, ok := byReferrer[commission.ReferrerAccountID]
		if !ok {
			rc = &referrerClawback{adjustment: ReferrerAdjustment{AccountID: commission.ReferrerAccountID}}
			byReferrer[commission.ReferrerAccountID] = rc
		}
		rc.adjustment.ClawedBack = rc.adjustment.ClawedBack.Add(amount)
		rc.adjustment.CommissionIDs = append(rc.adjustment.CommissionIDs, commission.ID)
	}

	ids := make([]uint, 0, len(byReferrer))
	for id := range byReferrer {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	affected := make([]*referrerClawback, 0, len(ids))
	for _, id := range ids {
		rc := byReferrer[id]
		account, err := getAccount(ctx, f.accountRepo, id)
		if err != nil {
			return nil, err
		}
		rc.account = account

		if err := f.accountRepo.UpdateEarnings(ctx, id, rc.adjustment.ClawedBack.Neg()); err != nil {
			return nil, err
		}
		debt, err := f.accountRepo.SettleNegativeEarnings(ctx, id)
		if err != nil {
			return nil, err
		}
		rc.adjustment.DebtRecorded = debt

		desc := fmt.Sprintf("Reclaimed %s from %d commission(s) after withdrawal %s of investment %d",
			rc.adjustment.ClawedBack.StringFixed(utils.MoneyPlaces), len(rc.adjustment.CommissionIDs), event.WithdrawalReference, investment.ID)
		amount := rc.adjustment.ClawedBack.Neg()
		metadata := models.JSONMap{
			"correlation_id":       result.CorrelationID.String(),
			"investment_id":        investment.ID,
			"withdrawal_reference": event.WithdrawalReference,
			"percentage":           result.Percentage.String(),
			"commission_ids":       rc.adjustment.CommissionIDs,
		}
		if debt.IsPositive() {
			desc = fmt.Sprintf("%s; %s moved to outstanding debt", desc, debt.StringFixed(utils.MoneyPlaces))
			metadata["debt_recorded"] = debt.String()
		}
		if err := appendActivity(ctx, f.activityRepo, id, models.ActivityActionCommissionClawedBack, desc, &amount, metadata); err != nil {
			return nil, err
		}

		affected = append(affected, rc)
	}

	return affected, nil
}
