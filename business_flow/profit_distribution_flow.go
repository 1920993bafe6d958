package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const poolShareScale = 10

// DistributionRequest describes one profit pool run
type DistributionRequest struct {
	Type        models.DistributionType
	TotalProfit decimal.Decimal
	// BonusPoolPercentage is a percent in [5, 10]; quarterly bonus only
	BonusPoolPercentage decimal.Decimal
	DistributionDate    time.Time
	Force               bool
	CreatedBy           string
}

// DistributionResult is a distribution header with its allocations
type DistributionResult struct {
	Distribution *models.ProfitDistribution `json:"distribution"`
	Allocations  []*models.ProfitAllocation `json:"allocations"`
	SupersededID *uint                      `json:"superseded_id,omitempty"`
}

// DistributionPolicy holds the configured distribution constants
type DistributionPolicy struct {
	// AnnualPercentage is the fraction of annual fund profit paid out, in (0, 1]
	AnnualPercentage decimal.Decimal
}

// DefaultDistributionPolicy returns the stock policy
func DefaultDistributionPolicy() DistributionPolicy {
	return DistributionPolicy{AnnualPercentage: decimal.RequireFromString(utils.DefaultAnnualDistributionPercentage)}
}

// ProfitDistributionFlow allocates profit pools across investors
type ProfitDistributionFlow interface {
	Validate(req DistributionRequest) error
	CheckConflict(ctx context.Context, req DistributionRequest) error
	Distribute(ctx context.Context, req DistributionRequest) (*DistributionResult, error)
	DistributeAnnual(ctx context.Context, req DistributionRequest) (*DistributionResult, error)
	DistributeQuarterlyBonus(ctx context.Context, req DistributionRequest) (*DistributionResult, error)
	RecordFailure(ctx context.Context, req DistributionRequest, cause error) (*models.ProfitDistribution, error)
	GetDistribution(ctx context.Context, id uint) (*DistributionResult, error)
	ExportReport(ctx context.Context, id uint) (string, []byte, error)
}

// ProfitDistributionFlowImpl implements ProfitDistributionFlow
type ProfitDistributionFlowImpl struct {
	investmentRepo   repository.InvestmentRepository
	distributionRepo repository.ProfitDistributionRepository
	allocationRepo   repository.ProfitAllocationRepository
	activityRepo     repository.ActivityLogRepository
	classifier       *TierClassifier
	policy           DistributionPolicy
	notifier         services.NotificationSink
	logger           *zap.Logger
	db               *gorm.DB
}

// NewProfitDistributionFlow constructs a ProfitDistributionFlow
func NewProfitDistributionFlow(
	investmentRepo repository.InvestmentRepository,
	distributionRepo repository.ProfitDistributionRepository,
	allocationRepo repository.ProfitAllocationRepository,
	activityRepo repository.ActivityLogRepository,
	classifier *TierClassifier,
	policy DistributionPolicy,
	notifier services.NotificationSink,
	logger *zap.Logger,
	db *gorm.DB,
) ProfitDistributionFlow {
	return &ProfitDistributionFlowImpl{
		investmentRepo:   investmentRepo,
		distributionRepo: distributionRepo,
		allocationRepo:   allocationRepo,
		activityRepo:     activityRepo,
		classifier:       classifier,
		policy:           policy,
		notifier:         notifier,
		logger:           logger,
		db:               db,
	}
}

// distributionPlan is what differs between annual and quarterly runs
type distributionPlan struct {
	pool           decimal.Decimal
	poolPercentage decimal.Decimal
	tierNames      []string
	activityAction string
	details        models.JSONMap
}

// Validate rejects malformed requests before anything is read or written
func (f *ProfitDistributionFlowImpl) Validate(req DistributionRequest) error {
	if !req.Type.IsValid() {
		return NewBusinessErrorf("DISTRIBUTION_VALIDATION_FAILED", "Unknown distribution type %q", ErrUnknownDistributionType, req.Type)
	}
	if req.DistributionDate.IsZero() {
		return NewBusinessError("DISTRIBUTION_VALIDATION_FAILED", "Distribution date is required", ErrDistributionDateRequired)
	}
	if req.TotalProfit.IsNegative() {
		return NewBusinessError("DISTRIBUTION_VALIDATION_FAILED", "Profit figure must not be negative", ErrNegativeProfit)
	}

	switch req.Type {
	case models.DistributionTypeAnnual:
		pct := f.policy.AnnualPercentage
		if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(1)) {
			return NewBusinessErrorf("DISTRIBUTION_VALIDATION_FAILED", "Annual distribution percentage %s is outside (0, 1]", ErrInvalidDistributionPercentage, pct.String())
		}
	case models.DistributionTypeQuarterlyBonus:
		pct := req.BonusPoolPercentage
		if pct.LessThan(decimal.NewFromInt(utils.MinQuarterlyBonusPercentage)) || pct.GreaterThan(decimal.NewFromInt(utils.MaxQuarterlyBonusPercentage)) {
			return NewBusinessErrorf("DISTRIBUTION_VALIDATION_FAILED", "Bonus pool percentage %s is outside [%d, %d]", ErrBonusPercentageOutOfRange,
				pct.String(), utils.MinQuarterlyBonusPercentage, utils.MaxQuarterlyBonusPercentage)
		}
	}
	return nil
}

// CheckConflict fails when a processed run already exists for the type and date and force is not set
func (f *ProfitDistributionFlowImpl) CheckConflict(ctx context.Context, req DistributionRequest) error {
	if req.Force {
		return nil
	}
	exists, err := f.distributionRepo.ExistsProcessed(ctx, req.Type, req.DistributionDate)
	if err != nil {
		return err
	}
	if exists {
		return NewBusinessErrorf("DISTRIBUTION_ALREADY_EXISTS", "A %s distribution already exists for %s", ErrDistributionAlreadyExists,
			req.Type, utils.StartOfDay(req.DistributionDate).Format(time.DateOnly))
	}
	return nil
}

// DistributeAnnual pays AnnualPercentage of the fund profit to every active investor pro rata
func (f *ProfitDistributionFlowImpl) DistributeAnnual(ctx context.Context, req DistributionRequest) (*DistributionResult, error) {
	req.Type = models.DistributionTypeAnnual
	return f.Distribute(ctx, req)
}

// DistributeQuarterlyBonus pays a bonus pool to holders of bonus-eligible tiers pro rata
func (f *ProfitDistributionFlowImpl) DistributeQuarterlyBonus(ctx context.Context, req DistributionRequest) (*DistributionResult, error) {
	req.Type = models.DistributionTypeQuarterlyBonus
	return f.Distribute(ctx, req)
}

// Distribute runs one distribution. A forced run suspends the processed run it replaces.
func (f *ProfitDistributionFlowImpl) Distribute(ctx context.Context, req DistributionRequest) (*DistributionResult, error) {
	if err := f.Validate(req); err != nil {
		return nil, err
	}
	if err := f.CheckConflict(ctx, req); err != nil {
		return nil, err
	}
	if req.CreatedBy == "" {
		req.CreatedBy = utils.SystemActor
	}

	plan := f.plan(req)
	now := utils.UTCNow()
	distribution := &models.ProfitDistribution{
		UUID:             uuid.New(),
		Type:             req.Type,
		DistributionDate: utils.StartOfDay(req.DistributionDate),
		Status:           models.DistributionStatusProcessed,
		TotalProfit:      req.TotalProfit,
		PoolPercentage:   plan.poolPercentage,
		PoolAmount:       utils.TruncMoney(plan.pool),
		CreatedBy:        req.CreatedBy,
		ProcessedAt:      &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	result := &DistributionResult{Distribution: distribution}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, err := f.distributionRepo.ProcessedFor(txCtx, req.Type, req.DistributionDate)
		if err != nil {
			return err
		}
		if existing != nil {
			if !req.Force {
				return NewBusinessErrorf("DISTRIBUTION_ALREADY_EXISTS", "A %s distribution already exists for %s", ErrDistributionAlreadyExists,
					req.Type, distribution.DistributionDate.Format(time.DateOnly))
			}
			if err := f.distributionRepo.UpdateStatus(txCtx, existing.ID, models.DistributionStatusSuspended, models.JSONMap{
				"superseded_by": distribution.UUID.String(),
				"superseded_at": now.Format(time.RFC3339),
			}); err != nil {
				return err
			}
			result.SupersededID = &existing.ID
			plan.details["supersedes"] = existing.UUID.String()
		}

		allocations, err := f.allocate(txCtx, plan)
		if err != nil {
			return err
		}

		distributed := decimal.Zero
		for _, a := range allocations {
			distributed = distributed.Add(a.Amount)
		}
		distribution.TotalDistributed = distributed
		distribution.RemainingPool = distribution.PoolAmount.Sub(distributed)
		distribution.RecipientCount = len(allocations)
		plan.details["remaining_pool"] = distribution.RemainingPool.String()
		distribution.CalculationDetails = plan.details

		if err := f.distributionRepo.Save(txCtx, distribution); err != nil {
			return err
		}
		for _, a := range allocations {
			a.DistributionID = distribution.ID
			a.CreatedAt = now
		}
		if err := f.allocationRepo.SaveBatch(txCtx, allocations); err != nil {
			return err
		}

		for _, a := range allocations {
			desc := fmt.Sprintf("Allocated %s from %s distribution of %s",
				a.Amount.StringFixed(utils.MoneyPlaces), distribution.Type, distribution.DistributionDate.Format(time.DateOnly))
			amount := a.Amount
			if err := appendActivity(txCtx, f.activityRepo, a.AccountID, plan.activityAction, desc, &amount, models.JSONMap{
				"distribution_uuid": distribution.UUID.String(),
				"pool_share":        a.PoolShare.String(),
				"invested_amount":   a.InvestedAmount.String(),
			}); err != nil {
				return err
			}
		}

		result.Allocations = allocations
		return nil
	})
	if err != nil {
		if IsDistributionAlreadyExists(err) {
			return nil, err
		}
		f.logger.Error("profit distribution failed",
			zap.String("type", string(req.Type)),
			zap.Time("distribution_date", req.DistributionDate),
			zap.String("total_profit", req.TotalProfit.String()),
			zap.Error(err),
		)
		return nil, NewBusinessError("DISTRIBUTION_FAILED", "Failed to distribute profit", err)
	}

	for _, a := range result.Allocations {
		services.Deliver(ctx, f.notifier, f.logger, services.AccountRecipient(a.AccountID, ""),
			services.NewEvent(services.EventDistributionAllocated, "Profit distribution credited", map[string]any{
				"distribution_uuid": distribution.UUID.String(),
				"type":              distribution.Type,
				"amount":            a.Amount.StringFixed(utils.MoneyPlaces),
			}))
	}
	services.Deliver(ctx, f.notifier, f.logger, services.AdminRecipient(),
		services.NewEvent(services.EventDistributionCompleted, fmt.Sprintf("%s distribution completed", distribution.Type), map[string]any{
			"distribution_uuid": distribution.UUID.String(),
			"distribution_date": distribution.DistributionDate.Format(time.DateOnly),
			"pool_amount":       distribution.PoolAmount.String(),
			"total_distributed": distribution.TotalDistributed.String(),
			"remaining_pool":    distribution.RemainingPool.String(),
			"recipient_count":   distribution.RecipientCount,
		}))

	f.logger.Info("profit distribution processed",
		zap.String("type", string(distribution.Type)),
		zap.String("distribution_uuid", distribution.UUID.String()),
		zap.String("pool_amount", distribution.PoolAmount.String()),
		zap.String("total_distributed", distribution.TotalDistributed.String()),
		zap.Int("recipient_count", distribution.RecipientCount),
	)

	return result, nil
}

func (f *ProfitDistributionFlowImpl) plan(req DistributionRequest) *distributionPlan {
	switch req.Type {
	case models.DistributionTypeQuarterlyBonus:
		names := f.classifier.Table().QuarterlyBonusTierNames()
		if names == nil {
			names = []string{}
		}
		pool := req.TotalProfit.Mul(req.BonusPoolPercentage).Div(decimal.NewFromInt(100))
		return &distributionPlan{
			pool:           pool,
			poolPercentage: req.BonusPoolPercentage,
			tierNames:      names,
			activityAction: models.ActivityActionQuarterlyBonusAllocated,
			details: models.JSONMap{
				"bonus_pool":            utils.TruncMoney(pool).String(),
				"bonus_pool_percentage": req.BonusPoolPercentage.String(),
				"eligible_tiers":        names,
			},
		}
	default:
		pool := req.TotalProfit.Mul(f.policy.AnnualPercentage)
		return &distributionPlan{
			pool:           pool,
			poolPercentage: f.policy.AnnualPercentage,
			activityAction: models.ActivityActionProfitAllocated,
			details: models.JSONMap{
				"distribution_pool":       utils.TruncMoney(pool).String(),
				"distribution_percentage": f.policy.AnnualPercentage.String(),
			},
		}
	}
}

// allocate splits plan.pool by each account's share of the active pool. Amounts are
// truncated, so the allocations never exceed the pool.
func (f *ProfitDistributionFlowImpl) allocate(ctx context.Context, plan *distributionPlan) ([]*models.ProfitAllocation, error) {
	if plan.tierNames != nil && len(plan.tierNames) == 0 {
		plan.details["pool_total"] = decimal.Zero.String()
		return nil, nil
	}

	poolTotal, err := f.investmentRepo.SumActivePool(ctx, plan.tierNames)
	if err != nil {
		return nil, err
	}
	plan.details["pool_total"] = poolTotal.String()
	if !poolTotal.IsPositive() || !plan.pool.IsPositive() {
		return nil, nil
	}

	shares, err := f.investmentRepo.ActiveShares(ctx, plan.tierNames)
	if err != nil {
		return nil, err
	}

	allocations := make([]*models.ProfitAllocation, 0, len(shares))
	for _, s := range shares {
		amount := utils.TruncMoney(plan.pool.Mul(s.Amount).Div(poolTotal))
		if !amount.IsPositive() {
			continue
		}
		allocations = append(allocations, &models.ProfitAllocation{
			AccountID:      s.AccountID,
			TierName:       s.TierName,
			InvestedAmount: s.Amount,
			PoolShare:      s.Amount.DivRound(poolTotal, poolShareScale),
			Amount:         amount,
		})
	}
	return allocations, nil
}

// RecordFailure stores a failed header for a run that could not complete
func (f *ProfitDistributionFlowImpl) RecordFailure(ctx context.Context, req DistributionRequest, cause error) (*models.ProfitDistribution, error) {
	if req.CreatedBy == "" {
		req.CreatedBy = utils.SystemActor
	}
	poolPercentage := req.BonusPoolPercentage
	if req.Type == models.DistributionTypeAnnual {
		poolPercentage = f.policy.AnnualPercentage
	}

	details := models.JSONMap{"forced": req.Force}
	if cause != nil {
		details["error"] = cause.Error()
	}

	now := utils.UTCNow()
	distribution := &models.ProfitDistribution{
		Type:               req.Type,
		DistributionDate:   utils.StartOfDay(req.DistributionDate),
		Status:             models.DistributionStatusFailed,
		TotalProfit:        req.TotalProfit,
		PoolPercentage:     poolPercentage,
		PoolAmount:         decimal.Zero,
		CalculationDetails: details,
		CreatedBy:          req.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := f.distributionRepo.Save(ctx, distribution); err != nil {
		return nil, NewBusinessError("RECORD_DISTRIBUTION_FAILURE_FAILED", "Failed to record distribution failure", err)
	}
	return distribution, nil
}

// GetDistribution loads a distribution with its allocations
func (f *ProfitDistributionFlowImpl) GetDistribution(ctx context.Context, id uint) (*DistributionResult, error) {
	distribution, err := f.distributionRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_DISTRIBUTION_FAILED", "Failed to load distribution", err)
	}
	if distribution == nil {
		return nil, NewBusinessErrorf("DISTRIBUTION_NOT_FOUND", "Distribution %d not found", ErrDistributionNotFound, id)
	}

	allocations, err := f.allocationRepo.ByDistribution(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_DISTRIBUTION_FAILED", "Failed to load allocations", err)
	}
	return &DistributionResult{Distribution: distribution, Allocations: allocations}, nil
}

// ExportReport renders a distribution and its allocations as an xlsx workbook
func (f *ProfitDistributionFlowImpl) ExportReport(ctx context.Context, id uint) (string, []byte, error) {
	result, err := f.GetDistribution(ctx, id)
	if err != nil {
		return "", nil, err
	}
	d := result.Distribution

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summary = "summary"
	const allocations = "allocations"
	xl.SetSheetName(xl.GetSheetName(0), summary)
	if _, err := xl.NewSheet(allocations); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create allocations sheet", err)
	}

	summaryRows := [][]string{
		{"uuid", d.UUID.String()},
		{"type", string(d.Type)},
		{"distribution_date", d.DistributionDate.Format(time.DateOnly)},
		{"status", string(d.Status)},
		{"total_profit", d.TotalProfit.StringFixed(utils.MoneyPlaces)},
		{"pool_percentage", d.PoolPercentage.String()},
		{"pool_amount", d.PoolAmount.StringFixed(utils.MoneyPlaces)},
		{"total_distributed", d.TotalDistributed.StringFixed(utils.MoneyPlaces)},
		{"remaining_pool", d.RemainingPool.StringFixed(utils.MoneyPlaces)},
		{"recipient_count", strconv.Itoa(d.RecipientCount)},
		{"created_by", d.CreatedBy},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summary, cell, &row)
	}

	header := []string{"account_id", "tier", "invested_amount", "pool_share", "amount"}
	_ = xl.SetSheetRow(allocations, "A1", &header)
	for i, a := range result.Allocations {
		record := []string{
			strconv.FormatUint(uint64(a.AccountID), 10),
			a.TierName,
			a.InvestedAmount.StringFixed(utils.MoneyPlaces),
			a.PoolShare.String(),
			a.Amount.StringFixed(utils.MoneyPlaces),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(allocations, cell, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("distribution_%s_%s.xlsx", d.Type, d.DistributionDate.Format("20060102"))
	return filename, buf.Bytes(), nil
}
