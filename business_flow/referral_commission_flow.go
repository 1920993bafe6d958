package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ChainStop explains why the referrer walk ended
type ChainStop string

const (
	ChainStopMaxDepth        ChainStop = "max_depth"
	ChainStopNoReferrer      ChainStop = "no_referrer"
	ChainStopBrokenReference ChainStop = "broken_reference"
	ChainStopCycle           ChainStop = "cycle"
)

// CommissionResult reports the commissions granted for one investment event
type CommissionResult struct {
	InvestmentID     uint                         `json:"investment_id"`
	AccountID        uint                         `json:"account_id"`
	CorrelationID    uuid.UUID                    `json:"correlation_id"`
	MultiLevel       []*models.ReferralCommission `json:"multi_level"`
	Matrix           []*models.ReferralCommission `json:"matrix"`
	MultiLevelTotal  decimal.Decimal              `json:"multi_level_total"`
	MatrixTotal      decimal.Decimal              `json:"matrix_total"`
	TotalAmount      decimal.Decimal              `json:"total_amount"`
	ChainStop        ChainStop                    `json:"chain_stop,omitempty"`
	AlreadyProcessed bool                         `json:"already_processed"`

	// MatrixReportedTotal is the collaborator's own total; MatrixDropped counts the
	// entries that were not persisted and MatrixDroppedAmount sums their amounts.
	MatrixReportedTotal decimal.Decimal `json:"matrix_reported_total"`
	MatrixDropped       int             `json:"matrix_dropped"`
	MatrixDroppedAmount decimal.Decimal `json:"matrix_dropped_amount"`
}

// ReferralCommissionFlow grants multi-level and matrix commissions for investments
type ReferralCommissionFlow interface {
	ProcessInvestment(ctx context.Context, investmentID uint) (*CommissionResult, error)
}

// ReferralCommissionFlowImpl implements ReferralCommissionFlow
type ReferralCommissionFlowImpl struct {
	accountRepo    repository.AccountRepository
	investmentRepo repository.InvestmentRepository
	commissionRepo repository.ReferralCommissionRepository
	activityRepo   repository.ActivityLogRepository
	classifier     *TierClassifier
	matrix         services.MatrixCommissionCollaborator
	notifier       services.NotificationSink
	logger         *zap.Logger
	db             *gorm.DB
}

// NewReferralCommissionFlow constructs a ReferralCommissionFlow
func NewReferralCommissionFlow(
	accountRepo repository.AccountRepository,
	investmentRepo repository.InvestmentRepository,
	commissionRepo repository.ReferralCommissionRepository,
	activityRepo repository.ActivityLogRepository,
	classifier *TierClassifier,
	matrix services.MatrixCommissionCollaborator,
	notifier services.NotificationSink,
	logger *zap.Logger,
	db *gorm.DB,
) ReferralCommissionFlow {
	if matrix == nil {
		matrix = services.NoopMatrixCollaborator{}
	}
	return &ReferralCommissionFlowImpl{
		accountRepo:    accountRepo,
		investmentRepo: investmentRepo,
		commissionRepo: commissionRepo,
		activityRepo:   activityRepo,
		classifier:     classifier,
		matrix:         matrix,
		notifier:       notifier,
		logger:         logger,
		db:             db,
	}
}

type grantedCommission struct {
	commission *models.ReferralCommission
	referrer   *models.Account
}

// ProcessInvestment walks the owner's referrer chain up to three levels and, concurrently,
// asks the matrix collaborator for its commissions. Both sets are persisted in one transaction.
// Re-processing an investment that already produced commissions returns the stored ones.
func (f *ReferralCommissionFlowImpl) ProcessInvestment(ctx context.Context, investmentID uint) (*CommissionResult, error) {
	investment, err := getInvestment(ctx, f.investmentRepo, investmentID)
	if err != nil {
		return nil, err
	}
	if !investment.IsActive() {
		return nil, NewBusinessErrorf("PROCESS_COMMISSIONS_VALIDATION_FAILED", "Investment %d is %s", ErrInvestmentNotActive, investment.ID, investment.Status)
	}
	if !investment.Amount.IsPositive() {
		return nil, NewBusinessError("PROCESS_COMMISSIONS_VALIDATION_FAILED", "Investment amount must be positive", ErrInvalidInvestmentAmount)
	}

	owner, err := getAccount(ctx, f.accountRepo, investment.AccountID)
	if err != nil {
		return nil, err
	}

	if existing, err := f.existingResult(ctx, investment); err != nil || existing != nil {
		return existing, err
	}

	result := &CommissionResult{
		InvestmentID:  investment.ID,
		AccountID:     owner.ID,
		CorrelationID: uuid.New(),
	}
	var granted []grantedCommission

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var matrixResult *services.MatrixCommissionResult
		g, gctx := errgroup.WithContext(txCtx)
		g.Go(func() error {
			res, err := f.matrix.ComputeMatrixCommissions(gctx, investment)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMatrixCommissionFailed, err)
			}
			if res == nil || !res.Success {
				msg := "unsuccessful result"
				if res != nil && res.Message != "" {
					msg = res.Message
				}
				return fmt.Errorf("%w: %s", ErrMatrixCommissionFailed, msg)
			}
			matrixResult = res
			return nil
		})

		multi, stop, walkErr := f.grantMultiLevel(txCtx, investment, owner, result.CorrelationID)
		if err := g.Wait(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		result.ChainStop = stop

		matrix, err := f.grantMatrix(txCtx, investment, owner, matrixResult, result)
		if err != nil {
			return err
		}

		granted = append(multi, matrix...)
		return nil
	})
	if err != nil {
		f.logger.Error("commission processing failed",
			zap.Uint("investment_id", investment.ID),
			zap.Uint("account_id", owner.ID),
			zap.Error(err),
		)
		return nil, NewBusinessError("PROCESS_COMMISSIONS_FAILED", "Failed to process investment commissions", err)
	}

	for _, g := range granted {
		result.add(g.commission)
	}
	if matrixGap := result.MatrixReportedTotal.Sub(result.MatrixTotal); !matrixGap.IsZero() {
		f.logger.Warn("matrix commissions differ from collaborator total",
			zap.Uint("investment_id", investment.ID),
			zap.String("reported_total", result.MatrixReportedTotal.String()),
			zap.String("persisted_total", result.MatrixTotal.String()),
			zap.Int("dropped", result.MatrixDropped),
			zap.String("dropped_amount", result.MatrixDroppedAmount.String()),
		)
	}

	for _, g := range granted {
		services.Deliver(ctx, f.notifier, f.logger, services.AccountRecipient(g.referrer.ID, g.referrer.Email),
			services.NewEvent(services.EventCommissionEarned, "You earned a referral commission", map[string]any{
				"commission_id": g.commission.ID,
				"type":          g.commission.Type,
				"level":         g.commission.Level,
				"amount":        g.commission.Amount.StringFixed(utils.MoneyPlaces),
				"investment_id": investment.ID,
			}))
	}

	f.logger.Info("investment commissions processed",
		zap.Uint("investment_id", investment.ID),
		zap.Int("multi_level_count", len(result.MultiLevel)),
		zap.Int("matrix_count", len(result.Matrix)),
		zap.String("total_amount", result.TotalAmount.String()),
		zap.String("chain_stop", string(result.ChainStop)),
	)

	return result, nil
}

func (f *ReferralCommissionFlowImpl) existingResult(ctx context.Context, investment *models.Investment) (*CommissionResult, error) {
	multi, err := f.commissionRepo.ByInvestment(ctx, investment.ID, models.CommissionTypeMultiLevel)
	if err != nil {
		return nil, err
	}
	matrix, err := f.commissionRepo.ByInvestment(ctx, investment.ID, models.CommissionTypeMatrix)
	if err != nil {
		return nil, err
	}
	if len(multi) == 0 && len(matrix) == 0 {
		return nil, nil
	}

	result := &CommissionResult{InvestmentID: investment.ID, AccountID: investment.AccountID, AlreadyProcessed: true}
	for _, c := range append(multi, matrix...) {
		result.CorrelationID = c.CorrelationID
		result.add(c)
	}
	return result, nil
}

func (r *CommissionResult) add(c *models.ReferralCommission) {
	switch c.Type {
	case models.CommissionTypeMultiLevel:
		r.MultiLevel = append(r.MultiLevel, c)
		r.MultiLevelTotal = r.MultiLevelTotal.Add(c.Amount)
	case models.CommissionTypeMatrix:
		r.Matrix = append(r.Matrix, c)
		r.MatrixTotal = r.MatrixTotal.Add(c.Amount)
	}
	r.TotalAmount = r.MultiLevelTotal.Add(r.MatrixTotal)
}

// grantMultiLevel walks at most MaxReferralLevel referrers. Ineligible referrers are
// skipped but the walk continues past them. A missing referrer or a repeated account
// ends the walk and keeps what was granted so far.
func (f *ReferralCommissionFlowImpl) grantMultiLevel(ctx context.Context, investment *models.Investment, owner *models.Account, correlationID uuid.UUID) ([]grantedCommission, ChainStop, error) {
	var granted []grantedCommission
	visited := map[uint]bool{owner.ID: true}
	current := owner

	for level := 1; level <= models.MaxReferralLevel; level++ {
		if current.ReferrerID == nil {
			return granted, ChainStopNoReferrer, nil
		}
		referrerID := *current.ReferrerID
		if visited[referrerID] {
			f.logger.Warn("referrer chain cycle detected",
				zap.Uint("investment_id", investment.ID),
				zap.Uint("account_id", referrerID),
				zap.Int("level", level),
			)
			return granted, ChainStopCycle, nil
		}

		referrer, err := f.accountRepo.ByID(ctx, referrerID)
		if err != nil {
			return nil, "", err
		}
		if referrer == nil {
			f.logger.Warn("referrer chain broken",
				zap.Uint("investment_id", investment.ID),
				zap.Uint("missing_account_id", referrerID),
				zap.Int("level", level),
			)
			return granted, ChainStopBrokenReference, nil
		}
		visited[referrer.ID] = true

		tier, ok := f.classifier.Tier(referrer.TierName)
		if ok {
			if rate, eligible := tier.RateForLevel(level); eligible {
				amount := utils.TruncMoney(investment.Amount.Mul(rate))
				if amount.IsPositive() {
					commission := &models.ReferralCommission{
						CorrelationID:      correlationID,
						ReferrerAccountID:  referrer.ID,
						ReferredAccountID:  owner.ID,
						SourceInvestmentID: investment.ID,
						Type:               models.CommissionTypeMultiLevel,
						Level:              level,
						BaseAmount:         investment.Amount,
						Rate:               rate,
						Amount:             amount,
						TierName:           tier.Name,
						Status:             models.CommissionStatusPending,
					}
					if err := f.credit(ctx, commission, referrer); err != nil {
						return nil, "", err
					}
					granted = append(granted, grantedCommission{commission: commission, referrer: referrer})
				}
			}
		}

		current = referrer
	}

	return granted, ChainStopMaxDepth, nil
}

// grantMatrix persists the collaborator's commissions. Entries naming unknown accounts or a
// level outside 1..MaxReferralLevel are dropped and counted on result.
func (f *ReferralCommissionFlowImpl) grantMatrix(ctx context.Context, investment *models.Investment, owner *models.Account, res *services.MatrixCommissionResult, result *CommissionResult) ([]grantedCommission, error) {
	if res == nil {
		return nil, nil
	}
	result.MatrixReportedTotal = res.TotalAmount

	var granted []grantedCommission
	drop := func(mc services.MatrixCommission, amount decimal.Decimal, reason string) {
		result.MatrixDropped++
		result.MatrixDroppedAmount = result.MatrixDroppedAmount.Add(amount)
		f.logger.Warn("matrix commission dropped",
			zap.Uint("investment_id", investment.ID),
			zap.Uint("account_id", mc.ReferrerAccountID),
			zap.Int("level", mc.Level),
			zap.String("amount", amount.String()),
			zap.String("reason", reason),
		)
	}
	for _, mc := range res.Commissions {
		amount := utils.TruncMoney(mc.Amount)
		if !amount.IsPositive() {
			continue
		}
		if mc.ReferrerAccountID == 0 {
			drop(mc, amount, "missing_account")
			continue
		}
		if mc.Level < 1 || mc.Level > models.MaxReferralLevel {
			drop(mc, amount, "level_out_of_range")
			continue
		}
		referrer, err := f.accountRepo.ByID(ctx, mc.ReferrerAccountID)
		if err != nil {
			return nil, err
		}
		if referrer == nil {
			drop(mc, amount, "unknown_account")
			continue
		}

		commission := &models.ReferralCommission{
			CorrelationID:      result.CorrelationID,
			ReferrerAccountID:  referrer.ID,
			ReferredAccountID:  owner.ID,
			SourceInvestmentID: investment.ID,
			Type:               models.CommissionTypeMatrix,
			Level:              mc.Level,
			BaseAmount:         investment.Amount,
			Rate:               mc.Rate,
			Amount:             amount,
			TierName:           referrer.TierName,
			Status:             models.CommissionStatusPending,
		}
		if err := f.credit(ctx, commission, referrer); err != nil {
			return nil, err
		}
		granted = append(granted, grantedCommission{commission: commission, referrer: referrer})
	}
	return granted, nil
}

// credit stores a commission, grants it to the referrer's earnings and logs the activity
func (f *ReferralCommissionFlowImpl) credit(ctx context.Context, commission *models.ReferralCommission, referrer *models.Account) error {
	now := utils.UTCNow()
	commission.CreatedAt = now
	commission.UpdatedAt = now

	if err := f.commissionRepo.Save(ctx, commission); err != nil {
		return err
	}
	if err := f.accountRepo.UpdateEarnings(ctx, referrer.ID, commission.Amount); err != nil {
		return err
	}

	desc := fmt.Sprintf("Earned %s %s commission (level %d) on investment %d",
		commission.Amount.StringFixed(utils.MoneyPlaces), commission.Type, commission.Level, commission.SourceInvestmentID)
	return appendActivity(ctx, f.activityRepo, referrer.ID, models.ActivityActionCommissionEarned, desc, &commission.Amount, models.JSONMap{
		"commission_uuid": commission.UUID.String(),
		"investment_id":   commission.SourceInvestmentID,
		"level":           commission.Level,
		"rate":            commission.Rate.String(),
	})
}
