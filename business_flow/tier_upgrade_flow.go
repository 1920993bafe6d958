package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TierUpgradeResult reports the reclassification of one account
type TierUpgradeResult struct {
	AccountID       uint                      `json:"account_id"`
	FromTier        string                    `json:"from_tier"`
	ToTier          string                    `json:"to_tier"`
	TotalInvestment decimal.Decimal           `json:"total_investment"`
	Changed         bool                      `json:"changed"`
	IsDowngrade     bool                      `json:"is_downgrade"`
	Record          *models.TierUpgradeRecord `json:"record,omitempty"`
	Benefits        models.JSONMap            `json:"benefits,omitempty"`
}

// TierSweepResult reports a batch reclassification
type TierSweepResult struct {
	Since    time.Time            `json:"since"`
	Scanned  int                  `json:"scanned"`
	Changed  int                  `json:"changed"`
	Failed   int                  `json:"failed"`
	Results  []*TierUpgradeResult `json:"results"`
	Failures map[uint]string      `json:"failures,omitempty"`
}

// TierUpgradeFlow keeps stored tiers in line with investment totals
type TierUpgradeFlow interface {
	Upgrade(ctx context.Context, accountID uint, reason models.TierChangeReason) (*TierUpgradeResult, error)
	SweepRecent(ctx context.Context, since time.Time, batchSize int) (*TierSweepResult, error)
	Benefits(ctx context.Context, accountID uint) (models.JSONMap, error)
}

// TierUpgradeFlowImpl implements TierUpgradeFlow
type TierUpgradeFlowImpl struct {
	accountRepo    repository.AccountRepository
	investmentRepo repository.InvestmentRepository
	upgradeRepo    repository.TierUpgradeRecordRepository
	activityRepo   repository.ActivityLogRepository
	classifier     *TierClassifier
	notifier       services.NotificationSink
	logger         *zap.Logger
	db             *gorm.DB
}

// NewTierUpgradeFlow constructs a TierUpgradeFlow
func NewTierUpgradeFlow(
	accountRepo repository.AccountRepository,
	investmentRepo repository.InvestmentRepository,
	upgradeRepo repository.TierUpgradeRecordRepository,
	activityRepo repository.ActivityLogRepository,
	classifier *TierClassifier,
	notifier services.NotificationSink,
	logger *zap.Logger,
	db *gorm.DB,
) TierUpgradeFlow {
	return &TierUpgradeFlowImpl{
		accountRepo:    accountRepo,
		investmentRepo: investmentRepo,
		upgradeRepo:    upgradeRepo,
		activityRepo:   activityRepo,
		classifier:     classifier,
		notifier:       notifier,
		logger:         logger,
		db:             db,
	}
}

// Upgrade reclassifies one account from its active investment total. A change of tier
// stores the new tier, appends history and a TierUpgradeRecord, and refreshes the benefit cache.
func (f *TierUpgradeFlowImpl) Upgrade(ctx context.Context, accountID uint, reason models.TierChangeReason) (*TierUpgradeResult, error) {
	if _, err := getAccount(ctx, f.accountRepo, accountID); err != nil {
		return nil, err
	}

	var result *TierUpgradeResult
	var account *models.Account
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		account, err = getAccount(txCtx, f.accountRepo, accountID)
		if err != nil {
			return err
		}
		result, err = f.reclassify(txCtx, account, reason)
		return err
	})
	if err != nil {
		f.logger.Error("tier reclassification failed",
			zap.Uint("account_id", accountID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return nil, NewBusinessError("TIER_UPGRADE_FAILED", "Failed to reclassify account tier", err)
	}

	if result.Changed {
		f.notifyChange(ctx, account, result)
	}
	return result, nil
}

// SweepRecent reclassifies up to batchSize accounts that invested since the given instant.
// Each account runs in its own transaction; one failure does not stop the sweep.
func (f *TierUpgradeFlowImpl) SweepRecent(ctx context.Context, since time.Time, batchSize int) (*TierSweepResult, error) {
	if batchSize <= 0 || batchSize > utils.MaxSettlementBatchSize {
		return nil, NewBusinessErrorf("TIER_SWEEP_VALIDATION_FAILED", "Batch size must be between 1 and %d", ErrInvalidBatchSize, utils.MaxSettlementBatchSize)
	}

	accounts, err := f.accountRepo.ListWithInvestmentsSince(ctx, since, batchSize)
	if err != nil {
		return nil, NewBusinessError("TIER_SWEEP_FAILED", "Failed to list recently active accounts", err)
	}

	sweep := &TierSweepResult{Since: since, Scanned: len(accounts)}
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return sweep, err
		}

		res, err := f.Upgrade(ctx, account.ID, models.TierChangeReasonSweep)
		if err != nil {
			sweep.Failed++
			if sweep.Failures == nil {
				sweep.Failures = make(map[uint]string)
			}
			sweep.Failures[account.ID] = err.Error()
			continue
		}
		if res.Changed {
			sweep.Changed++
		}
		sweep.Results = append(sweep.Results, res)
	}

	f.logger.Info("tier sweep finished",
		zap.Time("since", since),
		zap.Int("scanned", sweep.Scanned),
		zap.Int("changed", sweep.Changed),
		zap.Int("failed", sweep.Failed),
	)
	return sweep, nil
}

// Benefits returns the cached benefit snapshot, deriving it from the stored tier when absent
func (f *TierUpgradeFlowImpl) Benefits(ctx context.Context, accountID uint) (models.JSONMap, error) {
	account, err := getAccount(ctx, f.accountRepo, accountID)
	if err != nil {
		return nil, err
	}
	if len(account.Benefits) > 0 {
		return account.Benefits, nil
	}
	tier, _ := f.classifier.Tier(account.TierName)
	return tier.Benefits(), nil
}

func (f *TierUpgradeFlowImpl) reclassify(ctx context.Context, account *models.Account, reason models.TierChangeReason) (*TierUpgradeResult, error) {
	total, err := f.investmentRepo.SumActiveByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if !total.Equal(account.TotalInvestment) {
		if err := f.accountRepo.UpdateTotalInvestment(ctx, account.ID, total); err != nil {
			return nil, err
		}
	}

	target := f.classifier.Classify(total)
	result := &TierUpgradeResult{
		AccountID:       account.ID,
		FromTier:        account.TierName,
		ToTier:          target.Name,
		TotalInvestment: total,
	}
	if target.Name == account.TierName {
		return result, nil
	}

	now := utils.UTCNow()
	current, _ := f.classifier.Tier(account.TierName)
	benefits := target.Benefits()
	entry := models.TierHistoryEntry{
		FromTier:        account.TierName,
		ToTier:          target.Name,
		TotalInvestment: total,
		ChangedAt:       now,
	}
	if err := f.accountRepo.UpgradeTier(ctx, account.ID, target.Name, entry, benefits); err != nil {
		return nil, err
	}

	record := &models.TierUpgradeRecord{
		AccountID:       account.ID,
		FromTier:        account.TierName,
		ToTier:          target.Name,
		TotalInvestment: total,
		Reason:          reason,
		IsDowngrade:     target.Rank < current.Rank,
		ProcessedAt:     now,
	}
	if err := f.upgradeRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Tier changed from %s to %s at total investment %s",
		tierLabel(account.TierName), tierLabel(target.Name), total.StringFixed(utils.MoneyPlaces))
	if err := appendActivity(ctx, f.activityRepo, account.ID, models.ActivityActionTierChanged, desc, nil, models.JSONMap{
		"from_tier": account.TierName,
		"to_tier":   target.Name,
		"reason":    string(reason),
	}); err != nil {
		return nil, err
	}

	result.Changed = true
	result.IsDowngrade = record.IsDowngrade
	result.Record = record
	result.Benefits = benefits
	return result, nil
}

func (f *TierUpgradeFlowImpl) notifyChange(ctx context.Context, account *models.Account, result *TierUpgradeResult) {
	subject := fmt.Sprintf("Your tier is now %s", tierLabel(result.ToTier))
	services.Deliver(ctx, f.notifier, f.logger, services.AccountRecipient(account.ID, account.Email),
		services.NewEvent(services.EventTierUpgraded, subject, map[string]any{
			"from_tier":        result.FromTier,
			"to_tier":          result.ToTier,
			"total_investment": result.TotalInvestment.StringFixed(utils.MoneyPlaces),
			"is_downgrade":     result.IsDowngrade,
		}))

	f.logger.Info("account tier changed",
		zap.Uint("account_id", account.ID),
		zap.String("from_tier", result.FromTier),
		zap.String("to_tier", result.ToTier),
		zap.Bool("is_downgrade", result.IsDowngrade),
	)
}

func tierLabel(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
