package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementRequest bounds one settlement batch
type SettlementRequest struct {
	BatchSize  int
	MaxAgeDays int
}

// SettlementResult reports one settlement batch
type SettlementResult struct {
	ProcessedCount int             `json:"processed_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Cutoff         time.Time       `json:"cutoff"`
	SettledAt      time.Time       `json:"settled_at"`
	CommissionIDs  []uint          `json:"commission_ids"`
}

// SettlementFlow moves aged pending commissions to paid
type SettlementFlow interface {
	SettlePending(ctx context.Context, req SettlementRequest) (*SettlementResult, error)
}

// SettlementFlowImpl implements SettlementFlow
type SettlementFlowImpl struct {
	commissionRepo repository.ReferralCommissionRepository
	logger         *zap.Logger
	db             *gorm.DB
}

// NewSettlementFlow constructs a SettlementFlow
func NewSettlementFlow(commissionRepo repository.ReferralCommissionRepository, logger *zap.Logger, db *gorm.DB) SettlementFlow {
	return &SettlementFlowImpl{
		commissionRepo: commissionRepo,
		logger:         logger,
		db:             db,
	}
}

// SettlePending settles at most BatchSize pending commissions created more than MaxAgeDays ago.
// Re-running is safe since only pending rows are selected.
func (f *SettlementFlowImpl) SettlePending(ctx context.Context, req SettlementRequest) (*SettlementResult, error) {
	if req.BatchSize <= 0 || req.BatchSize > utils.MaxSettlementBatchSize {
		return nil, NewBusinessErrorf("SETTLE_PENDING_VALIDATION_FAILED", "Batch size must be between 1 and %d", ErrInvalidBatchSize, utils.MaxSettlementBatchSize)
	}
	if req.MaxAgeDays < 0 {
		return nil, NewBusinessError("SETTLE_PENDING_VALIDATION_FAILED", "Max age days must not be negative", ErrInvalidMaxAgeDays)
	}

	now := utils.UTCNow()
	result := &SettlementResult{
		Cutoff:    utils.DaysAgo(now, req.MaxAgeDays),
		SettledAt: now,
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		commissions, err := f.commissionRepo.ListSettleable(txCtx, result.Cutoff, req.BatchSize)
		if err != nil {
			return err
		}
		if len(commissions) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(commissions))
		total := decimal.Zero
		for _, c := range commissions {
			if !c.MarkAsPaid(now) {
				continue
			}
			ids = append(ids, c.ID)
			total = total.Add(c.Amount)
		}

		affected, err := f.commissionRepo.MarkPaid(txCtx, ids, now)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return fmt.Errorf("%w: expected %d rows, settled %d", ErrSettlementRaced, len(ids), affected)
		}

		result.ProcessedCount = len(ids)
		result.TotalAmount = total
		result.CommissionIDs = ids
		return nil
	})
	if err != nil {
		f.logger.Error("commission settlement failed",
			zap.Int("batch_size", req.BatchSize),
			zap.Int("max_age_days", req.MaxAgeDays),
			zap.Error(err),
		)
		return nil, NewBusinessError("SETTLE_PENDING_FAILED", "Failed to settle pending commissions", err)
	}

	f.logger.Info("pending commissions settled",
		zap.Int("processed_count", result.ProcessedCount),
		zap.String("total_amount", result.TotalAmount.String()),
		zap.Time("cutoff", result.Cutoff),
	)

	return result, nil
}
