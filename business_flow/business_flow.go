package businessflow

import (
	"context"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/shopspring/decimal"
)

func getAccount(ctx context.Context, repo repository.AccountRepository, id uint) (*models.Account, error) {
	account, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, NewBusinessErrorf("ACCOUNT_NOT_FOUND", "Account %d not found", ErrAccountNotFound, id)
	}
	return account, nil
}

func getInvestment(ctx context.Context, repo repository.InvestmentRepository, id uint) (*models.Investment, error) {
	investment, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if investment == nil {
		return nil, NewBusinessErrorf("INVESTMENT_NOT_FOUND", "Investment %d not found", ErrInvestmentNotFound, id)
	}
	return investment, nil
}

// appendActivity writes one account activity entry; amount may be nil
func appendActivity(ctx context.Context, repo repository.ActivityLogRepository, accountID uint, action, description string, amount *decimal.Decimal, metadata models.JSONMap) error {
	entry := &models.ActivityLog{
		AccountID:   accountID,
		Action:      action,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   utils.UTCNow(),
	}
	if amount != nil {
		entry.Amount = decimal.NullDecimal{Decimal: *amount, Valid: true}
	}
	return repo.Save(ctx, entry)
}
