package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAccount creates an account holding tierName, sponsored by referrerID when non-nil
func (tf *TestFixtures) CreateTestAccount(tierName string, referrerID *uint) (*models.Account, error) {
	id := uuid.New()
	now := utils.UTCNow()
	account := &models.Account{
		UUID:        id,
		Email:       fmt.Sprintf("investor.%s@example.com", id.String()[:8]),
		Name:        "Test Investor",
		ReferrerID:  referrerID,
		TierName:    tierName,
		TierHistory: models.TierHistory{},
		Benefits:    models.JSONMap{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}
	return account, nil
}

// CreateReferralChain creates investor plus one referrer per tier name, each sponsoring the
// previous account. The returned slice starts with the investor; chain[i] is the level-i referrer.
func (tf *TestFixtures) CreateReferralChain(investorTier string, referrerTiers ...string) ([]*models.Account, error) {
	chain := make([]*models.Account, len(referrerTiers)+1)

	// Build from the top so every account can point at an existing sponsor
	var sponsor *uint
	for i := len(referrerTiers) - 1; i >= 0; i-- {
		account, err := tf.CreateTestAccount(referrerTiers[i], sponsor)
		if err != nil {
			return nil, fmt.Errorf("failed to create level %d referrer: %w", i+1, err)
		}
		chain[i+1] = account
		sponsor = &account.ID
	}

	investor, err := tf.CreateTestAccount(investorTier, sponsor)
	if err != nil {
		return nil, fmt.Errorf("failed to create investor: %w", err)
	}
	chain[0] = investor
	return chain, nil
}

// SetReferrer points an existing account at a new sponsor, which may close a cycle
func (tf *TestFixtures) SetReferrer(accountID uint, referrerID *uint) error {
	err := tf.DB.DB.Model(&models.Account{}).Where("id = ?", accountID).Update("referrer_id", referrerID).Error
	if err != nil {
		return fmt.Errorf("failed to set referrer of account %d: %w", accountID, err)
	}
	return nil
}

// CreateTestInvestment creates an active investment placed at createdAt
func (tf *TestFixtures) CreateTestInvestment(accountID uint, amount string, createdAt time.Time) (*models.Investment, error) {
	investment := &models.Investment{
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Status:    models.InvestmentStatusActive,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}

	if err := tf.DB.DB.Create(investment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test investment: %w", err)
	}
	return investment, nil
}

// CreateTestCommission creates a commission row directly, bypassing the commission flow
func (tf *TestFixtures) CreateTestCommission(investment *models.Investment, referrerID uint, level int, amount string, status models.CommissionStatus, createdAt time.Time) (*models.ReferralCommission, error) {
	commission := &models.ReferralCommission{
		ReferrerAccountID:  referrerID,
		ReferredAccountID:  investment.AccountID,
		SourceInvestmentID: investment.ID,
		Type:               models.CommissionTypeMultiLevel,
		Level:              level,
		BaseAmount:         investment.Amount,
		Rate:               decimal.RequireFromString("0.03"),
		Amount:             decimal.RequireFromString(amount),
		Status:             status,
		CreatedAt:          createdAt.UTC(),
		UpdatedAt:          createdAt.UTC(),
	}
	if status == models.CommissionStatusPaid {
		paidAt := createdAt.UTC()
		commission.PaidAt = &paidAt
	}

	if err := tf.DB.DB.Create(commission).Error; err != nil {
		return nil, fmt.Errorf("failed to create test commission: %w", err)
	}
	return commission, nil
}

// SetEarnings overwrites an account's accumulated earnings
func (tf *TestFixtures) SetEarnings(accountID uint, amount string) error {
	err := tf.DB.DB.Model(&models.Account{}).Where("id = ?", accountID).
		Update("accumulated_earnings", decimal.RequireFromString(amount)).Error
	if err != nil {
		return fmt.Errorf("failed to set earnings of account %d: %w", accountID, err)
	}
	return nil
}

// ReloadAccount reads an account back from the database
func (tf *TestFixtures) ReloadAccount(accountID uint) (*models.Account, error) {
	var account models.Account
	if err := tf.DB.DB.First(&account, accountID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload account %d: %w", accountID, err)
	}
	return &account, nil
}
