package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/shopspring/decimal"
)

// MatrixCommission is one payout computed by the matrix placement service
type MatrixCommission struct {
	ReferrerAccountID uint            `json:"referrer_account_id"`
	Level             int             `json:"level"`
	Rate              decimal.Decimal `json:"rate"`
	Amount            decimal.Decimal `json:"amount"`
}

// MatrixCommissionResult is the settlement contract of the matrix placement service
type MatrixCommissionResult struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message,omitempty"`
	Commissions []MatrixCommission `json:"commissions"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

// MatrixCommissionCollaborator computes spillover matrix commissions for one investment
type MatrixCommissionCollaborator interface {
	ComputeMatrixCommissions(ctx context.Context, investment *models.Investment) (*MatrixCommissionResult, error)
}

// NoopMatrixCollaborator is used when no matrix service is configured
type NoopMatrixCollaborator struct{}

func (NoopMatrixCollaborator) ComputeMatrixCommissions(_ context.Context, _ *models.Investment) (*MatrixCommissionResult, error) {
	return &MatrixCommissionResult{Success: true, TotalAmount: decimal.Zero}, nil
}

type matrixRequest struct {
	InvestmentID   uint            `json:"investment_id"`
	InvestmentUUID string          `json:"investment_uuid"`
	AccountID      uint            `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

type httpMatrixClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPMatrixClient talks to the matrix placement service over JSON/HTTP
func NewHTTPMatrixClient(baseURL, apiKey string, timeout time.Duration) MatrixCommissionCollaborator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpMatrixClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *httpMatrixClient) ComputeMatrixCommissions(ctx context.Context, investment *models.Investment) (*MatrixCommissionResult, error) {
	url := c.baseURL + "/api/v1/matrix/commissions"
	payload, err := json.Marshal(matrixRequest{
		InvestmentID:   investment.ID,
		InvestmentUUID: investment.UUID.String(),
		AccountID:      investment.AccountID,
		Amount:         investment.Amount,
		CreatedAt:      investment.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode matrix request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("matrix commissions http status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result MatrixCommissionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON into MatrixCommissionResult: %w", err)
	}
	return &result, nil
}
