package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/handlers"
	"github.com/amirphl/Susanoo/app/tasks"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubmitter struct {
	submitted []tasks.Task
	err       error
	units     map[string]*models.WorkUnit
}

func (f *fakeSubmitter) Submit(_ context.Context, task tasks.Task) (*models.WorkUnit, error) {
	f.submitted = append(f.submitted, task)
	if f.err != nil {
		return nil, f.err
	}
	return &models.WorkUnit{
		UUID:        uuid.New(),
		TaskType:    string(task.Type()),
		IdentityKey: task.Identity().Key(),
		Status:      models.WorkUnitStatusPending,
		MaxAttempts: 3,
	}, nil
}

func (f *fakeSubmitter) WorkUnit(_ context.Context, id string) (*models.WorkUnit, error) {
	if unit, ok := f.units[id]; ok {
		return unit, nil
	}
	return nil, businessflow.NewBusinessError("WORK_UNIT_NOT_FOUND", "Work unit not found", businessflow.ErrWorkUnitNotFound)
}

type fakeDistributionFlow struct {
	businessflow.ProfitDistributionFlow
}

func (fakeDistributionFlow) GetDistribution(_ context.Context, id uint) (*businessflow.DistributionResult, error) {
	if id != 1 {
		return nil, businessflow.NewBusinessError("DISTRIBUTION_NOT_FOUND", "Distribution not found", businessflow.ErrDistributionNotFound)
	}
	return &businessflow.DistributionResult{Distribution: &models.ProfitDistribution{ID: 1, Type: models.DistributionTypeAnnual}}, nil
}

func (fakeDistributionFlow) ExportReport(_ context.Context, id uint) (string, []byte, error) {
	return "distribution_annual_20241231.xlsx", []byte("xlsx"), nil
}

type fakeTierFlow struct {
	businessflow.TierUpgradeFlow
}

func (fakeTierFlow) Benefits(_ context.Context, accountID uint) (models.JSONMap, error) {
	return models.JSONMap{"tier": "gold"}, nil
}

func newApp(submitter *fakeSubmitter) *fiber.App {
	logger := zap.NewNop()
	commissions := handlers.NewCommissionHandler(submitter, 500, 7, logger)
	distributions := handlers.NewDistributionHandler(submitter, fakeDistributionFlow{}, logger)
	tiers := handlers.NewTierHandler(submitter, fakeTierFlow{}, 1000, logger)
	workUnits := handlers.NewWorkUnitHandler(submitter, logger)

	app := fiber.New()
	app.Post("/investments/:id/commissions", commissions.ProcessCommissions)
	app.Post("/investments/:id/withdrawals", commissions.ProcessWithdrawal)
	app.Post("/commissions/settle", commissions.SettlePending)
	app.Post("/distributions/annual", distributions.DistributeAnnual)
	app.Post("/distributions/quarterly", distributions.DistributeQuarterlyBonus)
	app.Get("/distributions/:id", distributions.GetDistribution)
	app.Get("/distributions/:id/report", distributions.DownloadReport)
	app.Post("/accounts/:id/tier", tiers.UpgradeAccount)
	app.Post("/tiers/sweep", tiers.Sweep)
	app.Get("/accounts/:id/benefits", tiers.Benefits)
	app.Get("/work-units/:uuid", workUnits.GetWorkUnit)
	return app
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestProcessCommissions(t *testing.T) {
	submitter := &fakeSubmitter{}
	app := newApp(submitter)

	status, body := do(t, app, http.MethodPost, "/investments/42/commissions", "")
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.True(t, body.Success)
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, tasks.ProcessInvestmentCommissions{InvestmentID: 42}, submitter.submitted[0])

	var unit struct {
		IdentityKey string `json:"identity_key"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &unit))
	assert.Equal(t, "process_investment_commissions:42", unit.IdentityKey)
	assert.Equal(t, "pending", unit.Status)

	status, _ = do(t, app, http.MethodPost, "/investments/abc/commissions", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestProcessWithdrawal(t *testing.T) {
	submitter := &fakeSubmitter{}
	app := newApp(submitter)

	status, body := do(t, app, http.MethodPost, "/investments/7/withdrawals", `{"withdrawal_reference":"wd-1","withdrawn_at":"2024-05-01T10:00:00+02:00"}`)
	assert.Equal(t, fiber.StatusAccepted, status, body.Message)
	require.Len(t, submitter.submitted, 1)
	task := submitter.submitted[0].(tasks.ProcessWithdrawalClawback)
	assert.Equal(t, "wd-1", task.WithdrawalReference)
	assert.True(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC).Equal(task.WithdrawnAt))

	status, body = do(t, app, http.MethodPost, "/investments/7/withdrawals", `{"withdrawn_at":"2024-05-01T10:00:00Z"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestSettlePending_Defaults(t *testing.T) {
	submitter := &fakeSubmitter{}
	app := newApp(submitter)

	status, _ := do(t, app, http.MethodPost, "/commissions/settle", "")
	assert.Equal(t, fiber.StatusAccepted, status)
	status, _ = do(t, app, http.MethodPost, "/commissions/settle", `{"batch_size":20,"max_age_days":0}`)
	assert.Equal(t, fiber.StatusAccepted, status)
	status, _ = do(t, app, http.MethodPost, "/commissions/settle", `{"batch_size":20000}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	require.Len(t, submitter.submitted, 2)
	assert.Equal(t, tasks.SettlePendingCommissions{BatchSize: 500, MaxAgeDays: 7}, submitter.submitted[0])
	assert.Equal(t, tasks.SettlePendingCommissions{BatchSize: 20, MaxAgeDays: 0}, submitter.submitted[1])
}

func TestDistributeQuarterlyBonus(t *testing.T) {
	submitter := &fakeSubmitter{}
	app := newApp(submitter)

	status, _ := do(t, app, http.MethodPost, "/distributions/quarterly",
		`{"total_profit":"50000","bonus_pool_percentage":"7.5","distribution_date":"2024-03-31","created_by":"ops"}`)
	assert.Equal(t, fiber.StatusAccepted, status)
	require.Len(t, submitter.submitted, 1)
	task := submitter.submitted[0].(tasks.DistributeQuarterlyBonus)
	assert.True(t, decimal.NewFromInt(50000).Equal(task.TotalProfit))
	assert.True(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC).Equal(task.DistributionDate))

	status, body := do(t, app, http.MethodPost, "/distributions/quarterly",
		`{"total_profit":"50000","bonus_pool_percentage":"7.5","distribution_date":"31/03/2024","created_by":"ops"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestDistributeAnnual_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"conflict", businessflow.NewBusinessError("DISTRIBUTION_ALREADY_EXISTS", "exists", businessflow.ErrDistributionAlreadyExists), fiber.StatusConflict},
		{"validation", businessflow.NewBusinessError("DISTRIBUTION_VALIDATION_FAILED", "negative", businessflow.ErrNegativeProfit), fiber.StatusBadRequest},
		{"invalid task", tasks.ErrInvalidTask, fiber.StatusBadRequest},
		{"transient", context.DeadlineExceeded, fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(&fakeSubmitter{err: tt.err})
			status, body := do(t, app, http.MethodPost, "/distributions/annual",
				`{"total_profit":"1000","distribution_date":"2024-12-31","created_by":"ops"}`)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
		})
	}
}

func TestDistributionReads(t *testing.T) {
	app := newApp(&fakeSubmitter{})

	status, body := do(t, app, http.MethodGet, "/distributions/1", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, body.Success)

	status, body = do(t, app, http.MethodGet, "/distributions/2", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "DISTRIBUTION_NOT_FOUND", body.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/distributions/1/report", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "distribution_annual_20241231.xlsx")
}

func TestTierEndpoints(t *testing.T) {
	submitter := &fakeSubmitter{}
	app := newApp(submitter)

	status, _ := do(t, app, http.MethodPost, "/accounts/5/tier", "")
	assert.Equal(t, fiber.StatusAccepted, status)
	status, _ = do(t, app, http.MethodPost, "/accounts/5/tier", `{"reason":"bored"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = do(t, app, http.MethodPost, "/tiers/sweep", `{"since":"2024-06-01T00:00:00Z"}`)
	assert.Equal(t, fiber.StatusAccepted, status)

	require.Len(t, submitter.submitted, 2)
	assert.Equal(t, tasks.UpgradeAccountTier{AccountID: 5, Reason: models.TierChangeReasonManual}, submitter.submitted[0])
	assert.Equal(t, 1000, submitter.submitted[1].(tasks.SweepTierUpgrades).BatchSize)

	status, body := do(t, app, http.MethodGet, "/accounts/5/benefits", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body.Data), `"tier":"gold"`)
}

func TestGetWorkUnit(t *testing.T) {
	id := uuid.New()
	app := newApp(&fakeSubmitter{units: map[string]*models.WorkUnit{
		id.String(): {UUID: id, TaskType: "settle_pending_commissions", Status: models.WorkUnitStatusSucceeded},
	}})

	status, body := do(t, app, http.MethodGet, "/work-units/"+id.String(), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body.Data), `"status":"succeeded"`)

	status, _ = do(t, app, http.MethodGet, "/work-units/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, http.MethodGet, "/work-units/not-a-uuid", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
