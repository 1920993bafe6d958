package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMatrixClient(t *testing.T) {
	var got matrixRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/matrix/commissions", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"commissions":[{"referrer_account_id":9,"level":1,"rate":"0.01","amount":"10"}],"total_amount":"10"}`))
	}))
	defer server.Close()

	client := NewHTTPMatrixClient(server.URL, "secret", time.Second)
	investment := &models.Investment{ID: 4, UUID: uuid.New(), AccountID: 2, Amount: decimal.NewFromInt(1000)}

	result, err := client.ComputeMatrixCommissions(context.Background(), investment)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Commissions, 1)
	assert.Equal(t, uint(9), result.Commissions[0].ReferrerAccountID)
	assert.True(t, decimal.NewFromInt(10).Equal(result.TotalAmount))

	assert.Equal(t, uint(4), got.InvestmentID)
	assert.Equal(t, investment.UUID.String(), got.InvestmentUUID)
	assert.True(t, investment.Amount.Equal(got.Amount))
}

func TestHTTPMatrixClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPMatrixClient(server.URL, "", 0)
	_, err := client.ComputeMatrixCommissions(context.Background(), &models.Investment{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNoopMatrixCollaborator(t *testing.T) {
	result, err := NoopMatrixCollaborator{}.ComputeMatrixCommissions(context.Background(), &models.Investment{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Commissions)
}

func TestHTTPMatrixClient_UnencodableRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewHTTPMatrixClient(server.URL, "", time.Second)
	investment := &models.Investment{
		ID:        1,
		Amount:    decimal.NewFromInt(100),
		CreatedAt: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	_, err := client.ComputeMatrixCommissions(context.Background(), investment)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode matrix request")
	assert.False(t, called)
}
