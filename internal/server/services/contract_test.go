package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractService_CreateUpdateHistory(t *testing.T) {
	env := newTestEnv(t)
	s := NewContractService(env.deps)
	ctx := context.Background()
	env.expectTx(2)

	royalty := 12.5
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err := s.Create(ctx, 3, &models.Contract{ArtistID: 1, Type: models.ContractExclusive, StartDate: start, Cost: 5000},
		&models.ContractDocument{
			Clauses:        []string{"exclusivity"},
			FinancialTerms: &models.FinancialTerms{RoyaltyPercent: &royalty, Currency: "USD"},
		})
	require.NoError(t, err)
	require.Len(t, v.Document.History, 1)
	assert.Equal(t, int64(3), v.Document.History[0].ByUserID)

	cost := 6000.0
	updated, err := s.Update(ctx, 4, v.ID, models.ContractPatch{Cost: &cost}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, updated.Cost)
	require.Len(t, updated.Document.History, 2)
	assert.Equal(t, "updated cost", updated.Document.History[1].Description)
	assert.Equal(t, []string{"exclusivity"}, updated.Document.Clauses)
	assert.Equal(t, 12.5, *updated.Document.FinancialTerms.RoyaltyPercent)
	env.verify(t)
}

func TestContractService_Validation(t *testing.T) {
	env := newTestEnv(t)
	s := NewContractService(env.deps)
	ctx := context.Background()
	start := time.Now()
	end := start.AddDate(0, 0, -1)

	_, err := s.Create(ctx, 1, &models.Contract{ArtistID: 1, Type: "Verbal", StartDate: start}, nil)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Create(ctx, 1, &models.Contract{ArtistID: 1, Type: models.ContractLicense, StartDate: start, EndDate: &end}, nil)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, _, err = s.Expiring(ctx, 0, models.NewPageRequest(1, 10))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestContractService_Expiring(t *testing.T) {
	env := newTestEnv(t)
	s := NewContractService(env.deps)
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.AddDate(-1, 0, 0)
	env.expectTx(3)

	for _, days := range []int{10, 60} {
		end := now.AddDate(0, 0, days)
		_, err := s.Create(ctx, 1, &models.Contract{ArtistID: 1, Type: models.ContractStandard, StartDate: start, EndDate: &end}, nil)
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, 1, &models.Contract{ArtistID: 1, Type: models.ContractStandard, StartDate: start}, nil)
	require.NoError(t, err)

	items, total, err := s.Expiring(ctx, 30, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.True(t, items[0].EndDate.Before(now.AddDate(0, 0, 30)))
	env.verify(t)
}
