package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/model"
	"skim/backend/internal/repository"
	"skim/backend/internal/repository/testutil"
	"skim/backend/internal/service"
)

func newFilterService(t *testing.T) (service.FilterService, int64) {
	t.Helper()
	database := testutil.NewTestDB(t)
	svc := service.NewFilterService(repository.NewFilterRepository(database))
	userID := testutil.SeedUser(t, database, "reader")
	return svc, userID
}

func TestFilterService_CreateAndGet(t *testing.T) {
	svc, userID := newFilterService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, model.Filter{
		UserID:       userID,
		Title:        "k8s digest",
		Enabled:      true,
		MatchAnyRule: true,
		Rules: []model.FilterRule{
			{Type: model.RuleTitle, Pattern: "kubernetes"},
			{Type: model.RuleTag, Pattern: "^infra$"},
		},
		Actions: []model.FilterAction{
			{Type: model.ActionScore, Param: "10"},
			{Type: model.ActionTag, Param: "k8s", OrderID: 1},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "k8s digest", fetched.Title)
	require.Len(t, fetched.Rules, 2)
	require.Len(t, fetched.Actions, 2)
	require.True(t, fetched.MatchAnyRule)
}

func TestFilterService_CreateValidation(t *testing.T) {
	svc, userID := newFilterService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter model.Filter
	}{
		{
			name:   "empty title",
			filter: model.Filter{UserID: userID, Title: "   "},
		},
		{
			name: "unknown rule type",
			filter: model.Filter{UserID: userID, Title: "f", Rules: []model.FilterRule{
				{Type: "regexp", Pattern: "x"},
			}},
		},
		{
			name: "empty rule pattern",
			filter: model.Filter{UserID: userID, Title: "f", Rules: []model.FilterRule{
				{Type: model.RuleTitle, Pattern: "  "},
			}},
		},
		{
			name: "unknown action type",
			filter: model.Filter{UserID: userID, Title: "f", Actions: []model.FilterAction{
				{Type: "explode"},
			}},
		},
		{
			name: "score action with non-numeric param",
			filter: model.Filter{UserID: userID, Title: "f", Actions: []model.FilterAction{
				{Type: model.ActionScore, Param: "lots"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.filter)
			require.ErrorIs(t, err, service.ErrInvalid)
		})
	}
}

func TestFilterService_Delete(t *testing.T) {
	svc, userID := newFilterService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, model.Filter{UserID: userID, Title: "temp"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, created.ID), service.ErrNotFound)
}
