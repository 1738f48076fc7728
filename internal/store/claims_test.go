package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
)

func TestCreateAndGetClaim(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, model.ItemAttrs{Name: "Smartphone", ImagePath: "/uploads/phone.jpg"}, "", true, time.Now())

	claim, err := CreateClaim(ctx, database, item.ID, nil, "alice", "It has my initials on the case", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPending, claim.Status)
	assert.Equal(t, "Smartphone", claim.ItemName)
	assert.Equal(t, "/uploads/phone.jpg", claim.ItemImage)
	assert.Nil(t, claim.UpdatedAt, "pending claims have no decision time")
}

func TestDecideClaimOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, model.ItemAttrs{Name: "Keys"}, "", true, time.Now())
	claim, err := CreateClaim(ctx, database, item.ID, nil, "alice", "", time.Now())
	require.NoError(t, err)

	at := time.Now()
	decided, err := DecideClaim(ctx, database, claim.ID, model.ClaimStatusAccepted, "admin", "ID checked", at)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusAccepted, decided.Status)
	assert.Equal(t, "admin", decided.Admin)
	assert.Equal(t, "ID checked", decided.DecisionNote)
	require.NotNil(t, decided.UpdatedAt)
	assert.True(t, decided.UpdatedAt.Equal(at))

	_, err = DecideClaim(ctx, database, claim.ID, model.ClaimStatusRejected, "other", "changed my mind", time.Now())
	require.True(t, apperr.Is(err, apperr.KindInvalidState), "got %v", err)

	got, err := GetClaim(ctx, database, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusAccepted, got.Status)
	assert.Equal(t, "admin", got.Admin)
	assert.Equal(t, "ID checked", got.DecisionNote)
	assert.True(t, got.UpdatedAt.Equal(at))
}

func TestDecideClaimNotFound(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := DecideClaim(context.Background(), database, 404, model.ClaimStatusRejected, "admin", "", time.Now())
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestListClaimsByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	item, _ := CreateItem(ctx, database, model.ItemAttrs{Name: "Keys"}, "", true, now)
	c1, err := CreateClaim(ctx, database, item.ID, nil, "alice", "", now)
	require.NoError(t, err)
	_, err = CreateClaim(ctx, database, item.ID, nil, "bob", "", now.Add(time.Second))
	require.NoError(t, err)
	_, err = DecideClaim(ctx, database, c1.ID, model.ClaimStatusRejected, "admin", "", now)
	require.NoError(t, err)

	all, err := ListClaims(ctx, database, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bob", all[0].Student, "newest first")

	pending, err := ListClaims(ctx, database, model.ClaimStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bob", pending[0].Student)

	rejected, err := ListClaims(ctx, database, model.ClaimStatusRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, c1.ID, rejected[0].ID)
}
