package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{
		Username:     "ravi",
		Email:        "  Ravi@Example.com ",
		PasswordHash: "$2a$10$hash",
		Phone:        "9123456780",
		State:        "Maharashtra",
		City:         "Pune",
	}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, "ravi@example.com", user.Email)

	byEmail, err := db.GetUserByEmail(ctx, "RAVI@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "$2a$10$hash", byEmail.PasswordHash)

	byID, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", byID.City)

	dup := *user
	dup.ID = 0
	assert.ErrorIs(t, db.CreateUser(ctx, &dup), domain.ErrEmailTaken)

	_, err = db.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
