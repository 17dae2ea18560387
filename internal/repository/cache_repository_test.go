package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientIsEmpty(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var settings models.SchoolSettings
	assert.ErrorIs(t, repo.Get(ctx, "settings", &settings), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "settings", models.SchoolSettings{IndexNumberPadding: 4}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "settings*"))
	assert.NoError(t, repo.Close())
}
