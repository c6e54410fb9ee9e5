package database_test

import (
	"testing"

	"github.com/justsurfingit/resale-lister/internal/database/dbtest"
	"github.com/justsurfingit/resale-lister/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	db := dbtest.Open(t)

	assert.True(t, db.Migrator().HasTable(&models.Item{}))
	assert.True(t, db.Migrator().HasTable(&models.ItemEvent{}))

	item := models.Item{Input: "lamp", Tags: []string{"mid-century"}}
	require.NoError(t, db.Create(&item).Error)

	var got models.Item
	require.NoError(t, db.First(&got, item.ID).Error)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Equal(t, []string{"mid-century"}, got.Tags)
}
