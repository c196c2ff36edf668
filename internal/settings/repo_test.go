package settings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:settings_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestRepositoryUpsertAndList(t *testing.T) {
	db := setupSettingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, KeySupportContact, "@support"))
	require.NoError(t, repo.Upsert(ctx, KeyAdminChannel, "-100123"))
	require.NoError(t, repo.Upsert(ctx, KeySupportContact, "@newsupport"))

	row, err := repo.Get(ctx, KeySupportContact)
	require.NoError(t, err)
	require.Equal(t, "@newsupport", row.Value)

	rows, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, KeyAdminChannel, rows[0].Key)
}

func TestRepositoryGetMissing(t *testing.T) {
	db := setupSettingsTestDB(t)
	repo := NewRepository(db)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
