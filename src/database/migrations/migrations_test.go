package migrations

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"signalrelay/src/model"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRunOnceAppliesOnce(t *testing.T) {
	db := openMemoryDB(t)

	calls := 0
	fn := func(tx *gorm.DB) error {
		calls++
		return nil
	}
	require.NoError(t, RunOnce(db, "00042_test", fn))
	require.NoError(t, RunOnce(db, "00042_test", fn))
	assert.Equal(t, 1, calls)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "00042_test").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRunOnceFailureIsNotRecorded(t *testing.T) {
	db := openMemoryDB(t)

	err := RunOnce(db, "00043_fails", func(tx *gorm.DB) error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assert.Error(t, RunOnce(db, "", func(tx *gorm.DB) error { return nil }))
	assert.Error(t, RunOnce(db, "00044_nil", nil))
	assert.NoError(t, RunOnce(nil, "00045_nil_db", nil))
}

func TestNormalizeStrategyStatus(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, db.AutoMigrate(&model.Strategy{}))

	for i, status := range []string{"active", "ACTIVE", "Active", "running", "", "Inactive"} {
		s := model.Strategy{Name: fmt.Sprintf("s%d", i), RiskPercentage: 1, AccountID: "1", Password: "x", Server: "srv", Directory: "dir", WebsocketURL: "wss://x"}
		require.NoError(t, db.Create(&s).Error)
		require.NoError(t, db.Model(&s).Update("status", status).Error)
	}

	require.NoError(t, Run(db))

	var got []model.Strategy
	require.NoError(t, db.Order("id").Find(&got).Error)
	want := []string{"Active", "Active", "Active", "Inactive", "Inactive", "Inactive"}
	for i, s := range got {
		assert.Equal(t, want[i], s.Status, s.Name)
	}
}
