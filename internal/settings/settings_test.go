package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpulse/internal/settings"
	"listingpulse/internal/testsupport"
)

func TestIsIPExcluded(t *testing.T) {
	t.Run("excludes exact IP match", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		require.NoError(t, settings.SetupDefaultSettings(db))

		require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, "192.168.1.100"))

		excluded, err := settings.IsIPExcluded("192.168.1.100")
		require.NoError(t, err)
		assert.True(t, excluded)

		excluded, err = settings.IsIPExcluded("192.168.1.101")
		require.NoError(t, err)
		assert.False(t, excluded)
	})

	t.Run("handles IPs with whitespace", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		require.NoError(t, settings.SetupDefaultSettings(db))

		require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, " 192.168.1.100 , 10.0.0.1 "))

		excluded, err := settings.IsIPExcluded("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, excluded)
	})

	t.Run("empty value excludes nothing", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		require.NoError(t, settings.SetupDefaultSettings(db))

		require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, ""))

		excluded, err := settings.IsIPExcluded("192.168.1.100")
		require.NoError(t, err)
		assert.False(t, excluded)

		excluded, err = settings.IsIPExcluded("")
		require.NoError(t, err)
		assert.False(t, excluded)
	})
}

func TestUpdateSettingCreatesMissingKey(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	require.NoError(t, settings.UpdateSetting(db, "custom_key", "value"))

	value, err := settings.GetSetting(db, "custom_key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	all, err := settings.ListSettings(db)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
