package migration

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestApplySQLiteIsIdempotent(t *testing.T) {
	conn := openMemory(t)

	require.NoError(t, Run(conn))
	require.NoError(t, Run(conn))

	for _, table := range []string{"class_definitions", "bookings", "club_policies", "credit_balances", "credit_entries", "member_notifications", "member_contacts", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestActiveBookingUniqueness(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, ApplySQLite(conn))

	require.NoError(t, conn.Exec(`INSERT INTO class_definitions (id, club_id, name, slug, anchor_date, start_time, duration_minutes, capacity)
		VALUES (1, 1, 'Yoga', 'yoga', '2025-01-06', '09:00', 60, 2)`).Error)

	insert := `INSERT INTO bookings (id, club_id, class_id, member_id, session_key, session_date, status, payment_method)
		VALUES (?, 1, 1, 7, '2025-01-06_1', '2025-01-06', ?, 'online')`
	require.NoError(t, conn.Exec(insert, 1, "cancel").Error)
	require.NoError(t, conn.Exec(insert, 2, "attend").Error)
	assert.Error(t, conn.Exec(insert, 3, "wait").Error)
	require.NoError(t, conn.Exec(insert, 4, "cancel").Error)
}

func TestSplitStatements(t *testing.T) {
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, splitStatements("SELECT 1;\n\n SELECT 2;\n"))
}
