package database

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered, embedded schema history for the expense core
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_expenses",
		SQL: `
			CREATE TABLE IF NOT EXISTS expenses (
				expense_id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				vendor_id TEXT NOT NULL DEFAULT '',
				account_id TEXT NOT NULL DEFAULT '',
				amount TEXT NOT NULL DEFAULT '0',
				line_description TEXT NOT NULL DEFAULT '',
				transaction_date TEXT NOT NULL DEFAULT '',
				transaction_type TEXT NOT NULL DEFAULT '',
				payment_method_id TEXT NOT NULL DEFAULT '',
				bill_reference TEXT NOT NULL DEFAULT '',
				receipt_url TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				auth_status INTEGER NOT NULL DEFAULT 0,
				authorized_by TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_expenses_project ON expenses(project_id);
			CREATE INDEX IF NOT EXISTS idx_expenses_status ON expenses(status);
		`,
	},
	{
		Version: 2,
		Name:    "create_audit_logs",
		SQL: `
			CREATE TABLE IF NOT EXISTS expense_status_log (
				id TEXT PRIMARY KEY,
				expense_id TEXT NOT NULL,
				old_status TEXT NOT NULL,
				new_status TEXT NOT NULL,
				changed_by TEXT NOT NULL,
				changed_at DATETIME NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_status_log_expense
				ON expense_status_log(expense_id, changed_at);

			CREATE TABLE IF NOT EXISTS expense_change_log (
				id TEXT PRIMARY KEY,
				expense_id TEXT NOT NULL,
				field_name TEXT NOT NULL,
				old_value TEXT NOT NULL DEFAULT '',
				new_value TEXT NOT NULL DEFAULT '',
				changed_by TEXT NOT NULL,
				changed_at DATETIME NOT NULL,
				expense_status_at_time TEXT NOT NULL,
				reason TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_change_log_expense
				ON expense_change_log(expense_id, changed_at);
		`,
	},
	{
		Version: 3,
		Name:    "create_bills_and_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS bills (
				bill_id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				vendor_id TEXT NOT NULL DEFAULT '',
				reference TEXT NOT NULL DEFAULT '',
				amount TEXT NOT NULL DEFAULT '0',
				bill_date TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_bills_project ON bills(project_id);

			CREATE TABLE IF NOT EXISTS users (
				user_id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT ''
			);
		`,
	},
	{
		Version: 4,
		Name:    "create_ocr_metrics",
		SQL: `
			CREATE TABLE IF NOT EXISTS ocr_metrics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				agent TEXT NOT NULL DEFAULT '',
				extraction_method TEXT NOT NULL,
				success INTEGER NOT NULL,
				confidence REAL NOT NULL DEFAULT 0,
				char_count INTEGER NOT NULL DEFAULT 0,
				elapsed_ms INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}

// Migrator applies embedded migrations in version order
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the set of applied migration versions
func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Run applies all pending migrations
func (m *Migrator) Run() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, mig := range migrations {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, mig := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))

		err := m.db.WithTransaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(mig.SQL); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	m.logger.Info("Migrations complete", zap.Int("applied", len(pending)))
	return nil
}
