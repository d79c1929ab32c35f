package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/xigmatekctl/internal/errors"
)

// initSchema initializes the database schema for cycle telemetry
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS cycles (
            timestamp INTEGER PRIMARY KEY,
            cpu_temp INTEGER,
            gpu_temp INTEGER,
            wake_sent INTEGER,
            outcome TEXT,
            consecutive_failures INTEGER
        )
    `)
	if err != nil {
		return errors.Wrap(ErrStorageInit, err)
	}

	return nil
}
