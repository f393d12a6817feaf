package telemetry

import (
	"database/sql"

	"github.com/frostyard/glacierctl/internal/errors"
)

// initSchema initializes the database schema for telemetry data
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS readings (
            timestamp INTEGER PRIMARY KEY,
            temperature REAL,
            valid INTEGER,
            band TEXT,
            devices_open INTEGER,
            writes_ok INTEGER,
            writes_failed INTEGER
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}
