package statedb

import (
	"database/sql"
	"strconv"

	"codeberg.org/mutker/psud/internal/errors"
)

// Published tables, keyed by entity identity.
const (
	TableChassis        = "CHASSIS_INFO"
	TablePSU            = "PSU_INFO"
	TableFan            = "FAN_INFO"
	TablePhysicalEntity = "PHYSICAL_ENTITY_INFO"
)

// NotAvailable is the published sentinel for readings the platform does
// not support. Distinct from any valid value, including zero.
const NotAvailable = "N/A"

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS state (
		tbl   TEXT NOT NULL,
		key   TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (tbl, key, field)
	)`

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(createTableSQL); err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}

// FormatFloat renders a reading for publication.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBool renders a flag for publication.
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}
