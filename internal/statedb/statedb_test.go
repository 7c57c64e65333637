package statedb_test

import (
	"context"
	"testing"

	"codeberg.org/mutker/psud/internal/statedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *statedb.DB {
	t.Helper()

	db, err := statedb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := statedb.Open("")
	require.Error(t, err)
}

func TestSetFieldIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetField(ctx, statedb.TablePSU, "PSU 1", "presence", "true"))
	require.NoError(t, db.SetField(ctx, statedb.TablePSU, "PSU 1", "presence", "true"))

	value, ok, err := db.GetField(ctx, statedb.TablePSU, "PSU 1", "presence")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)
}

func TestSetFieldOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetField(ctx, statedb.TablePSU, "PSU 1", "voltage", "12"))
	require.NoError(t, db.SetField(ctx, statedb.TablePSU, "PSU 1", "voltage", "11.5"))

	value, ok, err := db.GetField(ctx, statedb.TablePSU, "PSU 1", "voltage")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "11.5", value)
}

func TestGetFieldMissing(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.GetField(context.Background(), statedb.TablePSU, "PSU 9", "presence")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetFieldsBatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fields := map[string]string{
		"presence": "true",
		"status":   "true",
		"voltage":  "12",
	}
	require.NoError(t, db.SetFields(ctx, statedb.TablePSU, "PSU 1", fields))

	row, err := db.GetAll(ctx, statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Equal(t, fields, row)
}

func TestTablesAreIsolated(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetField(ctx, statedb.TablePSU, "PSU 1", "presence", "true"))
	require.NoError(t, db.SetField(ctx, statedb.TableFan, "PSU 1", "presence", "false"))

	value, _, err := db.GetField(ctx, statedb.TablePSU, "PSU 1", "presence")
	require.NoError(t, err)
	assert.Equal(t, "true", value)

	value, _, err = db.GetField(ctx, statedb.TableFan, "PSU 1", "presence")
	require.NoError(t, err)
	assert.Equal(t, "false", value)
}

func TestDeleteField(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetField(ctx, statedb.TableChassis, "POWER_BUDGET", "PSU 1_supplied_power", "1500"))
	require.NoError(t, db.SetField(ctx, statedb.TableChassis, "POWER_BUDGET", "total_supplied_power", "1500"))

	require.NoError(t, db.DeleteField(ctx, statedb.TableChassis, "POWER_BUDGET", "PSU 1_supplied_power"))

	row, err := db.GetAll(ctx, statedb.TableChassis, "POWER_BUDGET")
	require.NoError(t, err)
	assert.NotContains(t, row, "PSU 1_supplied_power")
	assert.Contains(t, row, "total_supplied_power")
}

func TestDeleteKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetFields(ctx, statedb.TablePSU, "PSU 1", map[string]string{
		"presence": "true",
		"status":   "true",
	}))
	require.NoError(t, db.SetField(ctx, statedb.TablePSU, "PSU 2", "presence", "true"))

	require.NoError(t, db.DeleteKey(ctx, statedb.TablePSU, "PSU 1"))

	row, err := db.GetAll(ctx, statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Empty(t, row)

	keys, err := db.Keys(ctx, statedb.TablePSU)
	require.NoError(t, err)
	assert.Equal(t, []string{"PSU 2"}, keys)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "12", statedb.FormatFloat(12.0))
	assert.Equal(t, "11.5", statedb.FormatFloat(11.5))
	assert.Equal(t, "true", statedb.FormatBool(true))
	assert.Equal(t, "false", statedb.FormatBool(false))
}
