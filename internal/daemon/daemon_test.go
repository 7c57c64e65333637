package daemon_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/psud/internal/budget"
	"codeberg.org/mutker/psud/internal/daemon"
	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/statedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPSU(name string, position int) *hwapi.MockPSU {
	return &hwapi.MockPSU{
		PSUName:      name,
		Present:      true,
		PowerOK:      true,
		Volt:         hwapi.Float(12.0),
		VoltHigh:     hwapi.Float(13.0),
		VoltLow:      hwapi.Float(11.0),
		Temp:         hwapi.Float(40.0),
		TempHigh:     hwapi.Float(70.0),
		Watts:        hwapi.Float(120.0),
		MaxPower:     hwapi.Float(650.0),
		CritThresh:   hwapi.Float(1000.0),
		WarnSuppress: hwapi.Float(900.0),
		Position:     position,
	}
}

func openTestDB(t *testing.T) *statedb.DB {
	t.Helper()

	db, err := statedb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

// startDaemon runs d until the returned stop function is called, which
// blocks until Run has finished its teardown.
func startDaemon(t *testing.T, d *daemon.Daemon) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{testPSU("PSU 1", 1)}}
	db := openTestDB(t)

	_, err := daemon.New(0, chassis, db)
	require.Error(t, err)

	_, err = daemon.New(-3, chassis, db)
	require.Error(t, err)
}

func TestRunPublishesThenCleansUp(t *testing.T) {
	chassis := &hwapi.MockChassis{
		Modular: true,
		PSUList: []hwapi.PSU{testPSU("PSU 1", 1), testPSU("PSU 2", 2)},
		ModuleList: []hwapi.Module{
			&hwapi.MockConsumer{ConsumerName: "module0", Present: true, MaxPower: hwapi.Float(800.0)},
		},
	}
	db := openTestDB(t)

	d, err := daemon.New(1, chassis, db)
	require.NoError(t, err)
	stop := startDaemon(t, d)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		_, ok, err := db.GetField(ctx, statedb.TablePSU, "PSU 2", "status")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond, "Expected the first cycle to publish without waiting a full interval")

	count, ok, err := db.GetField(ctx, statedb.TableChassis, chassis.Name(), "psu_num")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", count)

	budgetRow, err := db.GetAll(ctx, statedb.TableChassis, budget.BudgetKey)
	require.NoError(t, err)
	assert.Equal(t, "1300", budgetRow["total_supplied_power"])
	assert.Equal(t, "800", budgetRow["total_consumed_power"])

	stop()

	for _, key := range []string{"PSU 1", "PSU 2"} {
		row, err := db.GetAll(ctx, statedb.TablePSU, key)
		require.NoError(t, err)
		assert.Empty(t, row, "Expected %s row to be removed on shutdown", key)
	}

	budgetRow, err = db.GetAll(ctx, statedb.TableChassis, budget.BudgetKey)
	require.NoError(t, err)
	assert.Empty(t, budgetRow)

	_, ok, err = db.GetField(ctx, statedb.TableChassis, chassis.Name(), "psu_num")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFixedChassisSkipsBudget(t *testing.T) {
	chassis := &hwapi.MockChassis{
		PSUList: []hwapi.PSU{testPSU("PSU 1", 1)},
	}
	db := openTestDB(t)

	d, err := daemon.New(1, chassis, db)
	require.NoError(t, err)
	stop := startDaemon(t, d)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		_, ok, err := db.GetField(ctx, statedb.TablePSU, "PSU 1", "status")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	row, err := db.GetAll(ctx, statedb.TableChassis, budget.BudgetKey)
	require.NoError(t, err)
	assert.Empty(t, row, "Expected no power budget on a fixed chassis")

	stop()
}

func TestBrokenPSUDoesNotBlockOthers(t *testing.T) {
	broken := testPSU("PSU 1", 1)
	broken.PollFailure = assert.AnError
	chassis := &hwapi.MockChassis{
		PSUList: []hwapi.PSU{broken, testPSU("PSU 2", 2)},
	}
	db := openTestDB(t)

	d, err := daemon.New(1, chassis, db)
	require.NoError(t, err)
	stop := startDaemon(t, d)
	defer stop()

	ctx := context.Background()
	require.Eventually(t, func() bool {
		value, ok, err := db.GetField(ctx, statedb.TablePSU, "PSU 2", "presence")
		return err == nil && ok && value == "true"
	}, 2*time.Second, 10*time.Millisecond, "Expected the healthy supply to keep publishing")
}
