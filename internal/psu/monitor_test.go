package psu_test

import (
	"context"
	"testing"

	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/psu"
	"codeberg.org/mutker/psud/internal/statedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyPSU(name string, position int, watts float64) *hwapi.MockPSU {
	return &hwapi.MockPSU{
		PSUName:      name,
		ModelStr:     "PWR-650AC",
		SerialStr:    "SN-" + name,
		RevisionStr:  "A1",
		Present:      true,
		PowerOK:      true,
		Volt:         hwapi.Float(12.0),
		VoltHigh:     hwapi.Float(13.0),
		VoltLow:      hwapi.Float(11.0),
		Temp:         hwapi.Float(40.0),
		TempHigh:     hwapi.Float(70.0),
		Curr:         hwapi.Float(50.0),
		Watts:        hwapi.Float(watts),
		MaxPower:     hwapi.Float(650.0),
		CritThresh:   hwapi.Float(1000.0),
		WarnSuppress: hwapi.Float(900.0),
		Replaceable:  true,
		Position:     position,
	}
}

func newTestMonitor(t *testing.T, chassis *hwapi.MockChassis) (*psu.Monitor, *statedb.DB) {
	t.Helper()

	db, err := statedb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return psu.NewMonitor(chassis, db), db
}

func runCycle(t *testing.T, m *psu.Monitor, chassis *hwapi.MockChassis) {
	t.Helper()

	ctx := context.Background()
	m.BeginCycle()
	require.NoError(t, m.RefreshEntityMetadata(ctx))
	for i, p := range chassis.PSUs() {
		require.NoError(t, m.UpdatePSU(ctx, i+1, p))
	}
}

func overload(t *testing.T, db *statedb.DB, name string) bool {
	t.Helper()

	value, ok, err := db.GetField(context.Background(), statedb.TablePSU, name, "power_overload")
	require.NoError(t, err)
	require.True(t, ok, "Expected power_overload to be published for %s", name)

	return value == "true"
}

func TestPublishesHealthyRow(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)

	row, err := db.GetAll(context.Background(), statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Equal(t, "true", row["presence"])
	assert.Equal(t, "true", row["status"])
	assert.Equal(t, "false", row["power_overload"])
	assert.Equal(t, "12", row["voltage"])
	assert.Equal(t, "40", row["temp"])
	assert.Equal(t, "PWR-650AC", row["model"])
	assert.Equal(t, "green", row["led_status"])
	assert.Equal(t, hwapi.ColorGreen, psu1.LED)

	meta, err := db.GetAll(context.Background(), statedb.TablePhysicalEntity, "PSU 1")
	require.NoError(t, err)
	assert.Equal(t, "1", meta["position_in_parent"])
	assert.Equal(t, "chassis 1", meta["parent_name"])
}

func TestUnsupportedReadingsPublishNotAvailable(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	psu1.InVolt = nil
	psu1.InCurr = nil
	psu1.Curr = nil
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)

	row, err := db.GetAll(context.Background(), statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Equal(t, statedb.NotAvailable, row["input_voltage"])
	assert.Equal(t, statedb.NotAvailable, row["input_current"])
	assert.Equal(t, statedb.NotAvailable, row["current"])
	assert.Equal(t, "green", row["led_status"], "Expected missing telemetry to fail open")
}

func TestAbsenceFlipsLEDAndPresence(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)
	assert.Equal(t, hwapi.ColorGreen, psu1.LED)
	ledWrites := psu1.LEDWrites

	psu1.Present = false
	runCycle(t, m, chassis)

	row, err := db.GetAll(context.Background(), statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Equal(t, "false", row["presence"])
	assert.Equal(t, hwapi.ColorRed, psu1.LED)
	assert.Equal(t, ledWrites+1, psu1.LEDWrites)

	// No further change, no further LED write.
	runCycle(t, m, chassis)
	assert.Equal(t, ledWrites+1, psu1.LEDWrites)
}

func TestSystemPowerHysteresis(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 1000.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	// Rising edge uses the critical threshold.
	runCycle(t, m, chassis)
	assert.True(t, overload(t, db, "PSU 1"), "Expected alarm at critical threshold")

	// 950 sits inside the hysteresis band: no clear.
	psu1.Watts = hwapi.Float(950.0)
	runCycle(t, m, chassis)
	assert.True(t, overload(t, db, "PSU 1"), "Expected alarm to hold above warning suppress")

	// Falling edge uses the warning-suppress threshold.
	psu1.Watts = hwapi.Float(899.0)
	runCycle(t, m, chassis)
	assert.False(t, overload(t, db, "PSU 1"), "Expected alarm to clear below warning suppress")

	// 950 after clearing must not re-raise.
	psu1.Watts = hwapi.Float(950.0)
	runCycle(t, m, chassis)
	assert.False(t, overload(t, db, "PSU 1"), "Expected no re-raise inside the hysteresis band")
}

func TestSystemPowerSumsOtherPresentPSUs(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 600.0)
	psu2 := healthyPSU("PSU 2", 2, 600.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1, psu2}}
	m, db := newTestMonitor(t, chassis)

	// 600 + 600 = 1200 crosses the critical threshold.
	runCycle(t, m, chassis)
	assert.True(t, overload(t, db, "PSU 1"))

	// One supply drops to 100: system power 700 clears the alarm.
	psu2.Watts = hwapi.Float(100.0)
	runCycle(t, m, chassis)
	assert.False(t, overload(t, db, "PSU 1"))
}

func TestIndeterminatePowerFromOtherPSUContributesNothing(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 950.0)
	psu2 := healthyPSU("PSU 2", 2, 600.0)
	psu2.Watts = nil
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1, psu2}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)
	assert.False(t, overload(t, db, "PSU 1"),
		"Expected the unreadable supply to contribute zero, not alarm")
}

func TestIndeterminateThresholdsDisarmAndFailOpen(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 1200.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)
	assert.True(t, overload(t, db, "PSU 1"))

	// Losing a threshold clears the latched alarm rather than wedging it.
	psu1.CritThresh = nil
	runCycle(t, m, chassis)
	assert.False(t, overload(t, db, "PSU 1"))
}

func TestAbsenceClearsOverload(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 1200.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)
	assert.True(t, overload(t, db, "PSU 1"))

	psu1.Present = false
	runCycle(t, m, chassis)
	assert.False(t, overload(t, db, "PSU 1"))
}

func TestPollFailureIsIsolated(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	psu1.PollFailure = assert.AnError
	psu2 := healthyPSU("PSU 2", 2, 120.0)
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1, psu2}}
	m, db := newTestMonitor(t, chassis)

	ctx := context.Background()
	m.BeginCycle()
	assert.Error(t, m.UpdatePSU(ctx, 1, psu1))
	assert.NoError(t, m.UpdatePSU(ctx, 2, psu2))

	row, err := db.GetAll(ctx, statedb.TablePSU, "PSU 2")
	require.NoError(t, err)
	assert.Equal(t, "true", row["presence"], "Expected the healthy supply to still publish")
}

func TestFanRowsMirrorOwningPSU(t *testing.T) {
	fan := &hwapi.MockFan{FanName: "fan0", Present: true, OK: true, Dir: "intake", Speed: hwapi.Float(55.0)}
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	psu1.FanList = []hwapi.Fan{fan}
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)

	row, err := db.GetAll(context.Background(), statedb.TableFan, "PSU 1 FAN 1")
	require.NoError(t, err)
	assert.Equal(t, "true", row["presence"])
	assert.Equal(t, "true", row["status"])
	assert.Equal(t, "intake", row["direction"])
	assert.Equal(t, "55", row["speed"])
	assert.Equal(t, "green", row["led_status"])
	assert.NotEmpty(t, row["timestamp"])
	assert.Equal(t, hwapi.ColorGreen, fan.LED, "Expected fan LED to mirror the PSU verdict")
}

func TestUnsupportedLEDIsBestEffort(t *testing.T) {
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	psu1.LEDFailure = hwapi.NotSupportedError()
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	runCycle(t, m, chassis)

	row, err := db.GetAll(context.Background(), statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Equal(t, "true", row["presence"], "Expected the cycle to survive an unsupported LED")
}

func TestDeinitRemovesPublishedRows(t *testing.T) {
	fan := &hwapi.MockFan{FanName: "fan0", Present: true, OK: true}
	psu1 := healthyPSU("PSU 1", 1, 120.0)
	psu1.FanList = []hwapi.Fan{fan}
	chassis := &hwapi.MockChassis{PSUList: []hwapi.PSU{psu1}}
	m, db := newTestMonitor(t, chassis)

	ctx := context.Background()
	runCycle(t, m, chassis)
	m.Deinit(ctx)

	row, err := db.GetAll(ctx, statedb.TablePSU, "PSU 1")
	require.NoError(t, err)
	assert.Empty(t, row)

	fanRow, err := db.GetAll(ctx, statedb.TableFan, "PSU 1 FAN 1")
	require.NoError(t, err)
	assert.Empty(t, fanRow)

	meta, err := db.GetAll(ctx, statedb.TablePhysicalEntity, "PSU 1")
	require.NoError(t, err)
	assert.Empty(t, meta)
}
