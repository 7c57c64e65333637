package psu

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/logger"
	"codeberg.org/mutker/psud/internal/statedb"
)

// PSU_INFO row fields
const (
	fieldPresence             = "presence"
	fieldStatus               = "status"
	fieldLEDStatus            = "led_status"
	fieldModel                = "model"
	fieldSerial               = "serial"
	fieldRevision             = "revision"
	fieldTemp                 = "temp"
	fieldTempThreshold        = "temp_threshold"
	fieldVoltage              = "voltage"
	fieldVoltageMaxThreshold  = "voltage_max_threshold"
	fieldVoltageMinThreshold  = "voltage_min_threshold"
	fieldCurrent              = "current"
	fieldPower                = "power"
	fieldMaxPower             = "max_power"
	fieldPowerOverload        = "power_overload"
	fieldPowerCriticalThresh  = "power_critical_threshold"
	fieldPowerWarnSuppThresh  = "power_warning_suppress_threshold"
	fieldInputVoltage         = "input_voltage"
	fieldInputCurrent         = "input_current"
	fieldIsReplaceable        = "is_replaceable"
	fieldFanDirection         = "direction"
	fieldFanSpeed             = "speed"
	fieldTimestamp            = "timestamp"
	fieldPositionInParent     = "position_in_parent"
	fieldParentName           = "parent_name"
	timestampFormat           = "20060102 15:04:05"
)

// Monitor owns the per-PSU health state machines and publishes the
// per-entity rows. It is driven by the reconciliation loop and is not
// safe for concurrent use; the loop is its only caller.
type Monitor struct {
	chassis hwapi.Chassis
	db      *statedb.DB

	statuses map[int]*Status
	fanKeys  map[int][]string

	// thresholdLogged guards the once-per-cycle system power transition
	// log line; reset in BeginCycle.
	thresholdLogged bool
}

func NewMonitor(chassis hwapi.Chassis, db *statedb.DB) *Monitor {
	return &Monitor{
		chassis:  chassis,
		db:       db,
		statuses: make(map[int]*Status),
		fanKeys:  make(map[int][]string),
	}
}

// BeginCycle resets per-cycle bookkeeping. Called once at the top of
// every reconciliation pass.
func (m *Monitor) BeginCycle() {
	m.thresholdLogged = false
}

// RefreshEntityMetadata re-asserts positional metadata for every PSU.
// Another process may delete these keys at any time, so the write is
// repeated every cycle and must stay idempotent.
func (m *Monitor) RefreshEntityMetadata(ctx context.Context) error {
	errFactory := errors.New()

	for _, p := range m.chassis.PSUs() {
		fields := map[string]string{
			fieldPositionInParent: statedb.FormatFloat(float64(p.PositionInParent())),
			fieldParentName:       p.ParentName(),
		}
		if err := m.db.SetFields(ctx, statedb.TablePhysicalEntity, p.Name(), fields); err != nil {
			return errFactory.Wrap(ErrPublishFailed, err)
		}
	}

	return nil
}

// UpdatePSU runs one polling cycle for one PSU: refresh the record,
// advance the health state machine, evaluate the system power threshold
// when armed, refresh LEDs on any verdict change, and publish the full
// row regardless of changes.
func (m *Monitor) UpdatePSU(ctx context.Context, index int, p hwapi.PSU) error {
	status, first := m.ensureStatus(index)

	rec, err := collect(p, index)
	if err != nil {
		return err
	}

	presenceChanged := status.SetPresence(rec.Presence)
	if presenceChanged {
		if rec.Presence {
			logger.Info().Msgf("PSU absence warning cleared: %s is inserted back", rec.Name)
		} else {
			logger.Warn().Msgf("PSU absence warning: %s is not present", rec.Name)
		}
	}

	var powerChanged bool
	if rec.Presence {
		powerChanged = status.SetPowerGood(rec.PowerGood)
		if powerChanged {
			if rec.PowerGood {
				logger.Info().Msgf("PSU power warning cleared: %s power is back to normal", rec.Name)
			} else {
				logger.Warn().Msgf("PSU power warning: %s power is not OK", rec.Name)
			}
		}
	}

	voltageChanged := status.SetVoltage(rec.Voltage, rec.VoltageHigh, rec.VoltageLow)
	if voltageChanged {
		if status.VoltageGood() {
			logger.Info().Msgf("PSU voltage warning cleared: %s voltage is back to normal", rec.Name)
		} else {
			logger.Warn().Msgf("PSU voltage warning: %s voltage out of range, voltage=%.3fV, range=[%.3fV, %.3fV]",
				rec.Name, rec.Voltage.Value, rec.VoltageLow.Value, rec.VoltageHigh.Value)
		}
	}

	temperatureChanged := status.SetTemperature(rec.Temperature, rec.TemperatureHigh)
	if temperatureChanged {
		if status.TemperatureGood() {
			logger.Info().Msgf("PSU temperature warning cleared: %s temperature is back to normal", rec.Name)
		} else {
			logger.Warn().Msgf("PSU temperature warning: %s temperature %.1fC exceeds threshold %.1fC",
				rec.Name, rec.Temperature.Value, rec.TemperatureHigh.Value)
		}
	}

	m.updateArming(rec, status, powerChanged, first)

	if status.PowerCheckArmed() {
		m.checkPowerThreshold(rec, status)
	} else {
		status.SetPowerExceeded(false)
	}

	anyChanged := presenceChanged || powerChanged || voltageChanged || temperatureChanged
	if anyChanged || first {
		m.refreshLEDs(p, status)
	}

	if err := m.publishPSU(ctx, rec, status); err != nil {
		return err
	}

	// Fan rows mirror the owning PSU and only need rewriting when its
	// presence flips, or on the first sighting.
	if presenceChanged || first {
		if err := m.publishFans(ctx, index, p, rec, status); err != nil {
			return err
		}
	}

	return nil
}

// ensureStatus returns the health state for a PSU index, creating it on
// first sighting. The state lives for the daemon's lifetime.
func (m *Monitor) ensureStatus(index int) (*Status, bool) {
	if status, ok := m.statuses[index]; ok {
		return status, false
	}

	status := NewStatus()
	m.statuses[index] = status

	return status, true
}

// updateArming applies the re-arming rule: arm only on the power-good
// rising edge (or the first cycle while already good), and only while
// both thresholds and the instantaneous power reading are available.
// Disarming on absence or power loss happens in the Status setters;
// disarming on lost threshold data happens inside the check itself so
// the misconfiguration gets logged.
func (m *Monitor) updateArming(rec Record, status *Status, powerChanged, first bool) {
	if !rec.Presence || !rec.PowerGood {
		return
	}

	if !powerChanged && !first {
		return
	}

	if rec.PowerCritical.Available && rec.PowerWarningSuppress.Available && rec.Power.Available {
		status.ArmPowerCheck()
	}
}

func ledColor(ok bool) hwapi.LEDColor {
	if ok {
		return hwapi.ColorGreen
	}

	return hwapi.ColorRed
}

// refreshLEDs pushes the derived color to the PSU and its fans.
// Best-effort: an unsupported LED primitive is warned about once per
// transition and never aborts the cycle.
func (m *Monitor) refreshLEDs(p hwapi.PSU, status *Status) {
	color := ledColor(status.IsOK())

	if err := p.SetStatusLED(color); err != nil {
		if hwapi.IsNotSupported(err) {
			logger.Warn().Msgf("Set status LED not supported for %s", p.Name())
		} else {
			logger.Warn().Err(err).Msgf("Failed to set status LED for %s", p.Name())
		}
	}

	for _, fan := range p.Fans() {
		if err := fan.SetStatusLED(color); err != nil {
			if hwapi.IsNotSupported(err) {
				logger.Warn().Msgf("Set status LED not supported for fan %s of %s", fan.Name(), p.Name())
			} else {
				logger.Warn().Err(err).Msgf("Failed to set status LED for fan %s of %s", fan.Name(), p.Name())
			}
		}
	}
}

func formatReading(r Reading) string {
	if !r.Available {
		return statedb.NotAvailable
	}

	return statedb.FormatFloat(r.Value)
}

func formatString(s string) string {
	if s == "" {
		return statedb.NotAvailable
	}

	return s
}

// publishPSU writes the full PSU_INFO row. Every current value goes out
// each cycle; change detection only gates LEDs and log lines.
func (m *Monitor) publishPSU(ctx context.Context, rec Record, status *Status) error {
	fields := map[string]string{
		fieldPresence:            statedb.FormatBool(rec.Presence),
		fieldStatus:              statedb.FormatBool(rec.PowerGood),
		fieldLEDStatus:           string(ledColor(status.IsOK())),
		fieldModel:               formatString(rec.Model),
		fieldSerial:              formatString(rec.Serial),
		fieldRevision:            formatString(rec.Revision),
		fieldTemp:                formatReading(rec.Temperature),
		fieldTempThreshold:       formatReading(rec.TemperatureHigh),
		fieldVoltage:             formatReading(rec.Voltage),
		fieldVoltageMaxThreshold: formatReading(rec.VoltageHigh),
		fieldVoltageMinThreshold: formatReading(rec.VoltageLow),
		fieldCurrent:             formatReading(rec.Current),
		fieldPower:               formatReading(rec.Power),
		fieldMaxPower:            formatReading(rec.MaximumSuppliedPower),
		fieldPowerOverload:       statedb.FormatBool(status.PowerExceeded()),
		fieldPowerCriticalThresh: formatReading(rec.PowerCritical),
		fieldPowerWarnSuppThresh: formatReading(rec.PowerWarningSuppress),
		fieldInputVoltage:        formatReading(rec.InputVoltage),
		fieldInputCurrent:        formatReading(rec.InputCurrent),
		fieldIsReplaceable:       statedb.FormatBool(rec.Replaceable),
	}

	if err := m.db.SetFields(ctx, statedb.TablePSU, rec.Name, fields); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}

	return nil
}

// publishFans writes one FAN_INFO row per embedded fan. Fan health is
// mirrored from the owning PSU; there is no independent fan verdict.
func (m *Monitor) publishFans(ctx context.Context, index int, p hwapi.PSU, rec Record, status *Status) error {
	errFactory := errors.New()

	keys := m.fanKeys[index][:0]
	now := time.Now().Format(timestampFormat)

	for i, fan := range p.Fans() {
		key := fanKey(rec.Name, i+1)
		keys = append(keys, key)

		present, err := fan.Presence()
		if err != nil {
			present = rec.Presence
		}
		ok, err := fan.Status()
		if err != nil {
			ok = rec.PowerGood
		}

		fields := map[string]string{
			fieldPresence:     statedb.FormatBool(present),
			fieldStatus:       statedb.FormatBool(ok),
			fieldLEDStatus:    string(ledColor(status.IsOK())),
			fieldFanDirection: fanDirection(fan),
			fieldFanSpeed:     formatReading(floatReading(fan.SpeedPercent)),
			fieldTimestamp:    now,
		}

		if err := m.db.SetFields(ctx, statedb.TableFan, key, fields); err != nil {
			return errFactory.Wrap(ErrPublishFailed, err)
		}
	}

	m.fanKeys[index] = keys

	return nil
}

func fanKey(psuName string, ordinal int) string {
	return fmt.Sprintf("%s FAN %d", psuName, ordinal)
}

func fanDirection(fan hwapi.Fan) string {
	direction, err := fan.Direction()
	if err != nil {
		return statedb.NotAvailable
	}

	return direction
}

// Deinit removes every row this monitor has published. Called once when
// the daemon stops; the state store must not advertise entities that no
// process maintains.
func (m *Monitor) Deinit(ctx context.Context) {
	for index, p := range m.chassis.PSUs() {
		name := p.Name()
		if err := m.db.DeleteKey(ctx, statedb.TablePSU, name); err != nil {
			logger.Warn().Err(err).Msgf("Failed to remove state for %s", name)
		}
		if err := m.db.DeleteKey(ctx, statedb.TablePhysicalEntity, name); err != nil {
			logger.Warn().Err(err).Msgf("Failed to remove entity metadata for %s", name)
		}
		for _, key := range m.fanKeys[index+1] {
			if err := m.db.DeleteKey(ctx, statedb.TableFan, key); err != nil {
				logger.Warn().Err(err).Msgf("Failed to remove state for fan %s", key)
			}
		}
	}
}
