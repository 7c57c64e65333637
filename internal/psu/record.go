package psu

import (
	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/hwapi"
)

// Record is one cycle's snapshot of a power supply. It is rebuilt in
// full every cycle and never persisted across restarts.
type Record struct {
	Index int
	Name  string

	Presence  bool
	PowerGood bool

	Model    string
	Serial   string
	Revision string

	Voltage     Reading
	VoltageHigh Reading
	VoltageLow  Reading

	Temperature     Reading
	TemperatureHigh Reading

	Current Reading
	Power   Reading

	InputVoltage Reading
	InputCurrent Reading

	MaximumSuppliedPower Reading
	PowerCritical        Reading
	PowerWarningSuppress Reading

	Replaceable bool
}

// collect polls one PSU into a Record. A failed presence or power-good
// read aborts the whole record so the caller can isolate the entity;
// failed or unsupported sensor reads degrade to unavailable readings.
func collect(p hwapi.PSU, index int) (Record, error) {
	errFactory := errors.New()

	rec := Record{
		Index: index,
		Name:  p.Name(),
	}

	present, err := p.Presence()
	if err != nil && !hwapi.IsNotSupported(err) {
		return rec, errFactory.Wrap(ErrPollFailed, err)
	}
	rec.Presence = present

	if !rec.Presence {
		return rec, nil
	}

	good, err := p.PowerGood()
	if err != nil && !hwapi.IsNotSupported(err) {
		return rec, errFactory.Wrap(ErrPollFailed, err)
	}
	rec.PowerGood = good

	rec.Model = stringReading(p.Model)
	rec.Serial = stringReading(p.Serial)
	rec.Revision = stringReading(p.Revision)

	rec.Voltage = floatReading(p.Voltage)
	rec.VoltageHigh = floatReading(p.VoltageHighThreshold)
	rec.VoltageLow = floatReading(p.VoltageLowThreshold)
	rec.Temperature = floatReading(p.Temperature)
	rec.TemperatureHigh = floatReading(p.TemperatureHighThreshold)
	rec.Current = floatReading(p.Current)
	rec.Power = floatReading(p.Power)
	rec.InputVoltage = floatReading(p.InputVoltage)
	rec.InputCurrent = floatReading(p.InputCurrent)
	rec.MaximumSuppliedPower = floatReading(p.MaximumSuppliedPower)
	rec.PowerCritical = floatReading(p.PowerCriticalThreshold)
	rec.PowerWarningSuppress = floatReading(p.PowerWarningSuppressThreshold)

	if replaceable, err := p.IsReplaceable(); err == nil {
		rec.Replaceable = replaceable
	}

	return rec, nil
}

// floatReading folds the {value, unsupported, failed} outcomes of a
// sensor read into a Reading: unsupported and failed both surface as
// unavailable, so downstream health logic fails open on them.
func floatReading(read func() (float64, error)) Reading {
	value, err := read()
	if err != nil {
		return Reading{}
	}

	return Reading{Value: value, Available: true}
}

func stringReading(read func() (string, error)) string {
	value, err := read()
	if err != nil {
		return ""
	}

	return value
}
