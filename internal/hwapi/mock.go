package hwapi

import "codeberg.org/mutker/psud/internal/errors"

// Mock implementations backed by plain fields, used by package tests
// across the daemon. Pointer-valued readings model optional platform
// support: nil reads as hwapi_not_supported.

// Float returns a pointer to v, for populating mock readings.
func Float(v float64) *float64 {
	return &v
}

// NotSupportedError builds an unsupported-operation error, for mocks
// simulating platforms without a given control primitive.
func NotSupportedError() error {
	return errors.New().WithData(ErrNotSupported, "mock")
}

func mockFloat(v *float64, name string) (float64, error) {
	if v == nil {
		return 0, errors.New().WithData(ErrNotSupported, name)
	}

	return *v, nil
}

type MockChassis struct {
	ChassisName string
	Modular     bool
	PSUList     []PSU
	DrawerList  []FanDrawer
	ModuleList  []Module

	LED        LEDColor
	LEDWrites  int
	LEDFailure error
}

func (c *MockChassis) Name() string {
	if c.ChassisName == "" {
		return "chassis 1"
	}

	return c.ChassisName
}

func (c *MockChassis) IsModular() bool {
	return c.Modular
}

func (c *MockChassis) NumPSUs() (int, error) {
	return len(c.PSUList), nil
}

func (c *MockChassis) PSUs() []PSU {
	return c.PSUList
}

func (c *MockChassis) FanDrawers() []FanDrawer {
	return c.DrawerList
}

func (c *MockChassis) Modules() []Module {
	return c.ModuleList
}

func (c *MockChassis) SetStatusLED(color LEDColor) error {
	if c.LEDFailure != nil {
		return c.LEDFailure
	}
	c.LED = color
	c.LEDWrites++

	return nil
}

type MockPSU struct {
	PSUName     string
	ModelStr    string
	SerialStr   string
	RevisionStr string

	Present bool
	PowerOK bool

	Volt     *float64
	VoltHigh *float64
	VoltLow  *float64
	Temp     *float64
	TempHigh *float64
	Curr     *float64
	Watts    *float64

	InVolt *float64
	InCurr *float64

	MaxPower     *float64
	CritThresh   *float64
	WarnSuppress *float64

	Replaceable bool
	Position    int
	Parent      string

	LED        LEDColor
	LEDWrites  int
	LEDFailure error

	FanList []Fan

	// PollFailure, when set, is returned from Presence to simulate a
	// broken per-entity driver.
	PollFailure error
}

func (p *MockPSU) Name() string {
	return p.PSUName
}

func (p *MockPSU) Model() (string, error) {
	return p.ModelStr, nil
}

func (p *MockPSU) Serial() (string, error) {
	return p.SerialStr, nil
}

func (p *MockPSU) Revision() (string, error) {
	return p.RevisionStr, nil
}

func (p *MockPSU) Presence() (bool, error) {
	if p.PollFailure != nil {
		return false, p.PollFailure
	}

	return p.Present, nil
}

func (p *MockPSU) PowerGood() (bool, error) {
	return p.PowerOK, nil
}

func (p *MockPSU) Voltage() (float64, error) {
	return mockFloat(p.Volt, "voltage")
}

func (p *MockPSU) VoltageHighThreshold() (float64, error) {
	return mockFloat(p.VoltHigh, "voltage_max")
}

func (p *MockPSU) VoltageLowThreshold() (float64, error) {
	return mockFloat(p.VoltLow, "voltage_min")
}

func (p *MockPSU) Temperature() (float64, error) {
	return mockFloat(p.Temp, "temp")
}

func (p *MockPSU) TemperatureHighThreshold() (float64, error) {
	return mockFloat(p.TempHigh, "temp_max")
}

func (p *MockPSU) Current() (float64, error) {
	return mockFloat(p.Curr, "current")
}

func (p *MockPSU) Power() (float64, error) {
	return mockFloat(p.Watts, "power")
}

func (p *MockPSU) InputVoltage() (float64, error) {
	return mockFloat(p.InVolt, "input_voltage")
}

func (p *MockPSU) InputCurrent() (float64, error) {
	return mockFloat(p.InCurr, "input_current")
}

func (p *MockPSU) MaximumSuppliedPower() (float64, error) {
	return mockFloat(p.MaxPower, "max_power")
}

func (p *MockPSU) PowerCriticalThreshold() (float64, error) {
	return mockFloat(p.CritThresh, "power_critical")
}

func (p *MockPSU) PowerWarningSuppressThreshold() (float64, error) {
	return mockFloat(p.WarnSuppress, "power_warning_suppress")
}

func (p *MockPSU) IsReplaceable() (bool, error) {
	return p.Replaceable, nil
}

func (p *MockPSU) PositionInParent() int {
	return p.Position
}

func (p *MockPSU) ParentName() string {
	if p.Parent == "" {
		return "chassis 1"
	}

	return p.Parent
}

func (p *MockPSU) SetStatusLED(color LEDColor) error {
	if p.LEDFailure != nil {
		return p.LEDFailure
	}
	p.LED = color
	p.LEDWrites++

	return nil
}

func (p *MockPSU) StatusLED() (LEDColor, error) {
	return p.LED, nil
}

func (p *MockPSU) Fans() []Fan {
	return p.FanList
}

type MockFan struct {
	FanName   string
	Present   bool
	OK        bool
	Dir       string
	Speed     *float64
	LED       LEDColor
	LEDWrites int
}

func (f *MockFan) Name() string {
	return f.FanName
}

func (f *MockFan) Presence() (bool, error) {
	return f.Present, nil
}

func (f *MockFan) Status() (bool, error) {
	return f.OK, nil
}

func (f *MockFan) Direction() (string, error) {
	return f.Dir, nil
}

func (f *MockFan) SpeedPercent() (float64, error) {
	return mockFloat(f.Speed, "speed")
}

func (f *MockFan) IsReplaceable() (bool, error) {
	return false, nil
}

func (f *MockFan) SetStatusLED(color LEDColor) error {
	f.LED = color
	f.LEDWrites++

	return nil
}

type MockConsumer struct {
	ConsumerName string
	Present      bool
	MaxPower     *float64
}

func (e *MockConsumer) Name() string {
	return e.ConsumerName
}

func (e *MockConsumer) Presence() (bool, error) {
	return e.Present, nil
}

func (e *MockConsumer) MaximumConsumedPower() (float64, error) {
	return mockFloat(e.MaxPower, "max_power")
}
