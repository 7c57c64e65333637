package hwapi

// Sysfs-backed entity implementations. Each entity is one directory of
// attribute files; readings use hwmon units and are converted to volts,
// amperes, watts and degrees Celsius at this boundary.

type sysfsChassis struct {
	dir     attrDir
	name    string
	modular bool
	psus    []PSU
	drawers []FanDrawer
	modules []Module
}

func (c *sysfsChassis) Name() string {
	return c.name
}

func (c *sysfsChassis) IsModular() bool {
	return c.modular
}

func (c *sysfsChassis) NumPSUs() (int, error) {
	count, err := c.dir.readScaled("num_psus", 1)
	if err != nil {
		if IsNotSupported(err) {
			return len(c.psus), nil
		}

		return 0, err
	}

	return int(count), nil
}

func (c *sysfsChassis) PSUs() []PSU {
	return c.psus
}

func (c *sysfsChassis) FanDrawers() []FanDrawer {
	return c.drawers
}

func (c *sysfsChassis) Modules() []Module {
	return c.modules
}

func (c *sysfsChassis) SetStatusLED(color LEDColor) error {
	return c.dir.writeString("led", string(color))
}

type sysfsPSU struct {
	dir         attrDir
	name        string
	parent      string
	position    int
	replaceable bool
	fans        []Fan
}

func (p *sysfsPSU) Name() string {
	return p.name
}

func (p *sysfsPSU) Model() (string, error) {
	return p.dir.readString("model")
}

func (p *sysfsPSU) Serial() (string, error) {
	return p.dir.readString("serial")
}

func (p *sysfsPSU) Revision() (string, error) {
	return p.dir.readString("revision")
}

func (p *sysfsPSU) Presence() (bool, error) {
	return p.dir.readBool("present")
}

func (p *sysfsPSU) PowerGood() (bool, error) {
	return p.dir.readBool("power_good")
}

func (p *sysfsPSU) Voltage() (float64, error) {
	return p.dir.readScaled("voltage", scaleMilli)
}

func (p *sysfsPSU) VoltageHighThreshold() (float64, error) {
	return p.dir.readScaled("voltage_max", scaleMilli)
}

func (p *sysfsPSU) VoltageLowThreshold() (float64, error) {
	return p.dir.readScaled("voltage_min", scaleMilli)
}

func (p *sysfsPSU) Temperature() (float64, error) {
	return p.dir.readScaled("temp", scaleMilli)
}

func (p *sysfsPSU) TemperatureHighThreshold() (float64, error) {
	return p.dir.readScaled("temp_max", scaleMilli)
}

func (p *sysfsPSU) Current() (float64, error) {
	return p.dir.readScaled("current", scaleMilli)
}

func (p *sysfsPSU) Power() (float64, error) {
	return p.dir.readScaled("power", scaleMicro)
}

func (p *sysfsPSU) InputVoltage() (float64, error) {
	return p.dir.readScaled("input_voltage", scaleMilli)
}

func (p *sysfsPSU) InputCurrent() (float64, error) {
	return p.dir.readScaled("input_current", scaleMilli)
}

func (p *sysfsPSU) MaximumSuppliedPower() (float64, error) {
	return p.dir.readScaled("max_power", scaleMicro)
}

func (p *sysfsPSU) PowerCriticalThreshold() (float64, error) {
	return p.dir.readScaled("power_critical", scaleMicro)
}

func (p *sysfsPSU) PowerWarningSuppressThreshold() (float64, error) {
	return p.dir.readScaled("power_warning_suppress", scaleMicro)
}

func (p *sysfsPSU) IsReplaceable() (bool, error) {
	return p.replaceable, nil
}

func (p *sysfsPSU) PositionInParent() int {
	return p.position
}

func (p *sysfsPSU) ParentName() string {
	return p.parent
}

func (p *sysfsPSU) SetStatusLED(color LEDColor) error {
	return p.dir.writeString("led", string(color))
}

func (p *sysfsPSU) StatusLED() (LEDColor, error) {
	raw, err := p.dir.readString("led")
	if err != nil {
		return ColorOff, err
	}

	return LEDColor(raw), nil
}

func (p *sysfsPSU) Fans() []Fan {
	return p.fans
}

type sysfsFan struct {
	dir  attrDir
	name string
}

func (f *sysfsFan) Name() string {
	return f.name
}

func (f *sysfsFan) Presence() (bool, error) {
	return f.dir.readBool("present")
}

func (f *sysfsFan) Status() (bool, error) {
	return f.dir.readBool("status")
}

func (f *sysfsFan) Direction() (string, error) {
	return f.dir.readString("direction")
}

func (f *sysfsFan) SpeedPercent() (float64, error) {
	return f.dir.readScaled("speed", 1)
}

func (f *sysfsFan) IsReplaceable() (bool, error) {
	return false, nil
}

func (f *sysfsFan) SetStatusLED(color LEDColor) error {
	return f.dir.writeString("led", string(color))
}

type sysfsConsumer struct {
	dir  attrDir
	name string
}

func (e *sysfsConsumer) Name() string {
	return e.name
}

func (e *sysfsConsumer) Presence() (bool, error) {
	return e.dir.readBool("present")
}

func (e *sysfsConsumer) MaximumConsumedPower() (float64, error) {
	return e.dir.readScaled("max_power", scaleMicro)
}
