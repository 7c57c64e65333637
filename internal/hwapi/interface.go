package hwapi

// LEDColor is a status LED color understood by the platform.
type LEDColor string

const (
	ColorGreen LEDColor = "green"
	ColorRed   LEDColor = "red"
	ColorAmber LEDColor = "amber"
	ColorOff   LEDColor = "off"
)

// Chassis is the root capability object. Every accessor below may fail
// with the hwapi_not_supported code when the platform does not implement
// the operation; callers distinguish that from a genuine failure with
// IsNotSupported.
type Chassis interface {
	Name() string
	IsModular() bool
	NumPSUs() (int, error)

	// PSUs returns the chassis power supplies in stable, index order.
	// The slice is fixed at startup; presence is reported per PSU.
	PSUs() []PSU
	FanDrawers() []FanDrawer
	Modules() []Module

	SetStatusLED(color LEDColor) error
}

// PSU exposes sensor readings and control operations for one power supply.
type PSU interface {
	Name() string
	Model() (string, error)
	Serial() (string, error)
	Revision() (string, error)

	Presence() (bool, error)
	PowerGood() (bool, error)

	// Output-side readings in volts, amperes, watts and degrees Celsius.
	Voltage() (float64, error)
	VoltageHighThreshold() (float64, error)
	VoltageLowThreshold() (float64, error)
	Temperature() (float64, error)
	TemperatureHighThreshold() (float64, error)
	Current() (float64, error)
	Power() (float64, error)

	InputVoltage() (float64, error)
	InputCurrent() (float64, error)

	MaximumSuppliedPower() (float64, error)
	PowerCriticalThreshold() (float64, error)
	PowerWarningSuppressThreshold() (float64, error)

	IsReplaceable() (bool, error)
	PositionInParent() int
	ParentName() string

	SetStatusLED(color LEDColor) error
	StatusLED() (LEDColor, error)

	// Fans returns the fans physically embedded in this PSU, in stable order.
	Fans() []Fan
}

// Fan exposes readings for a fan embedded in a PSU.
type Fan interface {
	Name() string
	Presence() (bool, error)
	Status() (bool, error)
	Direction() (string, error)
	SpeedPercent() (float64, error)
	IsReplaceable() (bool, error)
	SetStatusLED(color LEDColor) error
}

// FanDrawer is a power consumer on the chassis power budget.
type FanDrawer interface {
	Name() string
	Presence() (bool, error)
	MaximumConsumedPower() (float64, error)
}

// Module is a compute or line-card consumer on the chassis power budget.
type Module interface {
	Name() string
	Presence() (bool, error)
	MaximumConsumedPower() (float64, error)
}
