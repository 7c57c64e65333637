package psu

// Reading is a sensor value that may be unavailable on this platform.
// Unavailable is a distinct state, never conflated with zero.
type Reading struct {
	Value     float64
	Available bool
}

// Status tracks the health verdict of one power supply across polling
// cycles. Every setter compares against the cached verdict and reports
// whether it changed, so a transition is observed exactly once.
//
// All dimensions start good: no known problem until proven otherwise.
type Status struct {
	presence        bool
	powerGood       bool
	voltageGood     bool
	temperatureGood bool

	powerCheckArmed bool
	powerExceeded   bool
}

func NewStatus() *Status {
	return &Status{
		presence:        true,
		powerGood:       true,
		voltageGood:     true,
		temperatureGood: true,
	}
}

// SetPresence records presence and reports a transition. Removing a PSU
// disarms its power-threshold check.
func (s *Status) SetPresence(present bool) bool {
	changed := s.presence != present
	s.presence = present

	if !present {
		s.powerCheckArmed = false
	}

	return changed
}

// SetPowerGood records the power-good signal and reports a transition.
// Losing power disarms the power-threshold check.
func (s *Status) SetPowerGood(good bool) bool {
	changed := s.powerGood != good
	s.powerGood = good

	if !good {
		s.powerCheckArmed = false
	}

	return changed
}

// SetVoltage evaluates the output voltage against its thresholds. An
// unavailable reading or threshold fails open: the dimension is forced
// good, and the transition is still reported once when recovering from
// a previous bad verdict.
func (s *Status) SetVoltage(voltage, high, low Reading) bool {
	if !voltage.Available || !high.Available || !low.Available {
		changed := !s.voltageGood
		s.voltageGood = true

		return changed
	}

	good := low.Value <= voltage.Value && voltage.Value <= high.Value
	changed := s.voltageGood != good
	s.voltageGood = good

	return changed
}

// SetTemperature evaluates the temperature against its upper threshold,
// with the same fail-open policy as SetVoltage. The bound is strict and
// there is no lower threshold.
func (s *Status) SetTemperature(temperature, high Reading) bool {
	if !temperature.Available || !high.Available {
		changed := !s.temperatureGood
		s.temperatureGood = true

		return changed
	}

	good := temperature.Value < high.Value
	changed := s.temperatureGood != good
	s.temperatureGood = good

	return changed
}

// IsOK reports the combined verdict used to pick the LED color.
func (s *Status) IsOK() bool {
	return s.presence && s.powerGood && s.voltageGood && s.temperatureGood
}

func (s *Status) Presence() bool {
	return s.presence
}

func (s *Status) PowerGood() bool {
	return s.powerGood
}

func (s *Status) VoltageGood() bool {
	return s.voltageGood
}

func (s *Status) TemperatureGood() bool {
	return s.temperatureGood
}

// ArmPowerCheck arms system-wide power-threshold evaluation for this PSU.
func (s *Status) ArmPowerCheck() {
	s.powerCheckArmed = true
}

func (s *Status) DisarmPowerCheck() {
	s.powerCheckArmed = false
}

func (s *Status) PowerCheckArmed() bool {
	return s.powerCheckArmed
}

// SetPowerExceeded latches or clears the system power alarm bit.
func (s *Status) SetPowerExceeded(exceeded bool) {
	s.powerExceeded = exceeded
}

func (s *Status) PowerExceeded() bool {
	return s.powerExceeded
}
