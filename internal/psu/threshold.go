package psu

import (
	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/logger"
)

// checkPowerThreshold evaluates the system-wide power alarm for one
// armed PSU. Two asymmetric thresholds form the hysteresis band: the
// alarm rises at or above the critical threshold and clears only below
// the warning-suppress threshold, so readings oscillating between the
// two never flap the alarm.
func (m *Monitor) checkPowerThreshold(rec Record, status *Status) {
	if !rec.PowerCritical.Available || !rec.PowerWarningSuppress.Available {
		logger.Error().Msgf("Power thresholds unavailable for %s, disabling power threshold check", rec.Name)
		status.DisarmPowerCheck()
		status.SetPowerExceeded(false)

		return
	}

	if !rec.Power.Available {
		logger.Error().Msgf("Power reading unavailable for %s, disabling power threshold check", rec.Name)
		status.DisarmPowerCheck()
		status.SetPowerExceeded(false)

		return
	}

	systemPower := rec.Power.Value + m.otherPSUsPower(rec.Index)

	switch {
	case status.PowerExceeded():
		if systemPower < rec.PowerWarningSuppress.Value {
			status.SetPowerExceeded(false)
			if !m.thresholdLogged {
				logger.Info().Msgf("System power warning cleared: system power %.1fW is below warning suppress threshold %.1fW",
					systemPower, rec.PowerWarningSuppress.Value)
				m.thresholdLogged = true
			}
		}
	case systemPower >= rec.PowerCritical.Value:
		status.SetPowerExceeded(true)
		if !m.thresholdLogged {
			logger.Warn().Msgf("System power warning: system power %.1fW exceeds critical threshold %.1fW",
				systemPower, rec.PowerCritical.Value)
			m.thresholdLogged = true
		}
	}
}

// otherPSUsPower sums the instantaneous power of every other present
// PSU. Indeterminate readings contribute nothing; a PSU that cannot
// report power must not poison the system total.
func (m *Monitor) otherPSUsPower(index int) float64 {
	var total float64

	for i, p := range m.chassis.PSUs() {
		if i+1 == index {
			continue
		}

		present, err := p.Presence()
		if err != nil || !present {
			continue
		}

		power, err := p.Power()
		if err != nil {
			if !hwapi.IsNotSupported(err) {
				logger.Debug().Err(err).Msgf("Failed to read power from %s", p.Name())
			}

			continue
		}

		total += power
	}

	return total
}
