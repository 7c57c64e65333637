// Package budget aggregates the chassis power budget on modular
// platforms: maximum suppliable power across the power supplies against
// maximum consumable power across fan drawers and modules, with a
// hysteretic master-health verdict driving the chassis status LED.
package budget

import (
	"context"

	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/logger"
	"codeberg.org/mutker/psud/internal/statedb"
)

// BudgetKey is the CHASSIS_INFO row holding per-entity supplied and
// consumed fields plus the two grand totals.
const BudgetKey = "POWER_BUDGET"

const (
	fieldTotalSupplied = "total_supplied_power"
	fieldTotalConsumed = "total_consumed_power"

	suppliedSuffix = "_supplied_power"
	consumedSuffix = "_consumed_power"
)

// Aggregator recomputes the budget in full every cycle; only the
// previous master verdict survives between cycles, to detect a flip.
type Aggregator struct {
	chassis hwapi.Chassis
	db      *statedb.DB

	masterGood bool
	firstRun   bool
}

func New(chassis hwapi.Chassis, db *statedb.DB) *Aggregator {
	return &Aggregator{
		chassis:    chassis,
		db:         db,
		masterGood: true,
		firstRun:   true,
	}
}

// Update runs one aggregation cycle: publish per-entity figures, the
// grand totals, and re-derive the master verdict when both totals are
// meaningful. The first evaluated cycle always writes the LED, so the
// chassis indicator reflects the verdict even when it equals the
// default.
func (a *Aggregator) Update(ctx context.Context) error {
	supplied, err := a.updateSupplied(ctx)
	if err != nil {
		return err
	}

	consumed, err := a.updateConsumed(ctx)
	if err != nil {
		return err
	}

	fields := map[string]string{
		fieldTotalSupplied: statedb.FormatFloat(supplied),
		fieldTotalConsumed: statedb.FormatFloat(consumed),
	}
	if err := a.db.SetFields(ctx, statedb.TableChassis, BudgetKey, fields); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}

	// A zero total means the platform has not reported a usable figure
	// yet; skip the verdict rather than alarm on missing data.
	if supplied == 0 || consumed == 0 {
		return nil
	}

	masterGood := consumed < supplied
	if masterGood != a.masterGood || a.firstRun {
		a.masterGood = masterGood
		a.firstRun = false

		if masterGood {
			logger.Info().Msgf("Power budget warning cleared: consumed power %.1fW is below supplied power %.1fW",
				consumed, supplied)
		} else {
			logger.Warn().Msgf("Power budget warning: consumed power %.1fW exceeds supplied power %.1fW",
				consumed, supplied)
		}

		color := hwapi.ColorGreen
		if !masterGood {
			color = hwapi.ColorRed
		}
		if err := a.chassis.SetStatusLED(color); err != nil {
			if hwapi.IsNotSupported(err) {
				logger.Warn().Msg("Set master status LED not supported")
			} else {
				logger.Warn().Err(err).Msg("Failed to set master status LED")
			}
		}
	}

	return nil
}

// updateSupplied publishes per-PSU supplied power and returns the total.
// A present, power-good PSU contributes its maximum suppliable power; a
// present but failed PSU publishes zero; an absent PSU's field is
// deleted outright so stale entities disappear from the report.
func (a *Aggregator) updateSupplied(ctx context.Context) (float64, error) {
	errFactory := errors.New()

	var total float64
	for _, p := range a.chassis.PSUs() {
		field := p.Name() + suppliedSuffix

		present, err := p.Presence()
		if err != nil && !hwapi.IsNotSupported(err) {
			logger.Warn().Err(err).Msgf("Failed to read presence from %s", p.Name())

			continue
		}
		if !present {
			if err := a.db.DeleteField(ctx, statedb.TableChassis, BudgetKey, field); err != nil {
				return 0, errFactory.Wrap(ErrPublishFailed, err)
			}

			continue
		}

		good, err := p.PowerGood()
		if err != nil && !hwapi.IsNotSupported(err) {
			logger.Warn().Err(err).Msgf("Failed to read power good from %s", p.Name())

			continue
		}

		value := 0.0
		if good {
			max, err := p.MaximumSuppliedPower()
			if err != nil {
				if !hwapi.IsNotSupported(err) {
					logger.Warn().Err(err).Msgf("Failed to read maximum supplied power from %s", p.Name())
				}
			} else {
				value = max
			}
		}

		total += value
		if err := a.db.SetField(ctx, statedb.TableChassis, BudgetKey, field, statedb.FormatFloat(value)); err != nil {
			return 0, errFactory.Wrap(ErrPublishFailed, err)
		}
	}

	return total, nil
}

// updateConsumed mirrors updateSupplied for the consumers. Fan drawers
// and modules are presence-gated only; a consumer has no power-good
// signal to gate on.
func (a *Aggregator) updateConsumed(ctx context.Context) (float64, error) {
	var total float64

	for _, drawer := range a.chassis.FanDrawers() {
		value, err := a.updateConsumer(ctx, drawer.Name(), drawer.Presence, drawer.MaximumConsumedPower)
		if err != nil {
			return 0, err
		}
		total += value
	}

	for _, module := range a.chassis.Modules() {
		value, err := a.updateConsumer(ctx, module.Name(), module.Presence, module.MaximumConsumedPower)
		if err != nil {
			return 0, err
		}
		total += value
	}

	return total, nil
}

func (a *Aggregator) updateConsumer(
	ctx context.Context,
	name string,
	presence func() (bool, error),
	maxPower func() (float64, error),
) (float64, error) {
	errFactory := errors.New()
	field := name + consumedSuffix

	present, err := presence()
	if err != nil && !hwapi.IsNotSupported(err) {
		logger.Warn().Err(err).Msgf("Failed to read presence from %s", name)

		return 0, nil
	}
	if !present {
		if err := a.db.DeleteField(ctx, statedb.TableChassis, BudgetKey, field); err != nil {
			return 0, errFactory.Wrap(ErrPublishFailed, err)
		}

		return 0, nil
	}

	value := 0.0
	if max, err := maxPower(); err != nil {
		if !hwapi.IsNotSupported(err) {
			logger.Warn().Err(err).Msgf("Failed to read maximum consumed power from %s", name)
		}
	} else {
		value = max
	}

	if err := a.db.SetField(ctx, statedb.TableChassis, BudgetKey, field, statedb.FormatFloat(value)); err != nil {
		return 0, errFactory.Wrap(ErrPublishFailed, err)
	}

	return value, nil
}

// Deinit removes the power-budget row on shutdown.
func (a *Aggregator) Deinit(ctx context.Context) {
	if err := a.db.DeleteKey(ctx, statedb.TableChassis, BudgetKey); err != nil {
		logger.Warn().Err(err).Msg("Failed to remove power budget state")
	}
}
