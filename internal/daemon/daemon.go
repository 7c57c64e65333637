// Package daemon runs the reconciliation loop: one polling cycle per
// tick, single worker, with the timer wait doubling as the cancellation
// point. A cycle that has started always runs to completion.
package daemon

import (
	"context"
	"strconv"
	"time"

	"codeberg.org/mutker/psud/internal/budget"
	"codeberg.org/mutker/psud/internal/errors"
	"codeberg.org/mutker/psud/internal/hwapi"
	"codeberg.org/mutker/psud/internal/logger"
	"codeberg.org/mutker/psud/internal/psu"
	"codeberg.org/mutker/psud/internal/statedb"
)

const (
	fieldPSUNum = "psu_num"

	// cleanupTimeout bounds the state-store teardown after the run
	// context is already canceled.
	cleanupTimeout = 5 * time.Second
)

type Daemon struct {
	interval time.Duration
	chassis  hwapi.Chassis
	db       *statedb.DB
	monitor  *psu.Monitor

	// aggregator is nil on fixed (non-modular) platforms.
	aggregator *budget.Aggregator
}

func New(intervalSeconds int, chassis hwapi.Chassis, db *statedb.DB) (*Daemon, error) {
	if intervalSeconds <= 0 {
		return nil, errors.New().WithData(ErrInvalidInterval, intervalSeconds)
	}

	d := &Daemon{
		interval: time.Duration(intervalSeconds) * time.Second,
		chassis:  chassis,
		db:       db,
		monitor:  psu.NewMonitor(chassis, db),
	}

	if chassis.IsModular() {
		d.aggregator = budget.New(chassis, db)
	}

	return d, nil
}

// Run seeds startup state, then polls until ctx is canceled. On return
// all published rows have been removed from the state store.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.seed(ctx); err != nil {
		return err
	}

	logger.Info().Msgf("Monitoring %d PSUs every %s", len(d.chassis.PSUs()), d.interval)

	// Poll immediately so the state store is populated before the first
	// full interval elapses.
	d.cycle(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.teardown()

			return nil
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

// seed publishes the PSU count; it is the one chassis fact that does
// not change between cycles.
func (d *Daemon) seed(ctx context.Context) error {
	errFactory := errors.New()

	count, err := d.chassis.NumPSUs()
	if err != nil {
		return errFactory.Wrap(ErrSeedFailed, err)
	}

	err = d.db.SetField(ctx, statedb.TableChassis, d.chassis.Name(), fieldPSUNum, strconv.Itoa(count))
	if err != nil {
		return errFactory.Wrap(ErrSeedFailed, err)
	}

	return nil
}

// cycle runs one reconciliation pass. Per-PSU failures are isolated: a
// broken driver for one supply never blocks updates to the others.
func (d *Daemon) cycle(ctx context.Context) {
	d.monitor.BeginCycle()

	if err := d.monitor.RefreshEntityMetadata(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to refresh entity metadata")
	}

	for i, p := range d.chassis.PSUs() {
		if err := d.monitor.UpdatePSU(ctx, i+1, p); err != nil {
			logger.Warn().Err(err).Msgf("Failed to update %s", p.Name())
		}
	}

	if d.aggregator != nil {
		if err := d.aggregator.Update(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to update power budget")
		}
	}
}

// teardown deletes everything this daemon published. It runs under a
// fresh context; the run context is already canceled by the time we get
// here.
func (d *Daemon) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	d.monitor.Deinit(ctx)

	if d.aggregator != nil {
		d.aggregator.Deinit(ctx)
	}

	if err := d.db.DeleteField(ctx, statedb.TableChassis, d.chassis.Name(), fieldPSUNum); err != nil {
		logger.Warn().Err(err).Msg("Failed to remove PSU count state")
	}

	logger.Info().Msg("State store cleaned up")
}
