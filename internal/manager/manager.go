package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/roach88/csledger/internal/changesource"
)

// Ledger is the subset of the store a Manager needs.
type Ledger interface {
	FindOrCreateChangeSource(ctx context.Context, name string) (changesource.ID, error)
	ClaimChangeSource(ctx context.Context, id changesource.ID, master changesource.MasterID) (changesource.ClaimResult, error)
	ReleaseChangeSourceFor(ctx context.Context, id changesource.ID, master changesource.MasterID) (bool, error)
	ListChangeSources(ctx context.Context, filter changesource.Filter) ([]changesource.View, error)
}

// Manager runs pollers for the change sources its master owns.
//
// Thread-safety: all methods are safe for concurrent use. Reconfigure,
// Reconcile and Stop are serialized by reconcileMu, which is held across
// their store round trips. mu only guards the poller bookkeeping and is
// never held across store calls, so Active does not wait on the store.
// Cross-master exclusion comes from the ledger alone.
type Manager struct {
	ledger       Ledger
	master       changesource.MasterID
	logger       *slog.Logger
	clock        clockwork.Clock
	metrics      Metrics
	pollInterval time.Duration
	newBackOff   func() backoff.BackOff
	newPoller    PollerFactory

	reconcileMu sync.Mutex

	mu      sync.Mutex
	desired map[changesource.ID]string
	active  map[changesource.ID]Poller
}

// New creates a Manager acting as master against ledger.
func New(ledger Ledger, master changesource.MasterID, opts ...Option) *Manager {
	m := &Manager{
		ledger:       ledger,
		master:       master,
		logger:       slog.Default(),
		clock:        clockwork.NewRealClock(),
		metrics:      NopMetrics{},
		pollInterval: DefaultPollInterval,
		newBackOff:   defaultBackOff,
		desired:      map[changesource.ID]string{},
		active:       map[changesource.ID]Poller{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newPoller == nil {
		m.newPoller = NewLogPollerFactory(m.logger)
	}
	m.logger = m.logger.With("master", string(m.master))
	return m
}

// Master returns the identity this manager claims under.
func (m *Manager) Master() changesource.MasterID {
	return m.master
}

// Reconfigure replaces the set of configured change-source names.
//
// Every name is resolved to an ID. Pollers for sources that are no longer
// configured are stopped and their claims released. Newly configured sources
// are claimed on the next Reconcile.
func (m *Manager) Reconfigure(ctx context.Context, names []string) error {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	desired := make(map[changesource.ID]string, len(names))
	for _, name := range names {
		var id changesource.ID
		err := m.retry(ctx, "find or create", func() error {
			var err error
			id, err = m.ledger.FindOrCreateChangeSource(ctx, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("reconfigure %q: %w", name, err)
		}
		desired[id] = name
	}

	m.mu.Lock()
	m.desired = desired
	var removed []changesource.ID
	for _, id := range sortedIDs(m.active) {
		if _, keep := desired[id]; !keep {
			removed = append(removed, id)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range removed {
		if err := m.deactivate(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	m.metrics.SetActivePollers(m.activeCount())

	m.logger.Info("reconfigured", "change_sources", len(desired))
	return errors.Join(errs...)
}

// Reconcile brings running pollers in line with ledger ownership.
//
// Claims held on sources that are no longer configured are released.
// Pollers whose claim disappeared (e.g. removed by a reaper) are stopped.
// Desired sources this master already owns get a poller. Every other desired
// source is claimed; AlreadyClaimed is accepted as final for this round.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	owned, err := m.Owned(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	ownedByID := make(map[changesource.ID]changesource.View, len(owned))
	for _, v := range owned {
		ownedByID[v.ID] = v
	}

	m.mu.Lock()
	desired := maps.Clone(m.desired)
	active := maps.Clone(m.active)
	m.mu.Unlock()

	var errs []error

	for _, id := range sortedIDs(ownedByID) {
		if _, want := desired[id]; want {
			continue
		}
		m.logger.Info("releasing unconfigured change source", "changesource_id", id)
		if err := m.deactivate(ctx, id); err != nil {
			errs = append(errs, err)
		}
		delete(active, id)
	}

	for _, id := range sortedIDs(active) {
		if _, ok := ownedByID[id]; ok {
			continue
		}
		m.logger.Warn("claim lost, stopping poller", "changesource_id", id)
		if err := m.stopPoller(ctx, id); err != nil {
			errs = append(errs, err)
		}
		delete(active, id)
	}

	for _, id := range sortedIDs(desired) {
		if _, running := active[id]; running {
			continue
		}
		view := changesource.View{ID: id, Name: desired[id], Owner: m.master}
		if _, ok := ownedByID[id]; !ok {
			claimed, err := m.claim(ctx, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !claimed {
				continue
			}
		}
		if err := m.activate(ctx, view); err != nil {
			errs = append(errs, err)
		}
	}

	m.metrics.SetActivePollers(m.activeCount())
	return errors.Join(errs...)
}

// Run reconciles immediately and then on every poll interval until ctx is done.
// Reconcile failures are logged; they do not stop the loop.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Reconcile(ctx); err != nil {
		m.logger.Error("reconcile failed", "error", err)
	}

	ticker := m.clock.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := m.Reconcile(ctx); err != nil {
				m.logger.Error("reconcile failed", "error", err)
			}
		}
	}
}

// Stop halts every running poller and releases every claim this master
// holds, including claims on sources it has no poller for. The configured
// set is cleared, so a later Reconcile claims nothing until Reconfigure.
func (m *Manager) Stop(ctx context.Context) error {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	m.mu.Lock()
	m.desired = map[changesource.ID]string{}
	running := sortedIDs(m.active)
	m.mu.Unlock()

	var errs []error
	for _, id := range running {
		if err := m.deactivate(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	owned, err := m.Owned(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	for _, v := range owned {
		if err := m.release(ctx, v.ID); err != nil {
			errs = append(errs, err)
		}
	}

	m.metrics.SetActivePollers(m.activeCount())
	m.logger.Info("stopped")
	return errors.Join(errs...)
}

// Owned lists the change sources currently owned by this master.
func (m *Manager) Owned(ctx context.Context) ([]changesource.View, error) {
	var views []changesource.View
	err := m.retry(ctx, "list owned", func() error {
		var err error
		views, err = m.ledger.ListChangeSources(ctx, changesource.ByOwner{Master: m.master})
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Active returns the IDs with a running poller, in ascending order.
func (m *Manager) Active() []changesource.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedIDs(m.active)
}

func (m *Manager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// claim attempts to claim id. Reports whether this master now owns it.
func (m *Manager) claim(ctx context.Context, id changesource.ID) (bool, error) {
	var result changesource.ClaimResult
	err := m.retry(ctx, "claim", func() error {
		var err error
		result, err = m.ledger.ClaimChangeSource(ctx, id, m.master)
		return err
	})
	if err != nil {
		m.metrics.RecordClaim("error")
		return false, fmt.Errorf("claim %d: %w", id, err)
	}

	m.metrics.RecordClaim(result.String())
	if result == changesource.AlreadyClaimed {
		m.logger.Debug("change source owned elsewhere", "changesource_id", id)
		return false, nil
	}
	m.logger.Info("change source claimed", "changesource_id", id)
	return true, nil
}

// activate starts a poller for an owned source. If the poller cannot
// start, the claim is released so another master can take over.
func (m *Manager) activate(ctx context.Context, view changesource.View) error {
	poller, err := m.newPoller(view)
	if err == nil {
		err = poller.Start(ctx)
	}
	if err != nil {
		m.logger.Error("poller failed to start, releasing claim", "changesource_id", view.ID, "error", err)
		if relErr := m.release(ctx, view.ID); relErr != nil {
			return errors.Join(fmt.Errorf("start poller %d: %w", view.ID, err), relErr)
		}
		return fmt.Errorf("start poller %d: %w", view.ID, err)
	}

	m.mu.Lock()
	m.active[view.ID] = poller
	m.mu.Unlock()
	return nil
}

// deactivate stops the poller for id, if one runs, and releases the claim.
func (m *Manager) deactivate(ctx context.Context, id changesource.ID) error {
	var errs []error
	if err := m.stopPoller(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if err := m.release(ctx, id); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// stopPoller removes the poller for id from the active set and stops it.
func (m *Manager) stopPoller(ctx context.Context, id changesource.ID) error {
	m.mu.Lock()
	poller, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := poller.Stop(ctx); err != nil {
		return fmt.Errorf("stop poller %d: %w", id, err)
	}
	return nil
}

// release drops this master's claim on id, if it still holds one.
func (m *Manager) release(ctx context.Context, id changesource.ID) error {
	var released bool
	err := m.retry(ctx, "release", func() error {
		var err error
		released, err = m.ledger.ReleaseChangeSourceFor(ctx, id, m.master)
		return err
	})
	if err != nil {
		return fmt.Errorf("release %d: %w", id, err)
	}
	if released {
		m.metrics.RecordRelease()
		m.logger.Info("change source released", "changesource_id", id)
	}
	return nil
}

// retry runs fn, retrying only store failures under the configured backoff.
func (m *Manager) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.WithContext(m.newBackOff(), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !changesource.IsStoreUnavailable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, d time.Duration) {
		m.logger.Warn("store unavailable, retrying", "op", op, "error", err, "backoff", d)
	})
}

func sortedIDs[V any](m map[changesource.ID]V) []changesource.ID {
	ids := make([]changesource.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
