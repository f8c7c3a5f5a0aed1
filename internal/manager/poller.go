package manager

import (
	"context"
	"log/slog"

	"github.com/roach88/csledger/internal/changesource"
)

// Poller is a running change-detection service for one change source.
// Implementations are VCS-specific and live outside this package.
type Poller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PollerFactory builds the poller for a claimed change source.
type PollerFactory func(cs changesource.View) (Poller, error)

// LogPoller is a Poller that only logs its lifecycle.
// Used when no VCS-specific poller is wired in.
type LogPoller struct {
	cs     changesource.View
	logger *slog.Logger
}

// NewLogPollerFactory returns a PollerFactory producing LogPollers.
func NewLogPollerFactory(logger *slog.Logger) PollerFactory {
	return func(cs changesource.View) (Poller, error) {
		return &LogPoller{cs: cs, logger: logger}, nil
	}
}

// Start implements Poller.
func (p *LogPoller) Start(context.Context) error {
	p.logger.Info("poller started", "changesource_id", p.cs.ID, "name", p.cs.Name)
	return nil
}

// Stop implements Poller.
func (p *LogPoller) Stop(context.Context) error {
	p.logger.Info("poller stopped", "changesource_id", p.cs.ID, "name", p.cs.Name)
	return nil
}
