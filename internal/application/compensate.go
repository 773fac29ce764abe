package application

import (
	"context"
	"fmt"
	"log/slog"
)

// createWithCompensation runs a primary insert followed by a dependent
// insert. If the dependent insert fails, the primary row is removed so no
// half-written aggregate survives. A failed compensation is logged and
// reported alongside the original failure; the caller still sees the
// dependent error as the cause.
func createWithCompensation(ctx context.Context, logger *slog.Logger, primary, dependent, compensate func() error) error {
	if err := primary(); err != nil {
		return err
	}

	err := dependent()
	if err == nil {
		return nil
	}

	if compErr := compensate(); compErr != nil {
		logger.ErrorContext(ctx, "compensating delete failed; orphan row left behind",
			"error", compErr,
			"cause", err,
		)
		return fmt.Errorf("compensation failed (%v) after: %w", compErr, err)
	}

	logger.WarnContext(ctx, "dependent write failed; primary row compensated",
		"error", err,
	)
	return err
}
