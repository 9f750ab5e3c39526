// Package gatewaysvc implements wizard submission gateways.
package gatewaysvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/wizard"
)

const (
	minDelay = 10 * time.Millisecond
	maxDelay = 30 * time.Second
)

type simulated struct {
	delay  time.Duration
	logger core.Logger
}

var _ wizard.Gateway = (*simulated)(nil)

// NewSimulated returns a gateway that waits for delay, clamped to [10ms, 30s],
// then succeeds with a generated receipt. Nothing is sent anywhere.
func NewSimulated(delay time.Duration, logger core.Logger) wizard.Gateway {
	if delay < minDelay {
		delay = minDelay
	} else if delay > maxDelay {
		delay = maxDelay
	}
	return &simulated{delay: delay, logger: logger}
}

func (g *simulated) Submit(ctx context.Context, form string, draft wizard.Values) (wizard.Receipt, error) {
	timer := time.NewTimer(g.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return wizard.Receipt{}, errors.Wrap(ctx.Err(), "simulated submission")
	case <-timer.C:
	}

	receipt := wizard.Receipt{ID: uuid.New().String()}
	g.logger.Info(fmt.Sprintf("simulated %s submission: %s (%d fields)", form, receipt.ID, len(draft)))
	return receipt, nil
}
