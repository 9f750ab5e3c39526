package wizard

import "context"

// Receipt is the outcome of a successful submission.
type Receipt struct {
	ID string `json:"id"`
}

// Gateway sends a completed draft somewhere real.
// A returned error is the failure outcome, its message is shown to the user.
type Gateway interface {
	Submit(ctx context.Context, form string, draft Values) (Receipt, error)
}

// GatewayFunc adapts a function to a Gateway.
type GatewayFunc func(ctx context.Context, form string, draft Values) (Receipt, error)

func (f GatewayFunc) Submit(ctx context.Context, form string, draft Values) (Receipt, error) {
	return f(ctx, form, draft)
}
