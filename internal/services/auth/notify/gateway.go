package notify

import (
	"context"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
)

// Gateway sends a one-time code to a phone.
type Gateway interface {
	Send(ctx context.Context, phone, code string) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, phone, code string) error

// Send calls f.
func (f GatewayFunc) Send(ctx context.Context, phone, code string) error {
	return f(ctx, phone, code)
}

// deliveryFailed wraps a transport failure as DELIVERY_FAILED.
func deliveryFailed(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeDeliveryFailed, message, cause)
}

// MaskPhone keeps the last four digits of a phone for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
