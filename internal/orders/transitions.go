package orders

import "github.com/mapmarket/mapmarket-backend/pkg/enums"

// allowedTransitions is the order status graph. The forward path is strictly
// linear; cancellation is only reachable before the parcel leaves the
// warehouse, and returns only after delivery.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:         {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:     {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:        {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      {enums.OrderStatusReturned},
	enums.OrderStatusCancelled:      {},
	enums.OrderStatusReturned:       {},
}

// CanTransition reports whether moving from one order status to another is
// permitted by the graph. Self transitions are not permitted.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in the given status may still be
// cancelled.
func Cancellable(status enums.OrderStatus) bool {
	return CanTransition(status, enums.OrderStatusCancelled)
}

// IsTerminal reports whether no further transitions exist from the status.
func IsTerminal(status enums.OrderStatus) bool {
	return len(allowedTransitions[status]) == 0
}
