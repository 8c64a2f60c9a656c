package enums

import "fmt"

// QRSessionStatus tracks a UPI QR payment session. Sessions only ever move
// from pending to one of the terminal states.
type QRSessionStatus string

const (
	QRSessionStatusPending   QRSessionStatus = "pending"
	QRSessionStatusCompleted QRSessionStatus = "completed"
	QRSessionStatusExpired   QRSessionStatus = "expired"
	QRSessionStatusFailed    QRSessionStatus = "failed"
)

var validQRSessionStatuses = []QRSessionStatus{
	QRSessionStatusPending,
	QRSessionStatusCompleted,
	QRSessionStatusExpired,
	QRSessionStatusFailed,
}

// String implements fmt.Stringer.
func (q QRSessionStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QRSessionStatus.
func (q QRSessionStatus) IsValid() bool {
	for _, candidate := range validQRSessionStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session can no longer change state.
func (q QRSessionStatus) IsTerminal() bool {
	return q != QRSessionStatusPending
}

// ParseQRSessionStatus converts raw input into a QRSessionStatus.
func ParseQRSessionStatus(value string) (QRSessionStatus, error) {
	for _, candidate := range validQRSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid qr session status %q", value)
}
