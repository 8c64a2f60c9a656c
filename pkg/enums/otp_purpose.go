package enums

import "fmt"

// OTPPurpose scopes a one-time code to the flow that requested it.
type OTPPurpose string

const (
	OTPPurposeVerification      OTPPurpose = "verification"
	OTPPurposeRegistration      OTPPurpose = "registration"
	OTPPurposeOrderConfirmation OTPPurpose = "order_confirmation"
	OTPPurposePasswordReset     OTPPurpose = "password_reset"
	OTPPurposeDelivery          OTPPurpose = "delivery"
)

var validOTPPurposes = []OTPPurpose{
	OTPPurposeVerification,
	OTPPurposeRegistration,
	OTPPurposeOrderConfirmation,
	OTPPurposePasswordReset,
	OTPPurposeDelivery,
}

// String implements fmt.Stringer.
func (o OTPPurpose) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OTPPurpose.
func (o OTPPurpose) IsValid() bool {
	for _, candidate := range validOTPPurposes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOTPPurpose converts raw input into an OTPPurpose.
func ParseOTPPurpose(value string) (OTPPurpose, error) {
	for _, candidate := range validOTPPurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid otp purpose %q", value)
}
