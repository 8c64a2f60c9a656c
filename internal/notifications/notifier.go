package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

// Notifier composes the transactional emails the order and OTP flows send.
// It satisfies both orders.DeliveryNotifier and otp.Sender.
type Notifier struct {
	mailer Mailer
	logg   *logger.Logger
}

// NewNotifier builds the notifier.
func NewNotifier(mailer Mailer, logg *logger.Logger) (*Notifier, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{mailer: mailer, logg: logg}, nil
}

// SendDeliveryOTP emails the 4-digit handover code the courier will ask for.
func (n *Notifier) SendDeliveryOTP(ctx context.Context, email, orderNumber, code string) error {
	msg := Message{
		To:      email,
		Subject: fmt.Sprintf("Your delivery code for order %s", orderNumber),
		TextBody: fmt.Sprintf(
			"Your order %s is out for delivery.\n\n"+
				"Share this code with the delivery partner to receive your package: %s\n\n"+
				"Do not share this code with anyone else.",
			orderNumber, code),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return err
	}
	n.logg.Info(n.logg.WithOrderNumber(ctx, orderNumber), "delivery code email sent")
	return nil
}

// SendEmailOTP emails a verification code for the given flow.
func (n *Notifier) SendEmailOTP(ctx context.Context, email string, purpose enums.OTPPurpose, code string, ttl time.Duration) error {
	msg := Message{
		To:      email,
		Subject: otpSubject(purpose),
		TextBody: fmt.Sprintf(
			"Your verification code is %s.\n\n"+
				"It expires in %d minutes. If you did not request this code, ignore this email.",
			code, int(ttl.Minutes())),
	}
	return n.mailer.Send(ctx, msg)
}

func otpSubject(purpose enums.OTPPurpose) string {
	switch purpose {
	case enums.OTPPurposeRegistration:
		return "Confirm your MapMarket account"
	case enums.OTPPurposePasswordReset:
		return "Reset your MapMarket password"
	case enums.OTPPurposeOrderConfirmation:
		return "Confirm your MapMarket order"
	default:
		return "Your MapMarket verification code"
	}
}
