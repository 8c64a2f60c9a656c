package qrpayments

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// BuildUPIURI renders the deep link a UPI app scans from the QR code. Field
// order is fixed; payment apps are strict about it.
//
//	upi://pay?pa=<merchant>&pn=<payee>&am=<amount>&cu=INR&tn=<note>
func BuildUPIURI(merchantID, payeeName string, amount decimal.Decimal, note string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=INR&tn=%s",
		url.QueryEscape(merchantID),
		url.QueryEscape(payeeName),
		amount.StringFixed(2),
		url.QueryEscape(note),
	)
}
