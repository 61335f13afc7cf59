package domain

import "strings"

// Fee table. Amounts are in whole rupees and are the single source of
// truth — client-supplied amounts are never trusted.
const (
	EventFeeDefault    = 200
	EventFeeDiscounted = 1

	// DiscountDomain marks host-institution accounts eligible for the
	// discounted event fee.
	DiscountDomain = "@psgtech.ac.in"
)

// workshopFees maps workshop ids to their fixed price.
var workshopFees = map[string]int{
	"W01": 500,
	"W02": 500,
}

// gatewayCategories maps a fee to the category code the gateway expects.
var gatewayCategories = map[string]string{
	"EVENT": "20",
	"W01":   "21",
	"W02":   "22",
}

// EventFee returns the event fee for the given account email.
func EventFee(email string) int {
	if strings.HasSuffix(strings.ToLower(email), DiscountDomain) {
		return EventFeeDiscounted
	}
	return EventFeeDefault
}

// WorkshopFee returns the fee for a workshop id, or false when the id
// does not resolve to a known workshop.
func WorkshopFee(workshopID string) (int, bool) {
	fee, ok := workshopFees[workshopID]
	return fee, ok
}

// GatewayCategory returns the gateway category code for a payment.
// Workshops use their own codes; everything else is the event code.
func GatewayCategory(kind PaymentKind, workshopID string) string {
	if kind == KindWorkshop {
		if code, ok := gatewayCategories[workshopID]; ok {
			return code
		}
	}
	return gatewayCategories["EVENT"]
}
