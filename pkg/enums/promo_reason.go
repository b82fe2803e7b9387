package enums

// PromoRejectReason explains why a promo code did not apply.
type PromoRejectReason string

const (
	PromoReasonNone         PromoRejectReason = ""
	PromoReasonNotFound     PromoRejectReason = "not_found"
	PromoReasonNotYetActive PromoRejectReason = "not_yet_active"
	PromoReasonExpired      PromoRejectReason = "expired"
	PromoReasonNotEligible  PromoRejectReason = "not_eligible"
)

func (r PromoRejectReason) String() string {
	return string(r)
}

// Message returns the customer-facing explanation for the reason.
func (r PromoRejectReason) Message() string {
	switch r {
	case PromoReasonNotFound:
		return "promo code does not exist or is inactive"
	case PromoReasonNotYetActive:
		return "promo code is not active yet"
	case PromoReasonExpired:
		return "promo code has expired"
	case PromoReasonNotEligible:
		return "promo code is not available for this customer"
	default:
		return ""
	}
}
