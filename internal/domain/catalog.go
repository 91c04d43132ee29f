package domain

// Fixed enumerations used by reconciliation and validation. The reconciliation
// engine only reports on these exact names; payment types or categories
// outside the lists are excluded from balance totals without error.

// PaymentTypes are the settlement channels, used both as expense category
// buckets and income payment-method buckets.
var PaymentTypes = []string{"Card", "Cash", "WeChat", "Credit"}

// Directors are the names eligible for director-loan overrides.
var Directors = []string{"Diego", "Leo", "Saulo", "Warren"}

// Rooms are the bookable rooms plus the bar.
var Rooms = []string{"K1", "K2", "K3", "K4", "K5", "K6", "K7", "K8", "K9", "K10", "Bar"}

// KnownPaymentType reports whether name is one of the fixed payment types.
func KnownPaymentType(name string) bool {
	for _, t := range PaymentTypes {
		if t == name {
			return true
		}
	}
	return false
}

// KnownDirector reports whether name is one of the fixed directors.
func KnownDirector(name string) bool {
	for _, d := range Directors {
		if d == name {
			return true
		}
	}
	return false
}

// KnownRoom reports whether name is one of the fixed rooms.
func KnownRoom(name string) bool {
	for _, r := range Rooms {
		if r == name {
			return true
		}
	}
	return false
}
