package persistence

// claimAllowedSortFields defines the allowed sort fields for claims
var claimAllowedSortFields = map[string]bool{
	"id":                true,
	"serial_id":         true,
	"claim_number":      true,
	"invoice_total":     true,
	"total_paid":        true,
	"total_balanced":    true,
	"remaining_balance": true,
	"status":            true,
	"created_at":        true,
	"updated_at":        true,
}

// payoutAllowedSortFields defines the allowed sort fields for payouts
var payoutAllowedSortFields = map[string]bool{
	"id":             true,
	"serial_id":      true,
	"payout_number":  true,
	"amount":         true,
	"status":         true,
	"payment_status": true,
	"created_at":     true,
	"updated_at":     true,
}

// validateClaimSortField validates and returns a safe sort field
func validateClaimSortField(field string) string {
	if claimAllowedSortFields[field] {
		return field
	}
	return "serial_id"
}

// validatePayoutSortField validates and returns a safe sort field
func validatePayoutSortField(field string) string {
	if payoutAllowedSortFields[field] {
		return field
	}
	return "serial_id"
}

// validateSortOrder validates and returns a safe sort order
func validateSortOrder(order string) string {
	switch order {
	case "asc", "ASC":
		return "asc"
	case "desc", "DESC":
		return "desc"
	default:
		return "asc"
	}
}
