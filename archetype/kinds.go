package archetype

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Kinds used by the built-in workflows.
const (
	KindCustomer      = "party.customerperson"
	KindPatient       = "party.patientpet"
	KindSupplier      = "party.supplierorganisation"
	KindProduct       = "product.medication"
	KindPractice      = "party.organisationPractice"
	KindLocation      = "party.organisationLocation"
	KindStockLocation = "party.organisationStockLocation"
	KindTill          = "party.organisationTill"
	KindDeposit       = "party.organisationDeposit"
	KindUser          = "security.user"
	KindSchedule      = "party.organisationSchedule"
	KindWorkList      = "party.organisationWorkList"
	KindAppointment   = "act.customerAppointment"
	KindCustomerTask  = "act.customerTask"
	KindClinicalEvent = "act.patientClinicalEvent"
	KindPatientWeight = "act.patientWeight"
	KindInvoice       = "act.customerAccountChargesInvoice"
)

// Matches reports whether kind matches a short-name pattern such as
// "party.customer*" or "act.*". A malformed pattern matches nothing.
func Matches(kind, pattern string) bool {
	if pattern == kind {
		return true
	}
	ok, err := doublestar.Match(pattern, kind)
	return err == nil && ok
}

// MatchesAny reports whether kind matches at least one pattern.
func MatchesAny(kind string, patterns ...string) bool {
	for _, p := range patterns {
		if Matches(kind, p) {
			return true
		}
	}
	return false
}
