package appcontext

import (
	"github.com/nomis52/vetflow/archetype"
)

// Key names a context slot. Well-known keys are kind patterns, so the key
// itself says which objects it may hold. Any other key is an archetype short
// name and holds objects of exactly that kind.
type Key string

// Well-known slots.
const (
	Practice      Key = "party.organisationPractice"
	Location      Key = "party.organisationLocation"
	StockLocation Key = "party.organisationStockLocation"
	Customer      Key = "party.customer*"
	Patient       Key = "party.patient*"
	Supplier      Key = "party.supplier*"
	Product       Key = "product.*"
	Till          Key = "party.organisationTill"
	Deposit       Key = "party.organisationDeposit"
	Clinician     Key = "security.user"
	Schedule      Key = "party.organisationSchedule"
	WorkList      Key = "party.organisationWorkList"

	// User is the logged-in user. It is distinct from Clinician even though
	// both hold security.user objects.
	User Key = "user"
	// Current is the object being edited. It accepts any kind.
	Current Key = "current"
)

// routed lists the slots Add considers, in priority order.
var routed = []Key{
	Practice, Location, StockLocation,
	Customer, Patient, Supplier, Product,
	Till, Deposit, Clinician, Schedule, WorkList,
}

// DateKey names a date slot.
type DateKey string

const (
	ScheduleDate DateKey = "scheduleDate"
	WorkListDate DateKey = "workListDate"
)

// Accepts reports whether obj may be stored under k.
func (k Key) Accepts(kind string) bool {
	switch k {
	case Current:
		return true
	case User:
		return kind == archetype.KindUser
	}
	return archetype.Matches(kind, string(k))
}

// KeyFor returns the slot Add would route a kind to.
func KeyFor(kind string) Key {
	for _, k := range routed {
		if k.Accepts(kind) {
			return k
		}
	}
	return Key(kind)
}
