// Package plan describes the subscription tiers and what each of them unlocks.
package plan

import (
	"github.com/pkg/errors"
)

// Tier is a subscription level.
type Tier string

// Tiers, from the least to the most capable.
const (
	Free     Tier = "free"
	Standard Tier = "standard"
	Pluss    Tier = "pluss"
	Premium  Tier = "premium"
)

// BookingType is the kind of session a booking reserves.
type BookingType string

const (
	Consultation BookingType = "consultation"
	Assessment   BookingType = "assessment"
	Lesson       BookingType = "lesson"
)

var (
	ErrUnknownTier        = errors.New("unknown plan type")
	ErrUnknownBookingType = errors.New("unknown booking type")

	// Tiers lists every tier in capability order.
	Tiers = []Tier{Free, Standard, Pluss, Premium}

	// BookingTypes lists every booking type.
	BookingTypes = []BookingType{Consultation, Assessment, Lesson}
)

// Features is what a tier unlocks.
type Features struct {
	BookingTypes        []BookingType `json:"booking_types"`
	MaxBookingsPerMonth int           `json:"max_bookings_per_month"`
	Labels              []string      `json:"features"`
}

// Allows reports whether bt is one of the unlocked booking types.
func (f Features) Allows(bt BookingType) bool {
	for _, allowed := range f.BookingTypes {
		if allowed == bt {
			return true
		}
	}
	return false
}

func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", ErrUnknownTier
	}
	return t, nil
}

func (t Tier) Valid() bool {
	switch t {
	case Free, Standard, Pluss, Premium:
		return true
	}
	return false
}

// Rank orders tiers by capability (free is 0). Invalid tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case Free:
		return 0
	case Standard:
		return 1
	case Pluss:
		return 2
	case Premium:
		return 3
	}
	return -1
}

// Label is the tier's display name.
func (t Tier) Label() string {
	switch t {
	case Free:
		return "Gratis"
	case Standard:
		return "Standard"
	case Pluss:
		return "Pluss"
	case Premium:
		return "Premium"
	}
	return string(t)
}

// Features returns what t unlocks. Invalid tiers get nothing.
func (t Tier) Features() Features {
	switch t {
	case Free:
		return Features{
			BookingTypes:        []BookingType{Consultation},
			MaxBookingsPerMonth: 1,
			Labels:              []string{"Gratis konsultasjon"},
		}
	case Standard:
		return Features{
			BookingTypes:        []BookingType{Consultation, Assessment},
			MaxBookingsPerMonth: 2,
			Labels:              []string{"Konsultasjon", "Kartleggingsprøve", "2 timer/måned"},
		}
	case Pluss:
		return Features{
			BookingTypes:        []BookingType{Consultation, Assessment, Lesson},
			MaxBookingsPerMonth: 4,
			Labels:              []string{"Alle typer timer", "4 timer/måned", "Læringsrapport"},
		}
	case Premium:
		return Features{
			BookingTypes:        []BookingType{Consultation, Assessment, Lesson},
			MaxBookingsPerMonth: 8,
			Labels:              []string{"Alle typer timer", "8 timer/måned", "Læringsrapport", "Prioritert support"},
		}
	}
	return Features{}
}

// FeaturesFor is the lookup by stored plan value.
func FeaturesFor(tier Tier) Features {
	return tier.Features()
}

// Allows reports whether tier unlocks bt.
func Allows(tier Tier, bt BookingType) bool {
	return tier.Features().Allows(bt)
}

// MinimumTier returns the least capable tier unlocking bt.
func MinimumTier(bt BookingType) (Tier, error) {
	for _, t := range Tiers {
		if Allows(t, bt) {
			return t, nil
		}
	}
	return "", ErrUnknownBookingType
}

func ParseBookingType(s string) (BookingType, error) {
	bt := BookingType(s)
	if !bt.Valid() {
		return "", ErrUnknownBookingType
	}
	return bt, nil
}

func (bt BookingType) Valid() bool {
	switch bt {
	case Consultation, Assessment, Lesson:
		return true
	}
	return false
}

// CatalogueEntry is a tier with its label and features.
type CatalogueEntry struct {
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
	Features
}

// Catalogue lists every tier with its features.
func Catalogue() []CatalogueEntry {
	entries := make([]CatalogueEntry, 0, len(Tiers))
	for _, t := range Tiers {
		entries = append(entries, CatalogueEntry{Tier: t, Label: t.Label(), Features: t.Features()})
	}
	return entries
}
