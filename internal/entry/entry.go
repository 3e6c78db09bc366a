// Package entry defines the Entry data model and the normalizer that
// converts parsed source units (PDF chunks, JSON/CSV records) into
// canonical Entries with safety and category metadata.
package entry

import (
	"time"

	"github.com/google/uuid"
)

// SafetyLevel is the ordered safety classification of an Entry:
// safe < caution < warning < danger < lethal.
type SafetyLevel string

const (
	SafetySafe    SafetyLevel = "safe"
	SafetyCaution SafetyLevel = "caution"
	SafetyWarning SafetyLevel = "warning"
	SafetyDanger  SafetyLevel = "danger"
	SafetyLethal  SafetyLevel = "lethal"
)

// safetyRank orders levels for comparison.
var safetyRank = map[SafetyLevel]int{
	SafetySafe:    0,
	SafetyCaution: 1,
	SafetyWarning: 2,
	SafetyDanger:  3,
	SafetyLethal:  4,
}

// Valid reports whether l is one of the defined safety levels.
func (l SafetyLevel) Valid() bool {
	_, ok := safetyRank[l]
	return ok
}

// AtLeast reports whether l is at least as severe as other.
func (l SafetyLevel) AtLeast(other SafetyLevel) bool {
	return safetyRank[l] >= safetyRank[other]
}

// Entry is one retrievable unit of knowledge.
type Entry struct {
	// ID is an opaque unique token assigned at creation. It is stored
	// as a column but is not the cross-index key; the SQLite rowid is.
	ID string

	Title   string
	Content string

	// Category is the domain partition (survival, plants, ...), taken
	// from the source subdirectory name.
	Category    string
	Subcategory string

	// SafetyLevel is always assigned, never left empty.
	SafetyLevel SafetyLevel
	SafetyNotes string

	SourceFile string
	SourcePage int // 0 means unknown
	SourceURL  string
	License    string
	Tags       []string

	// CreatedAt is set once at creation.
	CreatedAt time.Time
}

// NewID returns a short opaque entry identifier: the first eight hex
// characters of a random UUID.
func NewID() string {
	return uuid.NewString()[:8]
}

// Fixed disclaimers attached by the normalizer. The plant warning is
// mandatory for every plant entry regardless of edibility rating.
const (
	PlantSafetyWarning = "SAFETY WARNING: Never consume any plant based solely on this information. " +
		"Always verify identification with multiple authoritative sources. " +
		"Many plants have toxic look-alikes. When in doubt, do NOT eat it."

	FirstAidDisclaimer = "This information is for educational purposes. " +
		"Seek professional medical help when possible."
)
