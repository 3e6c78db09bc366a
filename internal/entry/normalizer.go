package entry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/waycore/waykb/internal/chunk"
	"github.com/waycore/waykb/internal/config"
)

// Record is a flat parsed record from a JSON or CSV source.
type Record map[string]any

// SourceMeta identifies where a raw unit came from.
type SourceMeta struct {
	Category   string
	SourceFile string
}

// ChunkMeta identifies where a PDF chunk came from.
type ChunkMeta struct {
	Category   string
	SourceFile string
	Page       int
}

// Normalizer converts raw parsed units into canonical Entries. It is
// constructed from an immutable Config and is safe to share.
type Normalizer struct {
	safety  config.SafetyConfig
	extract config.ExtractConfig
	rules   []Rule
	now     func() time.Time
}

// NewNormalizer creates a Normalizer using the given configuration.
func NewNormalizer(cfg config.Config) *Normalizer {
	n := &Normalizer{
		safety:  cfg.Safety,
		extract: cfg.Extraction,
		now:     time.Now,
	}
	n.rules = []Rule{
		{Name: "plant_record", Apply: n.plantRecord},
		{Name: "flat_record", Apply: n.flatRecord},
	}
	return n
}

// Rules returns the ordered extraction rule names, for diagnostics.
func (n *Normalizer) Rules() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.Name
	}
	return names
}

// FromRecord runs the ordered extraction rules against a record. The
// first rule that claims the record decides the outcome; a claimed
// record may still be dropped (for example, when its assembled content
// is under the minimum length), in which case the second return is
// false.
func (n *Normalizer) FromRecord(rec Record, meta SourceMeta) (*Entry, bool) {
	for _, rule := range n.rules {
		e, claimed := rule.Apply(rec, meta)
		if claimed {
			return e, e != nil
		}
	}
	return nil, false
}

// FromChunk converts a PDF-derived text chunk into an Entry. The title
// is derived from the chunk text; safety level and disclaimers follow
// the category tables.
func (n *Normalizer) FromChunk(text string, meta ChunkMeta) *Entry {
	stem := strings.TrimSuffix(meta.SourceFile, filepath.Ext(meta.SourceFile))

	return &Entry{
		ID:          NewID(),
		Title:       chunk.TitleFromChunk(text),
		Content:     text,
		Category:    meta.Category,
		SafetyLevel: n.DefaultSafety(meta.Category),
		SafetyNotes: n.disclaimer(meta.Category),
		SourceFile:  meta.SourceFile,
		SourcePage:  meta.Page,
		License:     n.extract.DefaultLicense,
		Tags:        []string{meta.Category, stem},
		CreatedAt:   n.now().UTC(),
	}
}

// DefaultSafety returns the category's default safety level.
// Categories absent from the table default to safe.
func (n *Normalizer) DefaultSafety(category string) SafetyLevel {
	if s, ok := n.safety.CategoryDefaults[category]; ok {
		return SafetyLevel(s)
	}
	return SafetySafe
}

// PlantSafety maps an edibility rating to a safety level. Ratings
// outside the table, including the missing-rating zero, map to danger:
// unknown is dangerous by policy.
func (n *Normalizer) PlantSafety(rating int) SafetyLevel {
	if s, ok := n.safety.PlantRatings[rating]; ok {
		return SafetyLevel(s)
	}
	return SafetyDanger
}

// disclaimer returns the fixed disclaimer for categories that carry one.
func (n *Normalizer) disclaimer(category string) string {
	switch category {
	case "plants":
		return PlantSafetyWarning
	case "first_aid":
		return FirstAidDisclaimer
	default:
		return ""
	}
}

// stringField returns the first non-empty string value among the given
// candidate keys.
func stringField(rec Record, candidates ...string) string {
	for _, key := range candidates {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// intField extracts an integer from a record value that may be decoded
// as a float64 (JSON), int, or numeric string (CSV).
func intField(rec Record, key string) (int, bool) {
	v, ok := rec[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// labelFor turns a field name into a human-readable block label:
// "medicinal_uses" becomes "Medicinal Uses".
func labelFor(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// contentBlock formats a labeled content block.
func contentBlock(key string, value string) string {
	return fmt.Sprintf("%s: %s", labelFor(key), value)
}

// sortedKeys returns the record's keys in deterministic order. JSON
// object order is not preserved by decoding, so blocks are assembled
// alphabetically to keep builds reproducible.
func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
