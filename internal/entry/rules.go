package entry

import (
	"strings"
)

// Rule is a named, pure extraction rule: it maps a raw record to an
// optional Entry. Rules are tried in order; the first rule that claims
// a record decides its fate, including dropping it. This replaces
// duck-typed "does this look like an entry" checks with an explicit
// dispatch list.
type Rule struct {
	Name string
	// Apply returns the extracted entry (nil when the record is
	// dropped) and whether this rule claims the record.
	Apply func(rec Record, meta SourceMeta) (*Entry, bool)
}

// minPlantContent is the minimum assembled description length for a
// plant record; shorter records are dropped.
const minPlantContent = 100

// minFieldLength is the shortest string field value included as a
// labeled content block.
const minFieldLength = 10

// plantRecord extracts a plant database record. It only applies to the
// plants category. Safety level comes from the edibility rating table
// rather than the category default, and the fixed safety warning is
// always attached regardless of rating.
func (n *Normalizer) plantRecord(rec Record, meta SourceMeta) (*Entry, bool) {
	if meta.Category != "plants" {
		return nil, false
	}

	commonName := stringField(rec, "common_name", "CommonName", "name", "vernacular_name")
	if commonName == "" {
		commonName = "Unknown Plant"
	}
	scientificName := stringField(rec, "scientific_name", "ScientificName", "latin_name", "binomial")
	family := stringField(rec, "family", "Family", "plant_family")

	var blocks []string
	if scientificName != "" {
		blocks = append(blocks, contentBlock("scientific_name", scientificName))
	}
	if family != "" {
		blocks = append(blocks, contentBlock("family", family))
	}
	for _, field := range []string{"description", "physical_characteristics", "growth_habit", "leaves", "flowers", "fruit"} {
		if v := stringField(rec, field); v != "" {
			blocks = append(blocks, contentBlock(field, v))
		}
	}
	if edibility := stringField(rec, "edibility", "edible_parts", "uses_edible"); edibility != "" {
		blocks = append(blocks, contentBlock("edibility", edibility))
	}
	if medicinal := stringField(rec, "medicinal_uses", "medicinal", "uses_medicinal"); medicinal != "" {
		blocks = append(blocks, contentBlock("medicinal_uses", medicinal))
	}
	if habitat := stringField(rec, "habitat", "native_range", "distribution"); habitat != "" {
		blocks = append(blocks, contentBlock("habitat", habitat))
	}

	content := strings.Join(blocks, "\n\n")
	if len(content) < minPlantContent {
		// Claimed but dropped: plant records never fall through to
		// the generic rule.
		return nil, true
	}

	// Missing rating maps to zero: unknown is dangerous by policy.
	rating, _ := intField(rec, "edibility_rating")

	return &Entry{
		ID:          NewID(),
		Title:       commonName,
		Content:     content,
		Category:    meta.Category,
		SafetyLevel: n.PlantSafety(rating),
		SafetyNotes: PlantSafetyWarning,
		SourceFile:  meta.SourceFile,
		License:     n.extract.DefaultLicense,
		Tags:        []string{meta.Category},
		CreatedAt:   n.now().UTC(),
	}, true
}

// flatRecord extracts a generic flat record: the title comes from the
// prioritized candidate list, and remaining string fields above the
// minimum length are assembled into labeled content blocks. Records
// whose content falls under the configured minimum are dropped.
func (n *Normalizer) flatRecord(rec Record, meta SourceMeta) (*Entry, bool) {
	title := stringField(rec, n.extract.TitleFields...)
	if title == "" {
		title = "Untitled Entry"
	}

	titleKeys := make(map[string]bool, len(n.extract.TitleFields)+1)
	for _, f := range n.extract.TitleFields {
		titleKeys[f] = true
	}
	titleKeys["id"] = true

	var blocks []string
	for _, key := range sortedKeys(rec) {
		if titleKeys[strings.ToLower(key)] {
			continue
		}
		switch v := rec[key].(type) {
		case string:
			if len(v) > minFieldLength {
				blocks = append(blocks, contentBlock(key, v))
			}
		case []any:
			var items []string
			for _, item := range v {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			if len(items) > 0 && len(items) == len(v) {
				blocks = append(blocks, contentBlock(key, strings.Join(items, ", ")))
			}
		}
	}

	content := strings.Join(blocks, "\n\n")
	if len(content) < n.extract.MinContentLength {
		return nil, true
	}

	return &Entry{
		ID:          NewID(),
		Title:       title,
		Content:     content,
		Category:    meta.Category,
		SafetyLevel: n.DefaultSafety(meta.Category),
		SafetyNotes: n.disclaimer(meta.Category),
		SourceFile:  meta.SourceFile,
		License:     n.extract.DefaultLicense,
		Tags:        []string{meta.Category},
		CreatedAt:   n.now().UTC(),
	}, true
}
