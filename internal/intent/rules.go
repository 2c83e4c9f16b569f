package intent

import (
	"context"
	"strings"

	"companion/internal/domain"
)

// RuleExtractor is the keyword engine. It is deterministic and safe for
// concurrent use.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Extract implements Extractor.
func (r *RuleExtractor) Extract(_ context.Context, raw string, attrs *domain.CharacterAttributes) domain.RequestIntent {
	out := domain.DefaultIntent()
	text := Normalize(raw)
	tokens := tokenize(text)

	out.Objects = objectTable.names(tokens)
	out.Location = locationTable.first(tokens)
	out.ClothingHint = clothingTable.first(tokens)
	out.Action = deriveAction(actionTable.first(tokens), out.Objects)
	if out.Action == "taking selfie" && !contains(out.Objects, "phone") {
		out.Objects = append(out.Objects, "phone")
	}
	if m := moodTable.first(tokens); m != "" {
		out.Mood = domain.Mood(m)
	}

	textLevel, textMatched := inferLevel(tokens)
	if textMatched {
		out.NSFWLevel = textLevel
	}
	if out.NSFWLevel < domain.NSFWLingerie && suggestiveAction(out.Action) {
		out.NSFWLevel = domain.NSFWLingerie
		textMatched = true
	}

	if minorRe.MatchString(text) {
		out.Blocked = true
		out.BlockReason = "request references a minor"
	}

	applyCharacter(&out, attrs, textMatched)
	return out
}

// deriveAction fills the verb when only objects were found and binds
// "sucking" to its object.
func deriveAction(action string, objects []string) string {
	switch {
	case action == "sucking" && len(objects) > 0:
		return "sucking " + objects[0]
	case action == "" && len(objects) > 0:
		if wearables[objects[0]] {
			return "wearing"
		}
		return "holding"
	}
	return action
}

func suggestiveAction(action string) bool {
	return strings.HasPrefix(action, "sucking") || action == "biting lip"
}

// inferLevel returns the highest level whose keywords appear in the text.
func inferLevel(tokens []string) (domain.NSFWLevel, bool) {
	for _, level := range []domain.NSFWLevel{domain.NSFWNude, domain.NSFWTopless, domain.NSFWLingerie} {
		if len(nsfwTables[level].matchAll(tokens)) > 0 {
			return level, true
		}
	}
	return domain.NSFWSafe, false
}

// OutfitLevel classifies an explicit outfit string. ok is false when the
// outfit names no recognized class.
func OutfitLevel(outfit string) (domain.NSFWLevel, bool) {
	tokens := tokenize(Normalize(outfit))
	if len(tokens) == 0 {
		return domain.NSFWSafe, false
	}
	for _, level := range []domain.NSFWLevel{domain.NSFWNude, domain.NSFWTopless, domain.NSFWLingerie} {
		if len(outfitTable[level].matchAll(tokens)) > 0 {
			return level, true
		}
	}
	return domain.NSFWSafe, false
}

// applyCharacter folds character attributes into the intent. Outfit class
// beats text inference, which beats the personality default.
func applyCharacter(out *domain.RequestIntent, attrs *domain.CharacterAttributes, textMatched bool) {
	if attrs == nil {
		return
	}
	if outfit := strings.TrimSpace(attrs.Outfit); outfit != "" {
		if level, ok := OutfitLevel(outfit); ok {
			out.NSFWLevel = level
			textMatched = true
		}
		if out.ClothingHint == "" {
			out.ClothingHint = outfit
		}
	}
	persona := tokenize(Normalize(attrs.Personality + " " + strings.Join(attrs.Traits, " ")))
	if !textMatched && len(personalityTable.matchAll(persona)) > 0 {
		out.NSFWLevel = domain.NSFWLingerie
	}
	if out.Mood == domain.MoodNeutral {
		if m := moodTable.first(persona); m != "" {
			out.Mood = domain.Mood(m)
		}
	}

	if e := strings.TrimSpace(attrs.Ethnicity); e != "" {
		out.Appearance.Ethnicity = e
	}
	if h := strings.TrimSpace(attrs.Hair); h != "" {
		out.Appearance.Hair = h
	}
	switch {
	case attrs.Age <= 0:
	case attrs.Age < 18:
		out.Blocked = true
		out.BlockReason = "character is under 18"
	default:
		out.Appearance.AgeBand = AgeBand(attrs.Age)
	}
}

// AgeBand maps an adult age onto the nearest vocabulary age band.
func AgeBand(age int) string {
	switch {
	case age < 24:
		return "early 20s"
	case age < 27:
		return "mid 20s"
	case age < 30:
		return "late 20s"
	case age < 34:
		return "early 30s"
	case age < 37:
		return "mid 30s"
	default:
		return "late 30s"
	}
}

// ApplyOutfitPrecedence re-applies the outfit rule to an intent produced
// elsewhere.
func ApplyOutfitPrecedence(in domain.RequestIntent, attrs *domain.CharacterAttributes) domain.RequestIntent {
	if attrs == nil {
		return in
	}
	if level, ok := OutfitLevel(attrs.Outfit); ok {
		in.NSFWLevel = level
	}
	return in
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
