package domain

import (
	"fmt"
	"strings"
)

// NSFWLevel denotes escalating explicitness. It is the only input that decides
// clothing explicitness in a composed prompt.
type NSFWLevel int

const (
	NSFWSafe     NSFWLevel = 0
	NSFWLingerie NSFWLevel = 1
	NSFWTopless  NSFWLevel = 2
	NSFWNude     NSFWLevel = 3
)

// Valid reports whether the level is inside 0..3.
func (l NSFWLevel) Valid() bool {
	return l >= NSFWSafe && l <= NSFWNude
}

func (l NSFWLevel) String() string {
	switch l {
	case NSFWSafe:
		return "safe"
	case NSFWLingerie:
		return "lingerie"
	case NSFWTopless:
		return "topless"
	case NSFWNude:
		return "nude"
	default:
		return fmt.Sprintf("invalid(%d)", int(l))
	}
}

// Mood is the scene mood tag derived from a request.
type Mood string

const (
	MoodNeutral   Mood = "neutral"
	MoodSeductive Mood = "seductive"
	MoodPlayful   Mood = "playful"
	MoodShy       Mood = "shy"
	MoodConfident Mood = "confident"
	MoodRomantic  Mood = "romantic"
)

// NormalizeMood maps free-form input onto a known mood, defaulting to neutral.
func NormalizeMood(v string) Mood {
	switch Mood(strings.ToLower(strings.TrimSpace(v))) {
	case MoodSeductive:
		return MoodSeductive
	case MoodPlayful:
		return MoodPlayful
	case MoodShy:
		return MoodShy
	case MoodConfident:
		return MoodConfident
	case MoodRomantic:
		return MoodRomantic
	default:
		return MoodNeutral
	}
}

// Appearance carries explicit values for the descriptive slots. Empty fields
// are sampled from the vocabulary pools by the composer.
type Appearance struct {
	Ethnicity    string `json:"ethnicity,omitempty"`
	AgeBand      string `json:"age_band,omitempty"`
	FaceShape    string `json:"face_shape,omitempty"`
	Imperfection string `json:"imperfection,omitempty"`
	Hair         string `json:"hair,omitempty"`
	Lighting     string `json:"lighting,omitempty"`
	Camera       string `json:"camera,omitempty"`
}

// RequestIntent is the normalized interpretation of one image request. It is
// built per request, consumed once by the composer and then discarded.
type RequestIntent struct {
	NSFWLevel    NSFWLevel  `json:"nsfw_level"`
	Objects      []string   `json:"objects"`
	Action       string     `json:"action,omitempty"`
	Location     string     `json:"location,omitempty"`
	PoseHint     string     `json:"pose_hint,omitempty"`
	ClothingHint string     `json:"clothing_hint,omitempty"`
	Mood         Mood       `json:"mood"`
	Appearance   Appearance `json:"appearance"`
	// Blocked is set when the request references minors. Blocked intents are
	// never composed.
	Blocked     bool   `json:"blocked,omitempty"`
	BlockReason string `json:"block_reason,omitempty"`
}

// DefaultIntent is the degraded result for empty or unparseable input.
func DefaultIntent() RequestIntent {
	return RequestIntent{NSFWLevel: NSFWSafe, Mood: MoodNeutral}
}

// CharacterAttributes are optional structured hints supplied alongside the
// raw request text.
type CharacterAttributes struct {
	Name        string   `json:"name,omitempty"`
	Outfit      string   `json:"outfit,omitempty"`
	Personality string   `json:"personality,omitempty"`
	Traits      []string `json:"traits,omitempty"`
	Age         int      `json:"age,omitempty"`
	Ethnicity   string   `json:"ethnicity,omitempty"`
	Hair        string   `json:"hair,omitempty"`
}
