// Package vocab holds the fixed descriptor vocabularies used to assemble image
// prompts. Every category is non-empty; values are read-only.
package vocab

import (
	"math/rand/v2"
	"strings"

	"companion/internal/domain"
)

// Category names a vocabulary pool.
type Category string

const (
	Ethnicity    Category = "ethnicity"
	AgeBand      Category = "age_band"
	FaceShape    Category = "face_shape"
	Imperfection Category = "imperfection"
	Hair         Category = "hair"
	Context      Category = "context"
	Lighting     Category = "lighting"
	Pose         Category = "pose"
	Camera       Category = "camera"
	QualityTag   Category = "quality_tag"
	PhotorealTag Category = "photoreal_tag"
	PaddingTag   Category = "padding_tag"
	NegativeTerm Category = "negative_term"
)

var pools = map[Category][]string{
	Ethnicity: {
		"European", "East Asian", "South Asian", "African",
		"Latina", "Middle-Eastern", "Mixed race", "Southeast Asian",
	},
	// Adults only.
	AgeBand: {
		"early 20s", "mid 20s", "late 20s",
		"early 30s", "mid 30s", "late 30s",
	},
	FaceShape: {
		"oval", "round", "heart-shaped", "square", "diamond-shaped",
	},
	Imperfection: {
		"visible skin pores and natural texture",
		"natural freckles with uneven skin tone",
		"minor blemish with skin texture visible",
		"faint under-eye circles and visible pores",
		"slight redness with detailed skin texture",
		"beauty mark and natural skin imperfections",
		"faded acne scars with visible pores",
	},
	Hair: {
		"wavy hair with individual strands and flyaway hairs",
		"straight hair with flyaway hairs and natural texture",
		"curly messy hair with individual strands visible",
		"loose hair with flyaway strands and natural texture",
		"messy bun with flyaway hairs and stray strands",
	},
	Context: {
		"bedroom with unmade bed",
		"bathroom mirror",
		"car interior driver seat",
		"living room couch",
		"kitchen counter background",
	},
	Lighting: {
		"soft window light from the left side",
		"warm bedside lamp glow from the right",
		"natural afternoon sunlight from a window",
		"diffused overcast daylight from the front",
		"golden hour sunlight from the right",
		"cool morning light through a window",
	},
	Pose: {
		"lying in bed with one hand visible",
		"sitting relaxed with both hands resting naturally",
		"reclining with one hand holding a phone",
		"standing casually facing the camera",
		"lounging with hands in frame",
	},
	Camera: {
		"shot on iPhone 13",
		"shot on iPhone 14 Pro",
		"shot on Samsung Galaxy phone",
		"shot on Google Pixel phone",
	},
	QualityTag: {
		"sharp focus",
		"clear details",
		"crisp image quality",
	},
	PhotorealTag: {
		"raw candid photo",
		"amateur snapshot",
		"natural unedited",
		"photorealistic",
		"hyper-realistic",
		"indistinguishable from real photograph",
	},
	// Ordered longest first so the composer fills coarse gaps before fine ones.
	PaddingTag: {
		"natural skin tones",
		"realistic body proportions",
		"everyday authentic moment",
		"subtle depth of field",
		"true to life colors",
		"natural shadows",
		"realistic fabric texture",
		"lifelike expression",
		"unposed",
		"authentic",
		"unfiltered",
		"lifelike",
		"detailed",
		"organic",
		"genuine",
		"natural",
		"true-to-life",
		"believable",
		"spontaneous",
		"personal",
		"intimate",
		"relaxed",
		"casual",
		"real",
	},
	NegativeTerm: {
		"perfect skin", "airbrushed", "photoshopped", "fake", "artificial",
		"CGI", "3D render", "mannequin", "professional model", "studio lighting",
		"flawless", "idealized", "fantasy", "cartoon", "anime", "illustration",
		"blurry", "low quality", "pixelated", "distorted",
		"extra fingers", "deformed hands",
	},
}

// clothing is keyed by NSFW level. The four sets are pairwise disjoint.
var clothing = map[domain.NSFWLevel][]string{
	domain.NSFWSafe: {
		"wearing a casual cotton t-shirt and jeans",
		"wearing an oversized knit sweater",
		"wearing cozy flannel pajamas",
		"wearing a simple summer sundress",
		"wearing a hoodie and leggings",
	},
	domain.NSFWLingerie: {
		"wearing black lace lingerie",
		"wearing a string bikini",
		"wearing a silk slip and matching underwear",
		"wearing a sheer bralette and panties",
	},
	domain.NSFWTopless: {
		"topless, bare breasts visible",
		"topless, bare chest, wearing only panties",
		"topless, bare breasts, wearing denim shorts",
	},
	domain.NSFWNude: {
		"completely nude, full body naked",
		"fully nude with no clothing",
		"naked, wearing nothing but a necklace",
	},
}

// AnatomyBoilerplate pins anatomical correctness.
const AnatomyBoilerplate = "symmetric face with proportional features, hands with five fingers each"

// NegativePrompt is the fixed negative block. It does not vary by NSFW level.
var NegativePrompt = strings.Join(pools[NegativeTerm], ", ")

// Values lists every value in a category. The returned slice is a copy.
func Values(c Category) []string {
	src := pools[c]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Pick returns one value of the category chosen with rng.
func Pick(c Category, rng *rand.Rand) string {
	src := pools[c]
	if len(src) == 0 {
		return ""
	}
	return src[rng.IntN(len(src))]
}

// Sample returns n distinct values of the category, in random order. When n
// exceeds the pool size the whole pool is returned shuffled.
func Sample(c Category, n int, rng *rand.Rand) []string {
	vals := Values(c)
	rng.Shuffle(len(vals), func(i, j int) { vals[i], vals[j] = vals[j], vals[i] })
	if n < len(vals) {
		vals = vals[:n]
	}
	return vals
}

// Contains reports whether v is a value of the category, ignoring case.
func Contains(c Category, v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range pools[c] {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// Clothing returns the descriptor set for an NSFW level, or nil when the
// level is invalid.
func Clothing(level domain.NSFWLevel) []string {
	src, ok := clothing[level]
	if !ok {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// WordCount counts whitespace-separated words. Commas do not split words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ClothingLevel reports which level's set contains the descriptor.
func ClothingLevel(descriptor string) (domain.NSFWLevel, bool) {
	for level, set := range clothing {
		for _, item := range set {
			if item == descriptor {
				return level, true
			}
		}
	}
	return 0, false
}
