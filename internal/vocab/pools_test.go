package vocab

import (
	"math/rand/v2"
	"testing"

	"companion/internal/domain"
)

func TestPoolsNonEmpty(t *testing.T) {
	for _, c := range []Category{
		Ethnicity, AgeBand, FaceShape, Imperfection, Hair, Context, Lighting,
		Pose, Camera, QualityTag, PhotorealTag, PaddingTag, NegativeTerm,
	} {
		if len(Values(c)) == 0 {
			t.Errorf("category %s is empty", c)
		}
	}
	for level := domain.NSFWSafe; level <= domain.NSFWNude; level++ {
		if len(Clothing(level)) == 0 {
			t.Errorf("clothing level %d is empty", level)
		}
	}
	if Clothing(domain.NSFWLevel(4)) != nil {
		t.Error("invalid level returned clothing")
	}
}

func TestClothingSetsDisjoint(t *testing.T) {
	seen := map[string]domain.NSFWLevel{}
	for level := domain.NSFWSafe; level <= domain.NSFWNude; level++ {
		for _, item := range Clothing(level) {
			if prev, ok := seen[item]; ok {
				t.Fatalf("%q in levels %d and %d", item, prev, level)
			}
			seen[item] = level
			got, ok := ClothingLevel(item)
			if !ok || got != level {
				t.Fatalf("ClothingLevel(%q) = %d, %v", item, got, ok)
			}
		}
	}
}

func TestSampleDistinct(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		got := Sample(Imperfection, 2, rng)
		if len(got) != 2 || got[0] == got[1] {
			t.Fatalf("Sample = %v", got)
		}
	}
	if n := len(Sample(FaceShape, 100, rng)); n != len(Values(FaceShape)) {
		t.Fatalf("oversized sample returned %d values", n)
	}
}

func TestValuesReturnsCopy(t *testing.T) {
	v := Values(Camera)
	v[0] = "mutated"
	if Values(Camera)[0] == "mutated" {
		t.Fatal("Values exposed the pool")
	}
	if !Contains(Camera, "  SHOT ON IPHONE 13 ") {
		t.Fatal("Contains should ignore case and space")
	}
}

func TestNegativePromptFixed(t *testing.T) {
	if WordCount(NegativePrompt) < len(Values(NegativeTerm)) {
		t.Fatal("negative prompt missing terms")
	}
	if WordCount("a, b  c") != 3 {
		t.Fatal("WordCount")
	}
}
