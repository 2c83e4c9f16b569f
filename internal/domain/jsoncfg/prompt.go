package jsoncfg

import (
	"fmt"
	"strings"

	"companion/internal/domain"
)

// GenerateJSON is the request contract for prompt composition and image
// generation.
type GenerateJSON struct {
	CharacterID string                      `json:"character_id"`
	Text        string                      `json:"text"`
	Character   *domain.CharacterAttributes `json:"character,omitempty"`
	Width       int                         `json:"width"`
	Height      int                         `json:"height"`
	Model       string                      `json:"model"`
	Count       int                         `json:"count"`
}

const (
	// DefaultImageWidth is applied when the request omits the width.
	DefaultImageWidth = 1024
	// DefaultImageHeight is applied when the request omits the height.
	DefaultImageHeight = 1024
	// MinImageSide and MaxImageSide bound both dimensions.
	MinImageSide = 256
	MaxImageSide = 2048
	// DefaultCount is the number of images rendered per request.
	DefaultCount = 1
	// MaxCount caps the images rendered per request.
	MaxCount = 4
	// MaxTextLength bounds the request text kept for extraction.
	MaxTextLength = 4000
)

// Normalize applies server defaults and limits.
func (g *GenerateJSON) Normalize() {
	if g == nil {
		return
	}
	g.CharacterID = strings.TrimSpace(g.CharacterID)
	g.Model = strings.TrimSpace(g.Model)
	if g.Width <= 0 {
		g.Width = DefaultImageWidth
	}
	if g.Height <= 0 {
		g.Height = DefaultImageHeight
	}
	if g.Count <= 0 {
		g.Count = DefaultCount
	}
	if g.Count > MaxCount {
		g.Count = MaxCount
	}
	if r := []rune(g.Text); len(r) > MaxTextLength {
		g.Text = string(r[:MaxTextLength])
	}
}

// Validate checks the contract after Normalize.
func (g GenerateJSON) Validate() error {
	if g.CharacterID == "" {
		return fmt.Errorf("character_id is required")
	}
	if g.Width < MinImageSide || g.Width > MaxImageSide {
		return fmt.Errorf("width must be between %d and %d", MinImageSide, MaxImageSide)
	}
	if g.Height < MinImageSide || g.Height > MaxImageSide {
		return fmt.Errorf("height must be between %d and %d", MinImageSide, MaxImageSide)
	}
	if g.Count < 1 || g.Count > MaxCount {
		return fmt.Errorf("count must be between 1 and %d", MaxCount)
	}
	if g.Character != nil && g.Character.Age != 0 && g.Character.Age < 18 {
		return fmt.Errorf("character age must be 18 or older")
	}
	return nil
}

// ValidateJSON is the request contract for standalone prompt validation.
type ValidateJSON struct {
	PositivePrompt string `json:"positive_prompt"`
	NegativePrompt string `json:"negative_prompt"`
	NSFWLevel      int    `json:"nsfw_level"`
}
