package handlers

import (
	"net/http"
	"strings"

	"companion/internal/domain"
	"companion/internal/domain/jsoncfg"
)

type promptComposeRequest struct {
	Text      string                      `json:"text"`
	Character *domain.CharacterAttributes `json:"character"`
}

// PromptCompose runs extraction and composition without rendering.
func (a *App) PromptCompose(w http.ResponseWriter, r *http.Request) {
	var req promptComposeRequest
	if !a.decode(w, r, &req) {
		return
	}
	comp, err := a.Pipeline.ComposeOnly(r.Context(), req.Text, req.Character)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, comp)
}

func (a *App) PromptValidate(w http.ResponseWriter, r *http.Request) {
	var req jsoncfg.ValidateJSON
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PositivePrompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "positive_prompt is required")
		return
	}
	report := a.Pipeline.Validate(domain.PromptBundle{
		PositivePrompt: req.PositivePrompt,
		NegativePrompt: req.NegativePrompt,
		NSFWLevel:      domain.NSFWLevel(req.NSFWLevel),
	})
	a.json(w, http.StatusOK, report)
}
