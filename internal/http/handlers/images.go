package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"companion/internal/domain"
	"companion/internal/domain/jsoncfg"
	"companion/internal/middleware"
	"companion/internal/pipeline"
	"companion/pkg/zip"
)

// imageView is the public shape of an ImageRecord. Scores stay internal.
type imageView struct {
	ID             string           `json:"id"`
	CharacterID    string           `json:"character_id"`
	Prompt         string           `json:"prompt"`
	NegativePrompt string           `json:"negative_prompt"`
	NSFWLevel      domain.NSFWLevel `json:"nsfw_level"`
	MIME           string           `json:"mime"`
	Bytes          int64            `json:"bytes"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	URL            string           `json:"url"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toView(rec domain.ImageRecord) imageView {
	return imageView{
		ID:             rec.ID,
		CharacterID:    rec.CharacterID,
		Prompt:         rec.Prompt,
		NegativePrompt: rec.NegativePrompt,
		NSFWLevel:      rec.NSFWLevel,
		MIME:           rec.MIME,
		Bytes:          rec.Bytes,
		Width:          rec.Width,
		Height:         rec.Height,
		URL:            "/v1/images/" + rec.ID + "/content",
		CreatedAt:      rec.CreatedAt,
	}
}

func toViews(recs []domain.ImageRecord) []imageView {
	out := make([]imageView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toView(rec))
	}
	return out
}

func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	var req jsoncfg.GenerateJSON
	if !a.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	genReq := pipeline.GenerateRequest{
		CharacterID: req.CharacterID,
		Text:        req.Text,
		Character:   req.Character,
		Width:       req.Width,
		Height:      req.Height,
		Model:       req.Model,
		Count:       req.Count,
		RequestID:   middleware.RequestIDFromContext(r.Context()),
	}
	if req.Count <= 1 {
		rec, err := a.Pipeline.Generate(r.Context(), genReq)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusCreated, map[string]any{"items": []imageView{toView(*rec)}})
		return
	}
	res, err := a.Pipeline.GenerateBatch(r.Context(), genReq)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"items":  toViews(res.Images),
		"failed": len(res.Errors),
	})
}

func (a *App) ImageGet(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Pipeline.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toView(*rec))
}

func (a *App) ImageContent(w http.ResponseWriter, r *http.Request) {
	rec, data, err := a.Pipeline.Content(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", rec.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) ImageDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Pipeline.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CharacterImages lists a character's gallery, newest first.
func (a *App) CharacterImages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	recs, err := a.Pipeline.List(r.Context(), chi.URLParam(r, "character_id"), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": toViews(recs), "limit": limit, "offset": offset})
}

// CharacterArchive downloads a page of the gallery as a zip archive.
func (a *App) CharacterArchive(w http.ResponseWriter, r *http.Request) {
	characterID := chi.URLParam(r, "character_id")
	recs, err := a.Pipeline.List(r.Context(), characterID, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets := make([]zip.Asset, 0, len(recs))
	for _, rec := range recs {
		_, data, err := a.Pipeline.Content(r.Context(), rec.ID)
		if err != nil {
			a.Logger.Warn().Err(err).Str("image_id", rec.ID).Msg("archive: skipping image")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: rec.ID + extensionOf(rec.MIME),
			MIME:     rec.MIME,
			Data:     data,
			Modified: rec.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "gallery-"+sanitizeFilename(characterID)+".zip"))
	w.WriteHeader(http.StatusOK)
	if err := zip.WriteArchive(w, assets); err != nil {
		a.Logger.Error().Err(err).Str("character_id", characterID).Msg("archive: write failed")
	}
}

func extensionOf(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func sanitizeFilename(s string) string {
	out := []rune(s)
	for i, r := range out {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			out[i] = '_'
		}
	}
	return string(out)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
