package handlers

import "net/http"

func (a *App) Metrics(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, a.Pipeline.Stats())
}
