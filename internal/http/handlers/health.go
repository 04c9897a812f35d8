package handlers

import (
	"net/http"

	"schemagen/internal/generation"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"prompt_version": generation.PromptVersion,
	})
}
