package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"schemagen/internal/adapter/repo"
	"schemagen/internal/domain"
	"schemagen/pkg/zip"
)

// ListResults handles GET /results. With ?id= it returns a single record.
func (a *App) ListResults(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			a.error(w, http.StatusBadRequest, "Invalid result id", err)
			return
		}
		res, err := a.Results.GetByID(r.Context(), id)
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "Result not found", nil)
			return
		}
		if err != nil {
			a.log().Error().Err(err).Int64("result_id", id).Msg("load result")
			a.error(w, http.StatusInternalServerError, "Failed to load result", err)
			return
		}
		a.json(w, http.StatusOK, res)
		return
	}

	rows, err := a.Results.ListAll(r.Context())
	if err != nil {
		a.log().Error().Err(err).Msg("list results")
		a.error(w, http.StatusInternalServerError, "Failed to load results", err)
		return
	}
	if rows == nil {
		rows = []domain.StoredResult{}
	}
	a.json(w, http.StatusOK, rows)
}

// ExportResults handles GET /results/export and returns every stored result
// as one JSON file per row inside a zip archive.
func (a *App) ExportResults(w http.ResponseWriter, r *http.Request) {
	rows, err := a.Results.ListAll(r.Context())
	if err != nil {
		a.log().Error().Err(err).Msg("export results")
		a.error(w, http.StatusInternalServerError, "Failed to load results", err)
		return
	}
	entries, err := repo.ArchiveEntries(rows)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "Failed to export results", err)
		return
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "Failed to export results", err)
		return
	}
	filename := "schema-results-" + time.Now().UTC().Format("20060102-150405") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
