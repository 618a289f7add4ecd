package handlers

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/picbest/picbest/internal/store"
)

// ExportHandler streams curated selections out of the collection.
type ExportHandler struct {
	store store.Store
}

// NewExportHandler creates an export handler.
func NewExportHandler(st store.Store) *ExportHandler {
	return &ExportHandler{store: st}
}

// Starred streams a zip archive of all starred photos. Photos whose file has
// gone missing since indexing are skipped with a logged warning rather than
// aborting the download.
func (h *ExportHandler) Starred(w http.ResponseWriter, r *http.Request) {
	photos, err := h.store.ListStarredPhotos(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list starred photos")
		return
	}
	if len(photos) == 0 {
		respondError(w, http.StatusNotFound, "no starred photos to export")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="starred.zip"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()

	// Duplicate basenames across folders get a photo-id prefix.
	seen := make(map[string]bool)
	for _, p := range photos {
		name := filepath.Base(p.FilePath)
		if seen[name] {
			name = fmt.Sprintf("%d_%s", p.ID, name)
		}
		seen[name] = true

		if err := addFileToZip(zw, p.FilePath, name); err != nil {
			log.Printf("warning: failed to export photo %d (%s): %v", p.ID, p.FilePath, err)
		}
	}
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}
