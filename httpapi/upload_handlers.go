package httpapi

import (
	"net/http"
	"strings"

	"collexa/listing"
)

const (
	maxUploadBytes = 5 << 20
	maxUploadForm  = listing.MaxImages * maxUploadBytes
)

// handleUpload accepts multipart image files and stores them, returning the
// url and storage id pairs the listing endpoints expect. Files are streamed
// straight to blob storage, never buffered on disk.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadForm)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondMessage(w, http.StatusBadRequest, "malformed multipart body or payload too large")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondMessage(w, http.StatusBadRequest, "no image files provided")
		return
	}
	if len(files) > listing.MaxImages {
		respondMessage(w, http.StatusBadRequest, "too many files")
		return
	}

	uploaded := make([]imagePayload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			respondMessage(w, http.StatusBadRequest, "file exceeds 5MB limit")
			return
		}
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			respondMessage(w, http.StatusBadRequest, "only image files are accepted")
			return
		}

		f, err := fh.Open()
		if err != nil {
			respondError(w, r, err)
			return
		}

		blob, err := s.blobs.Upload(r.Context(), f, fh.Filename)
		f.Close()
		if err != nil {
			respondError(w, r, err)
			return
		}
		uploaded = append(uploaded, imagePayload{URL: blob.URL, StorageID: blob.StorageID})
	}

	respondData(w, http.StatusCreated, map[string]any{"images": uploaded})
}
