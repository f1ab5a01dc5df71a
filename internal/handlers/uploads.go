package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/storefrontapp/storefront/internal/media"
)

const multipartMemory = 32 << 20

// UploadMedia stores every file of the "images" field. The batch succeeds or
// fails as a whole.
func (h *Handlers) UploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.media == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Media uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(media.MaxFiles*media.MaxFileBytes)+maxJSONBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["images"]
	if len(headers) > media.MaxFiles {
		writeMessage(w, http.StatusBadRequest, media.ErrTooManyFiles.Error())
		return
	}

	files := make([]media.File, 0, len(headers))
	for _, header := range headers {
		if header.Size > media.MaxFileBytes {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", header.Filename, media.ErrFileTooLarge))
			return
		}
		f, err := header.Open()
		if err != nil {
			h.writeError(w, r, fmt.Errorf("failed to open upload %s: %w", header.Filename, err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, media.MaxFileBytes+1))
		_ = f.Close()
		if err != nil {
			h.writeError(w, r, fmt.Errorf("failed to read upload %s: %w", header.Filename, err))
			return
		}
		files = append(files, media.File{Name: header.Filename, Data: data})
	}

	assets, err := h.media.UploadAll(ctx, r.FormValue("folder"), files)
	if err != nil {
		if isUploadRejection(err) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.loggerFromContext(ctx).Info("media uploaded", "count", len(assets))
	writeJSON(w, http.StatusCreated, map[string]any{"files": assets})
}

func isUploadRejection(err error) bool {
	return errors.Is(err, media.ErrNoFiles) ||
		errors.Is(err, media.ErrTooManyFiles) ||
		errors.Is(err, media.ErrFileTooLarge) ||
		errors.Is(err, media.ErrUnsupportedImage)
}
