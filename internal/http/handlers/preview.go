package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/sambee/sambee/internal/preview"
	"github.com/sambee/sambee/internal/storage"
)

// PreviewHandler serves file bytes from shares: originals for downloads and
// pass-through formats, converted previews for everything else.
type PreviewHandler struct {
	store        *storage.Store
	converter    *preview.Converter
	maxInputSize int64
	logger       *slog.Logger
}

// NewPreviewHandler creates a new preview handler.
func NewPreviewHandler(store *storage.Store, converter *preview.Converter, maxInputSize int64, logger *slog.Logger) *PreviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewHandler{
		store:        store,
		converter:    converter,
		maxInputSize: maxInputSize,
		logger:       logger.With(slog.String("component", "preview-handler")),
	}
}

// RegisterFileServer registers the raw byte-serving routes. These bypass the
// OpenAPI layer: they stream file content, not JSON.
func (h *PreviewHandler) RegisterFileServer(router chi.Router) {
	router.Get("/api/shares/{share}/preview", h.ServePreview)
	router.Head("/api/shares/{share}/preview", h.ServePreview)
	router.Get("/api/shares/{share}/download", h.ServeDownload)
	router.Head("/api/shares/{share}/download", h.ServeDownload)
}

// ServePreview serves a browser-displayable rendition of a file. Formats the
// browser handles natively stream unchanged; convertible formats go through
// the conversion pipeline.
func (h *PreviewHandler) ServePreview(w http.ResponseWriter, r *http.Request) {
	share, rel, ok := h.lookup(w, r)
	if !ok {
		return
	}

	filename := path.Base(rel)
	if !h.converter.NeedsConversion(filename) {
		h.serveOriginal(w, share, rel)
		return
	}

	info, err := share.Stat(rel)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if info.IsDir() {
		http.Error(w, "path is a directory", http.StatusBadRequest)
		return
	}
	if h.maxInputSize > 0 && info.Size() > h.maxInputSize {
		http.Error(w, "file too large to convert", http.StatusBadRequest)
		return
	}

	data, err := share.ReadFile(rel, h.maxInputSize)
	if err != nil {
		h.storageError(w, err)
		return
	}

	result, err := h.converter.Convert(r.Context(), data, filename)
	if err != nil {
		h.conversionError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MIME)
	// Source files on shares can change; let browsers revalidate.
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(result.Bytes)
}

// ServeDownload streams the original file bytes unchanged.
func (h *PreviewHandler) ServeDownload(w http.ResponseWriter, r *http.Request) {
	share, rel, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.serveOriginal(w, share, rel)
}

// lookup resolves the share and relative path from the request, writing the
// error response itself when either is missing.
func (h *PreviewHandler) lookup(w http.ResponseWriter, r *http.Request) (*storage.Share, string, bool) {
	shareName := chi.URLParam(r, "share")
	share, ok := h.store.Share(shareName)
	if !ok {
		http.Error(w, "share not found", http.StatusNotFound)
		return nil, "", false
	}

	rel := r.URL.Query().Get("path")
	if rel == "" {
		http.Error(w, "path required", http.StatusBadRequest)
		return nil, "", false
	}
	return share, rel, true
}

func (h *PreviewHandler) serveOriginal(w http.ResponseWriter, share *storage.Share, rel string) {
	file, err := share.Open(rel)
	if err != nil {
		h.storageError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", preview.SourceMIME(path.Base(rel)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	io.Copy(w, file)
}

func (h *PreviewHandler) storageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrPathEscapes) {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	http.Error(w, "file not found", http.StatusNotFound)
}

// conversionError maps the pipeline error taxonomy onto HTTP status codes.
// Internal diagnostic detail is already logged by the converter; clients get
// the safe message only.
func (h *PreviewHandler) conversionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preview.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, preview.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, preview.ErrTimeout):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, preview.ErrConversionFailed.Error(), http.StatusBadGateway)
	}
}
