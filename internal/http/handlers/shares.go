package handlers

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sambee/sambee/internal/preview"
	"github.com/sambee/sambee/internal/storage"
)

// SharesHandler handles share listing and directory browsing.
type SharesHandler struct {
	store *storage.Store
}

// NewSharesHandler creates a new shares handler.
func NewSharesHandler(store *storage.Store) *SharesHandler {
	return &SharesHandler{store: store}
}

// SharesOutput is the output for the share listing endpoint.
type SharesOutput struct {
	Body struct {
		Shares []string `json:"shares"`
	}
}

// BrowseInput is the input for the browse endpoint.
type BrowseInput struct {
	Share string `path:"share" doc:"Share name"`
	Path  string `query:"path" doc:"Directory path relative to the share root"`
}

// BrowseEntry is one row of a directory listing, with preview routing info
// so the UI knows which files it can display.
type BrowseEntry struct {
	Name            string    `json:"name"`
	Path            string    `json:"path"`
	Size            int64     `json:"size"`
	ModTime         time.Time `json:"mod_time"`
	IsDir           bool      `json:"is_dir"`
	MIME            string    `json:"mime,omitempty"`
	IsImage         bool      `json:"is_image"`
	NeedsConversion bool      `json:"needs_conversion"`
}

// BrowseOutput is the output for the browse endpoint.
type BrowseOutput struct {
	Body struct {
		Share   string        `json:"share"`
		Path    string        `json:"path"`
		Entries []BrowseEntry `json:"entries"`
	}
}

// Register registers the share routes with the API.
func (h *SharesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listShares",
		Method:      "GET",
		Path:        "/api/shares",
		Summary:     "List shares",
		Tags:        []string{"Shares"},
	}, h.ListShares)

	huma.Register(api, huma.Operation{
		OperationID: "browseShare",
		Method:      "GET",
		Path:        "/api/shares/{share}/browse",
		Summary:     "Browse a share directory",
		Tags:        []string{"Shares"},
	}, h.Browse)
}

// ListShares returns the configured share names.
func (h *SharesHandler) ListShares(_ context.Context, _ *struct{}) (*SharesOutput, error) {
	out := &SharesOutput{}
	out.Body.Shares = h.store.Names()
	return out, nil
}

// Browse lists one directory of a share.
func (h *SharesHandler) Browse(_ context.Context, input *BrowseInput) (*BrowseOutput, error) {
	share, ok := h.store.Share(input.Share)
	if !ok {
		return nil, huma.Error404NotFound("share not found")
	}

	entries, err := share.List(input.Path)
	if err != nil {
		if errors.Is(err, storage.ErrPathEscapes) {
			return nil, huma.Error400BadRequest("invalid path")
		}
		return nil, huma.Error404NotFound("directory not found")
	}

	out := &BrowseOutput{}
	out.Body.Share = input.Share
	out.Body.Path = input.Path
	out.Body.Entries = make([]BrowseEntry, 0, len(entries))
	for _, e := range entries {
		entry := BrowseEntry{
			Name:    e.Name,
			Path:    path.Join(input.Path, e.Name),
			Size:    e.Size,
			ModTime: e.ModTime,
			IsDir:   e.IsDir,
		}
		if !e.IsDir {
			entry.MIME = preview.SourceMIME(e.Name)
			entry.IsImage = preview.IsImage(e.Name)
			entry.NeedsConversion = preview.NeedsConversion(e.Name)
		}
		out.Body.Entries = append(out.Body.Entries, entry)
	}
	return out, nil
}
