package handlers

import (
	"context"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sambee/sambee/internal/preview"
)

// FormatsHandler exposes the format policy table.
type FormatsHandler struct{}

// NewFormatsHandler creates a new formats handler.
func NewFormatsHandler() *FormatsHandler {
	return &FormatsHandler{}
}

// FormatInfo describes one known format token.
type FormatInfo struct {
	Token  string `json:"token"`
	Policy string `json:"policy"`
	MIME   string `json:"mime"`
}

// FormatsResponse is the formats listing payload.
type FormatsResponse struct {
	Formats []FormatInfo `json:"formats"`
}

// FormatsOutput is the output for the formats endpoint.
type FormatsOutput struct {
	Body FormatsResponse
}

// Register registers the formats routes with the API.
func (h *FormatsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFormats",
		Method:      "GET",
		Path:        "/api/formats",
		Summary:     "List known image formats",
		Description: "Returns every image format the server recognizes and how each is handled",
		Tags:        []string{"Formats"},
	}, h.ListFormats)
}

// ListFormats returns the format policy table.
func (h *FormatsHandler) ListFormats(_ context.Context, _ *struct{}) (*FormatsOutput, error) {
	tokens := append(preview.BrowserNativeTokens(), preview.ConvertibleTokens()...)

	formats := make([]FormatInfo, 0, len(tokens))
	for _, token := range tokens {
		filename := "x." + string(token)
		formats = append(formats, FormatInfo{
			Token:  string(token),
			Policy: preview.Classify(filename).String(),
			MIME:   preview.SourceMIME(filename),
		})
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i].Token < formats[j].Token })

	return &FormatsOutput{Body: FormatsResponse{Formats: formats}}, nil
}
