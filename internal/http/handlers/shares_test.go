package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListShares(t *testing.T) {
	handler := NewSharesHandler(newTestStore(t))

	out, err := handler.ListShares(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"media"}, out.Body.Shares)
}

func TestBrowseRoot(t *testing.T) {
	handler := NewSharesHandler(newTestStore(t))

	out, err := handler.Browse(context.Background(), &BrowseInput{Share: "media"})
	require.NoError(t, err)
	require.Len(t, out.Body.Entries, 4)

	byName := make(map[string]BrowseEntry)
	for _, e := range out.Body.Entries {
		byName[e.Name] = e
	}

	jpg := byName["cat.jpg"]
	assert.Equal(t, "image/jpeg", jpg.MIME)
	assert.True(t, jpg.IsImage)
	assert.False(t, jpg.NeedsConversion)

	tiff := byName["scan.tiff"]
	assert.Equal(t, "image/tiff", tiff.MIME)
	assert.True(t, tiff.IsImage)
	assert.True(t, tiff.NeedsConversion)

	psd := byName["design.psd"]
	assert.True(t, psd.NeedsConversion)

	txt := byName["notes.txt"]
	assert.False(t, txt.IsImage)
	assert.False(t, txt.NeedsConversion)
	assert.Equal(t, "notes.txt", txt.Path)
}

func TestBrowseUnknownShare(t *testing.T) {
	handler := NewSharesHandler(newTestStore(t))

	_, err := handler.Browse(context.Background(), &BrowseInput{Share: "other"})
	assert.Error(t, err)
}

func TestBrowseTraversal(t *testing.T) {
	handler := NewSharesHandler(newTestStore(t))

	_, err := handler.Browse(context.Background(), &BrowseInput{Share: "media", Path: "../"})
	assert.Error(t, err)
}

func TestBrowseMissingDirectory(t *testing.T) {
	handler := NewSharesHandler(newTestStore(t))

	_, err := handler.Browse(context.Background(), &BrowseInput{Share: "media", Path: "nope"})
	assert.Error(t, err)
}

func TestListFormats(t *testing.T) {
	handler := NewFormatsHandler()

	out, err := handler.ListFormats(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, out.Body.Formats)

	byToken := make(map[string]FormatInfo)
	for _, f := range out.Body.Formats {
		byToken[f.Token] = f
	}

	assert.Equal(t, "passthrough", byToken["jpg"].Policy)
	assert.Equal(t, "native", byToken["tiff"].Policy)
	assert.Equal(t, "preprocess", byToken["psd"].Policy)
	assert.Equal(t, "image/vnd.adobe.photoshop", byToken["psd"].MIME)
}
