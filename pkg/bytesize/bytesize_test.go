package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Size
	}{
		{"0", 0},
		{"1024", 1024},
		{"1b", 1},
		{"500KB", 500 * KB},
		{"500 kb", 500 * KB},
		{"100MB", 100 * MB},
		{"100MiB", 100 * MB},
		{"1.5GB", Size(1.5 * float64(GB))},
		{"2g", 2 * GB},
		{"1TB", TB},
		{"1pb", PB},
		{"  64 M  ", 64 * MB},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "-5MB", "10XB", "MB"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("not a size") })
	assert.Equal(t, 5*MB, MustParse("5MB"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		size Size
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{KB, "1KB"},
		{1536, "1.5KB"},
		{100 * MB, "100MB"},
		{Size(1.5 * float64(GB)), "1.5GB"},
		{TB, "1TB"},
		{-2 * MB, "-2MB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.size))
			assert.Equal(t, tt.want, tt.size.String())
		})
	}
}

func TestBytes(t *testing.T) {
	assert.Equal(t, int64(1048576), MB.Bytes())
}
