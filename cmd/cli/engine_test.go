package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/reconnoiter/internal/recon"
)

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []int
		wantErr bool
	}{
		{name: "empty means defaults", list: "", want: nil},
		{name: "whitespace only", list: "   ", want: nil},
		{name: "single port", list: "80", want: []int{80}},
		{name: "list", list: "22,80,443", want: []int{22, 80, 443}},
		{name: "range", list: "8000-8003", want: []int{8000, 8001, 8002, 8003}},
		{name: "mixed with spaces", list: " 22 , 80-81 ", want: []int{22, 80, 81}},
		{name: "trailing comma", list: "22,", want: []int{22}},
		{name: "only commas", list: ",,", wantErr: true},
		{name: "zero", list: "0", wantErr: true},
		{name: "too high", list: "65536", wantErr: true},
		{name: "reversed range", list: "443-80", wantErr: true},
		{name: "bad range end", list: "80-abc", wantErr: true},
		{name: "letters", list: "80,http", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePorts(tt.list)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWordlist(t *testing.T) {
	input := "www\n\n# comment\n  api  \nmail\n"
	words, err := parseWordlist(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"www", "api", "mail"}, words)
}

func TestReadWordlist(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		words, err := readWordlist("")
		require.NoError(t, err)
		assert.Nil(t, words)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.txt")
		require.NoError(t, os.WriteFile(path, []byte("dev\nstaging\n"), 0o600))

		words, err := readWordlist(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"dev", "staging"}, words)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readWordlist(filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorContains(t, err, "failed to open wordlist")
	})
}

func TestWithProgress(t *testing.T) {
	t.Run("quiet", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := withProgress(context.Background(), &buf)
		recon.Emit(ctx, recon.Event{Type: recon.EventPortOpen, Target: "example.com", Port: 22})
		assert.Empty(t, buf.String())
	})

	t.Run("verbose", func(t *testing.T) {
		verbose = true
		t.Cleanup(func() { verbose = false })

		var buf bytes.Buffer
		ctx := withProgress(context.Background(), &buf)
		recon.Emit(ctx, recon.Event{Type: recon.EventPortOpen, Target: "example.com", Port: 22})
		assert.Equal(t, "[example.com] port 22 open\n", buf.String())
	})
}
