package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func TestFileType(t *testing.T) {
	cases := map[string]string{
		"report.PDF":      "PDF Document",
		"notes.txt":       "Text File",
		"var/app.log":     "Log File",
		"README.md":       "Markdown File",
		"cfg/data.json":   "JSON File",
		"archive.tar.gz":  "Unknown File Type",
		"no-extension":    "Unknown File Type",
		"dir.d/something": "Unknown File Type",
	}
	for in, want := range cases {
		assert.Equal(t, want, FileType(in), in)
	}
}

func TestStubFiles_ReadFile(t *testing.T) {
	fc, err := StubFiles{Now: func() time.Time { return fixed }}.ReadFile(context.Background(), "logs/system.log")
	require.NoError(t, err)
	assert.Equal(t, "logs/system.log", fc.Path)
	assert.Equal(t, "Log File", fc.Type)
	assert.Equal(t, "2.4 KB", fc.Size)
	assert.Equal(t, fixed, fc.LastModified)
	assert.Contains(t, fc.Content, "simulated content from logs/system.log")
}

func TestStubScripts_RunScript(t *testing.T) {
	ex, err := StubScripts{Now: func() time.Time { return fixed }}.RunScript(context.Background(), "diag.sh")
	require.NoError(t, err)
	assert.Equal(t, 0, ex.ExitCode)
	assert.Equal(t, "2.3s", ex.ExecutionTime)
	assert.Contains(t, ex.Output, "Simulated execution of diag.sh")
	assert.Contains(t, ex.Output, "Memory usage: 68%")
	assert.Equal(t, "Are you sure you want to run the script: diag.sh?", ConfirmationPrompt("diag.sh"))
}

func TestStubSearch(t *testing.T) {
	_, err := StubSearch{}.Search(context.Background(), "go generics", "")
	assert.ErrorIs(t, err, ErrSearchKeyRequired)

	res, err := StubSearch{}.Search(context.Background(), "go generics", "serp-key")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Search results for: go generics", res[0].Title)
	assert.Equal(t, "https://example.com", res[0].URL)
}
