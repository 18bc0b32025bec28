package capability

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// StubFiles pretends to read a file and describes what a real reader would
// return.
type StubFiles struct {
	Now func() time.Time
}

func (s StubFiles) ReadFile(_ context.Context, filePath string) (FileContent, error) {
	content := fmt.Sprintf(`This is simulated content from %s.

A real file reader would:
- Read actual files from the local filesystem
- Support various file formats (PDF, TXT, LOG, etc.)
- Parse and extract text content
- Enforce file permissions and a sandbox root

Typical content of such a file:
- System logs and error messages
- Notes and documents
- Configuration files
- Data files`, filePath)

	return FileContent{
		Path:         filePath,
		Content:      content,
		Type:         FileType(filePath),
		Size:         "2.4 KB",
		LastModified: s.Now(),
	}, nil
}

// FileType describes a file by its extension.
func FileType(filePath string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filePath), ".")) {
	case "pdf":
		return "PDF Document"
	case "txt":
		return "Text File"
	case "log":
		return "Log File"
	case "md":
		return "Markdown File"
	case "json":
		return "JSON File"
	default:
		return "Unknown File Type"
	}
}
