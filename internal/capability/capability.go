// Package capability declares the side-effecting integrations the assistant
// can call: reading files, running scripts and searching the web.
//
// Only stub implementations ship today. They return canned payloads and
// never touch the host, so a real integration can replace them without any
// caller noticing.
package capability

import (
	"context"
	"time"
)

type FileContent struct {
	Path         string    `json:"path"`
	Content      string    `json:"content"`
	Type         string    `json:"type"`
	Size         string    `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type Execution struct {
	ScriptPath    string    `json:"scriptPath"`
	Output        string    `json:"output"`
	ExitCode      int       `json:"exitCode"`
	ExecutionTime string    `json:"executionTime"`
	Timestamp     time.Time `json:"timestamp"`
}

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

type FileReader interface {
	ReadFile(ctx context.Context, path string) (FileContent, error)
}

type ScriptRunner interface {
	RunScript(ctx context.Context, path string) (Execution, error)
}

type Searcher interface {
	Search(ctx context.Context, query, apiKey string) ([]SearchResult, error)
}

// Set groups the integrations handed to the HTTP layer.
type Set struct {
	Files   FileReader
	Scripts ScriptRunner
	Search  Searcher
}

// Stubs returns a Set backed entirely by simulated integrations.
func Stubs() Set {
	return Set{
		Files:   StubFiles{Now: time.Now},
		Scripts: StubScripts{Now: time.Now},
		Search:  StubSearch{},
	}
}
