package validate

// APIKeys are the per-request provider credentials sent by clients.
type APIKeys struct {
	OpenAI     string `json:"openai" validate:"omitempty,openai_key"`
	ElevenLabs string `json:"elevenlabs"`
	SerpAPI    string `json:"serpapi"`
}

type CommandRequest struct {
	Command string   `json:"command" validate:"required,max=1000"`
	APIKeys *APIKeys `json:"apiKeys" validate:"required"`
}

type FileRequest struct {
	FilePath string `json:"filePath" validate:"required,max=500,safepath"`
}

type ScriptRequest struct {
	ScriptPath string `json:"scriptPath" validate:"required,max=500"`
	Confirmed  *bool  `json:"confirmed" validate:"required"`
}

type SearchRequest struct {
	Query  string `json:"query" validate:"required,max=1000"`
	APIKey string `json:"apiKey"`
}
