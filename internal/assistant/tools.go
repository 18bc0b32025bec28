package assistant

import "strings"

const (
	ToolSearchWeb = "search_web"
	ToolReadFile  = "read_file"
	ToolRunScript = "run_script"
	ToolSpeak     = "elevenlabs_speak"
	ToolGPT       = "openai_gpt"
)

var toolTriggers = []struct {
	tool     string
	keywords []string
}{
	{ToolSearchWeb, []string{"search", "weather", "news", "what is", "who is"}},
	{ToolReadFile, []string{"read", "file", "document", "pdf", "log"}},
	{ToolRunScript, []string{"run", "execute", "script", "command"}},
	{ToolSpeak, []string{"speak", "say", "tell me"}},
}

// AnalyzeCommand picks the tools a command hints at by keyword. The
// reasoning tool is always last.
func AnalyzeCommand(command string) []string {
	lower := strings.ToLower(command)

	var tools []string
	for _, t := range toolTriggers {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				tools = append(tools, t.tool)
				break
			}
		}
	}
	return append(tools, ToolGPT)
}
