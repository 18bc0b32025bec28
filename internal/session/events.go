package session

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageUser      = "user"
	MessageAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AudioURL  string    `json:"audioUrl,omitempty"`
}

func newMessage(typ, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      typ,
		Content:   content,
		Timestamp: at,
	}
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing alert, e.g. a missing key or a stopped
// recognizer.
type Notice struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Level Level  `json:"level"`
}

type EventKind string

const (
	EventState      EventKind = "state"
	EventTranscript EventKind = "transcript"
	EventMessage    EventKind = "message"
	EventNotice     EventKind = "notice"
)

// Event is emitted to the session's listener. Only the fields matching
// Kind are set.
type Event struct {
	Kind EventKind

	State State

	Text  string
	Final bool

	Message Message
	Notice  Notice
}

// Listener receives session events. It is called without the session lock
// held and may call back into the session.
type Listener func(Event)
