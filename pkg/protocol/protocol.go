// Package protocol is the JSON wire format of a voice session websocket
// and a reconnecting client for it.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

// Client to server.
const (
	TypeHello           = "hello"
	TypeRecognizerStart = "recognizer.start"
	TypeRecognizerEnd   = "recognizer.end"
	TypeRecognizerError = "recognizer.error"
	TypeResult          = "recognizer.result"
	TypeText            = "text"
	TypePlaybackEnded   = "playback.ended"
	TypeRestart         = "restart"
	TypeStop            = "stop"
)

// Server to client.
const (
	TypeState      = "state"
	TypeDirective  = "directive"
	TypeTranscript = "transcript"
	TypeMessage    = "message"
	TypeNotice     = "notice"
	TypeError      = "error"
)

// Directive actions.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

var knownTypes = map[string]bool{
	TypeHello: true, TypeRecognizerStart: true, TypeRecognizerEnd: true,
	TypeRecognizerError: true, TypeResult: true, TypeText: true,
	TypePlaybackEnded: true, TypeRestart: true, TypeStop: true,
	TypeState: true, TypeDirective: true, TypeTranscript: true,
	TypeMessage: true, TypeNotice: true, TypeError: true,
}

type Keys struct {
	OpenAI     string `json:"openai,omitempty"`
	ElevenLabs string `json:"elevenlabs,omitempty"`
	SerpAPI    string `json:"serpapi,omitempty"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AudioURL  string    `json:"audioUrl,omitempty"`
}

type Notice struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Level string `json:"level"`
}

// Envelope is one frame. Which fields are set depends on Type.
type Envelope struct {
	Type string `json:"type"`

	Keys *Keys `json:"apiKeys,omitempty"`

	Text       string  `json:"text,omitempty"`
	Final      bool    `json:"final,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Code       string  `json:"code,omitempty"`

	State   string       `json:"state,omitempty"`
	Action  string       `json:"action,omitempty"`
	Message *ChatMessage `json:"message,omitempty"`
	Notice  *Notice      `json:"notice,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func (e *Envelope) String() string {
	if e.Text != "" {
		return fmt.Sprintf("%s(%q)", e.Type, e.Text)
	}
	return e.Type
}

// Parse decodes and checks one frame.
func Parse(data []byte) (*Envelope, error) {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return nil, errors.New("empty message")
	}

	var env Envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if !knownTypes[env.Type] {
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}

	switch env.Type {
	case TypeResult:
		if env.Confidence < 0 || env.Confidence > 1 {
			return nil, fmt.Errorf("confidence out of range: %v", env.Confidence)
		}
	case TypeRecognizerError:
		if env.Code == "" {
			return nil, errors.New("recognizer error without code")
		}
	case TypeDirective:
		if env.Action != ActionStart && env.Action != ActionStop {
			return nil, fmt.Errorf("invalid directive action %q", env.Action)
		}
	}
	return &env, nil
}

func Encode(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

type PtclConfig struct {
	Url     string
	Reconn  time.Duration
	Timeout time.Duration
	EmitOut func(*Envelope)
	// OnReconnect runs after the connection was re-established, before
	// reading resumes. Clients use it to replay their hello.
	OnReconnect func()
}

// Protocol is the client side of a session connection.
type Protocol struct {
	ws *WebSocket

	writeMu sync.Mutex

	emitOut     func(*Envelope)
	onReconnect func()
}

func NewProtocol(cfg PtclConfig) (*Protocol, error) {
	ws, err := NewWebSocket(cfg.Url, cfg.Reconn, cfg.Timeout)
	if err != nil {
		log.Error("Failed to init ws connection", "url", cfg.Url)
		return nil, err
	}

	return &Protocol{
		ws:          ws,
		emitOut:     cfg.EmitOut,
		onReconnect: cfg.OnReconnect,
	}, nil
}

func (ptcl *Protocol) EmitOut(f func(*Envelope)) {
	ptcl.emitOut = f
}

func (ptcl *Protocol) Transmit(env *Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}

	ptcl.writeMu.Lock()
	defer ptcl.writeMu.Unlock()

	err = ptcl.ws.Write(data)
	if err != nil {
		log.Error("Failed to transmit", "msg", env, "err", err)
	}
	return err
}

// Run reads frames until done is closed, reconnecting when the server
// goes away.
func (ptcl *Protocol) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		in := ptcl.ws.Read()
		switch in.kind {
		case CONN_CLOSE:
			log.Warn("Trying to reconnect on", "url", ptcl.ws.url)
			if !ptcl.ws.TryReconn(done) {
				return
			}
			log.Info("Successfully reconnected")
			if ptcl.onReconnect != nil {
				ptcl.onReconnect()
			}

		case READ_FAILURE:
			log.Error("Failed to read", "err", in.err)
			select {
			case <-done:
				return
			default:
			}
			if !ptcl.ws.TryReconn(done) {
				return
			}

		case READ_OK:
			env, err := Parse(in.msg)
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if ptcl.emitOut != nil {
				ptcl.emitOut(env)
			}
		}
	}
}

func (ptcl *Protocol) Close() error {
	return ptcl.ws.Close()
}
