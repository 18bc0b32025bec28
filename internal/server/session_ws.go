package server

import (
	"errors"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"spai/internal/assistant"
	"spai/internal/metrics"
	"spai/internal/session"
	"spai/pkg/protocol"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 64 << 10
	sendBuffer   = 64
)

var errConnClosed = errors.New("session connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browsers on any origin may drive a session; rate limiting and keys
	// are enforced per request.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks the live voice sessions.
type Hub struct {
	srv *Server

	mu       sync.Mutex
	sessions map[string]*wsSession
}

func newHub(srv *Server) *Hub {
	return &Hub{srv: srv, sessions: make(map[string]*wsSession)}
}

func (h *Hub) add(ws *wsSession) {
	h.mu.Lock()
	h.sessions[ws.id] = ws
	h.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

func (h *Hub) remove(ws *wsSession) {
	h.mu.Lock()
	delete(h.sessions, ws.id)
	h.mu.Unlock()
	metrics.ActiveSessions.Dec()
}

func (h *Hub) snapshot() []*wsSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*wsSession, 0, len(h.sessions))
	for _, ws := range h.sessions {
		out = append(out, ws)
	}
	return out
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

type SessionStatus struct {
	ID string `json:"id"`
	session.Status
}

func (h *Hub) Status() []SessionStatus {
	var out []SessionStatus
	for _, ws := range h.snapshot() {
		out = append(out, SessionStatus{ID: ws.id, Status: ws.sess.Status()})
	}
	return out
}

// HibernateAll stops listening on every session.
func (h *Hub) HibernateAll() int {
	all := h.snapshot()
	for _, ws := range all {
		ws.sess.Stop()
	}
	return len(all)
}

// RestartAll runs the manual restart on every session.
func (h *Hub) RestartAll() int {
	all := h.snapshot()
	for _, ws := range all {
		ws.sess.Restart()
	}
	return len(all)
}

func (h *Hub) closeAll() {
	for _, ws := range h.snapshot() {
		ws.close()
	}
}

// wsSession bridges one websocket to a session.Session. It is the
// session's recognizer: start and stop requests become directives for the
// client, which owns the actual speech recognizer.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	sess   *session.Session
	logger *log.Logger

	send chan *protocol.Envelope
	done chan struct{}
	once sync.Once
}

func (s *Server) sessionSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	ws := &wsSession{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan *protocol.Envelope, sendBuffer),
		done: make(chan struct{}),
	}
	ws.logger = s.logger.With("session", ws.id)
	ws.sess = session.New(session.Options{
		Config:     s.cfg.Session,
		Recognizer: ws,
		Dispatcher: s.asst,
		Listener:   ws.forward,
		Logger:     ws.logger,
		Keys:       s.asst.ResolveKeys(assistant.Keys{}),
	})

	s.hub.add(ws)
	defer s.hub.remove(ws)

	ws.logger.Info("Session connected", "ip", c.ClientIP())
	go ws.writePump()
	ws.readPump(s.asst)
	ws.logger.Info("Session closed")
}

func (ws *wsSession) Start() error {
	return ws.enqueue(&protocol.Envelope{Type: protocol.TypeDirective, Action: protocol.ActionStart})
}

func (ws *wsSession) Stop() {
	_ = ws.enqueue(&protocol.Envelope{Type: protocol.TypeDirective, Action: protocol.ActionStop})
}

func (ws *wsSession) enqueue(env *protocol.Envelope) error {
	select {
	case <-ws.done:
		return errConnClosed
	default:
	}
	select {
	case ws.send <- env:
		return nil
	case <-ws.done:
		return errConnClosed
	default:
		ws.logger.Warn("Send buffer full, dropping frame", "type", env.Type)
		return nil
	}
}

func (ws *wsSession) forward(ev session.Event) {
	env := &protocol.Envelope{Type: string(ev.Kind)}
	switch ev.Kind {
	case session.EventState:
		env.State = ev.State.String()
	case session.EventTranscript:
		env.Text = ev.Text
		env.Final = ev.Final
	case session.EventMessage:
		m := ev.Message
		env.Message = &protocol.ChatMessage{
			ID:        m.ID,
			Type:      m.Type,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			AudioURL:  m.AudioURL,
		}
	case session.EventNotice:
		env.Notice = &protocol.Notice{Title: ev.Notice.Title, Text: ev.Notice.Text, Level: string(ev.Notice.Level)}
	}
	_ = ws.enqueue(env)
}

// close ends the session. writePump sends the close frame and then closes
// the connection.
func (ws *wsSession) close() {
	ws.once.Do(func() {
		close(ws.done)
		ws.sess.Close()
	})
}

func (ws *wsSession) readPump(asst *assistant.Service) {
	defer ws.close()

	ws.conn.SetReadLimit(maxFrameSize)
	_ = ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Warn("Session read failed", "err", err)
			}
			return
		}

		env, err := protocol.Parse(data)
		if err != nil {
			ws.logger.Warn("Bad frame", "err", err)
			_ = ws.enqueue(&protocol.Envelope{Type: protocol.TypeError, Error: err.Error()})
			continue
		}
		ws.handle(env, asst)
	}
}

func (ws *wsSession) handle(env *protocol.Envelope, asst *assistant.Service) {
	switch env.Type {
	case protocol.TypeHello:
		var k assistant.Keys
		if env.Keys != nil {
			k = assistant.Keys{OpenAI: env.Keys.OpenAI, ElevenLabs: env.Keys.ElevenLabs, SerpAPI: env.Keys.SerpAPI}
		}
		ws.sess.SetKeys(asst.ResolveKeys(k))
		ws.sess.Start()
	case protocol.TypeRecognizerStart:
		ws.sess.OnStart()
	case protocol.TypeRecognizerEnd:
		ws.sess.OnEnd()
	case protocol.TypeRecognizerError:
		ws.sess.OnError(env.Code)
	case protocol.TypeResult:
		ws.sess.OnResult(env.Text, env.Final, env.Confidence)
	case protocol.TypeText:
		ws.sess.SubmitText(env.Text)
	case protocol.TypePlaybackEnded:
		ws.sess.PlaybackEnded()
	case protocol.TypeRestart:
		ws.sess.Restart()
	case protocol.TypeStop:
		ws.sess.Stop()
	default:
		_ = ws.enqueue(&protocol.Envelope{Type: protocol.TypeError, Error: "unexpected message type " + env.Type})
	}
}

func (ws *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.close()
		ws.conn.Close()
	}()

	for {
		select {
		case <-ws.done:
			_ = ws.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case env := <-ws.send:
			data, err := protocol.Encode(env)
			if err != nil {
				ws.logger.Error("Encode frame", "err", err)
				continue
			}
			_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.logger.Warn("Session write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
