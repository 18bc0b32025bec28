package protocol

import (
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

type WebSocket struct {
	mu      sync.Mutex
	conn    *ws.Conn
	url     string
	reconn  time.Duration
	timeout time.Duration
}

func NewWebSocket(url string, reconn, timeout time.Duration) (*WebSocket, error) {
	log.Debug("init websocket protocol", "url", url)

	if reconn <= 0 {
		reconn = time.Second
	}
	web := &WebSocket{
		url:     url,
		reconn:  reconn,
		timeout: timeout,
	}

	conn, err := web.dial()
	if err != nil {
		log.Error("Failed to dial url", "err", err)
		return nil, err
	}
	web.conn = conn

	return web, nil
}

func (web *WebSocket) dial() (*ws.Conn, error) {
	d := *ws.DefaultDialer
	if web.timeout > 0 {
		d.HandshakeTimeout = web.timeout
	}
	conn, _, err := d.Dial(web.url, nil)
	return conn, err
}

func (web *WebSocket) current() *ws.Conn {
	web.mu.Lock()
	defer web.mu.Unlock()
	return web.conn
}

func (web *WebSocket) Write(payload []byte) error {
	log.Debug("Write ws", "msg", string(payload))
	conn := web.current()
	if web.timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(web.timeout))
	}
	return conn.WriteMessage(ws.TextMessage, payload)
}

type WsIncomeKind uint

const (
	CONN_CLOSE WsIncomeKind = iota
	READ_FAILURE
	READ_OK
)

type Income struct {
	kind WsIncomeKind
	msg  []byte
	err  error
}

func (web *WebSocket) Read() Income {
	_, msg, err := web.current().ReadMessage()
	if err != nil {
		if WsIsClosed(err) {
			return Income{
				kind: CONN_CLOSE,
				err:  err,
			}
		}
		return Income{
			kind: READ_FAILURE,
			err:  err,
		}
	}

	log.Debug("Read ws", "msg", string(msg))
	return Income{
		kind: READ_OK,
		msg:  msg,
	}
}

// TryReconn dials until it succeeds or done is closed. It reports whether
// a new connection is in place.
func (web *WebSocket) TryReconn(done <-chan struct{}) bool {
	for {
		conn, err := web.dial()
		if err == nil {
			web.mu.Lock()
			old := web.conn
			web.conn = conn
			web.mu.Unlock()
			if old != nil {
				old.Close()
			}
			return true
		}
		log.Debug("Reconnect failed", "err", err)

		select {
		case <-done:
			return false
		case <-time.After(web.reconn):
		}
	}
}

func (web *WebSocket) Close() error {
	conn := web.current()
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func WsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
