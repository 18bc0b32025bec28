// Package ipc is the daemon's local control channel: one JSON request and
// one JSON reply per connection over a unix socket.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/spai.sock"

const (
	CmdStatus    = "status"
	CmdHibernate = "hibernate"
	CmdRestart   = "restart"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler answers one control message. A returned error is reported to the
// caller as a failed reply.
type Handler func(ControlMessage) (any, error)

type Server struct {
	path string
	ln   net.Listener
}

func StartServer(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	srv := &Server{path: path, ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return srv, nil
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	var msg ControlMessage
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		return
	}

	var reply Reply
	data, err := handler(msg)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.OK = true
		if data != nil {
			raw, err := json.Marshal(data)
			if err != nil {
				reply = Reply{Error: fmt.Sprintf("encode reply: %v", err)}
			} else {
				reply.Data = raw
			}
		}
	}

	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("Failed to send control reply", "err", err)
	}
}

func SendCommand(path, cmd string) (Reply, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK {
		return reply, errors.New(reply.Error)
	}
	return reply, nil
}
