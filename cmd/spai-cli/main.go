package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	cli "github.com/spf13/pflag"

	log "log/slog"

	"spai/internal/assistant"
	"spai/internal/keystore"
	"spai/internal/logging"
	"spai/internal/playback"
	"spai/pkg/protocol"
)

// client turns stdin lines into recognizer results and renders the
// session's events on the terminal.
type client struct {
	ptcl   *protocol.Protocol
	base   string
	keys   assistant.Keys
	mute   bool
	player *playback.Player
	http   *http.Client
	out    io.Writer

	mu        sync.Mutex
	listening bool
}

func main() {
	wsURL := cli.StringP("url", "u", "ws://localhost:3000/api/session", "Session websocket url")
	keysPath := cli.StringP("keys", "k", "", "API keys file (default: user config dir)")
	openaiKey := cli.String("openai", "", "OpenAI API key to save")
	elevenKey := cli.String("elevenlabs", "", "ElevenLabs API key to save")
	serpKey := cli.String("serpapi", "", "SerpAPI key to save")
	mute := cli.BoolP("mute", "m", false, "Do not play reply audio")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	cli.Parse()

	log.SetDefault(logging.New(os.Stderr, "development", logging.ParseLevel(*logLevel, "development")))

	path := *keysPath
	if path == "" {
		p, err := keystore.DefaultPath()
		if err != nil {
			log.Error("No place to keep API keys", "err", err)
			os.Exit(1)
		}
		path = p
	}

	keys, err := keystore.Load(path)
	if err != nil {
		log.Error("Failed to load saved API keys", "err", err)
		os.Exit(1)
	}
	override := assistant.Keys{OpenAI: *openaiKey, ElevenLabs: *elevenKey, SerpAPI: *serpKey}
	if override != (assistant.Keys{}) {
		keys = override.Merge(keys)
		if err := keystore.Save(path, keys); err != nil {
			log.Error("Failed to save API keys", "err", err)
		}
	}
	log.Debug("Loaded API keys", "openai", keys.OpenAI != "", "elevenlabs", keys.ElevenLabs != "", "serpapi", keys.SerpAPI != "")

	base, err := httpBase(*wsURL)
	if err != nil {
		log.Error("Bad url", "url", *wsURL, "err", err)
		os.Exit(1)
	}

	c := &client{
		base:   base,
		keys:   keys,
		mute:   *mute,
		player: playback.NewPlayer(),
		http:   &http.Client{Timeout: 30 * time.Second},
		out:    os.Stdout,
	}

	ptcl, err := protocol.NewProtocol(protocol.PtclConfig{
		Url:         *wsURL,
		Reconn:      2 * time.Second,
		Timeout:     10 * time.Second,
		EmitOut:     c.handle,
		OnReconnect: c.hello,
	})
	if err != nil {
		log.Error("Failed to connect", "url", *wsURL, "err", err)
		os.Exit(1)
	}
	c.ptcl = ptcl

	done := make(chan struct{})
	go ptcl.Run(done)

	c.hello()
	fmt.Fprintln(c.out, "Say 'SP' to activate. Type /help for commands.")
	c.readInput(os.Stdin)

	close(done)
	_ = ptcl.Close()
}

func httpBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery = "", ""
	return u.String(), nil
}

func (c *client) hello() {
	_ = c.ptcl.Transmit(&protocol.Envelope{
		Type: protocol.TypeHello,
		Keys: &protocol.Keys{OpenAI: c.keys.OpenAI, ElevenLabs: c.keys.ElevenLabs, SerpAPI: c.keys.SerpAPI},
	})
}

func (c *client) setListening(on bool) {
	c.mu.Lock()
	c.listening = on
	c.mu.Unlock()
}

func (c *client) isListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

func (c *client) handle(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeDirective:
		switch env.Action {
		case protocol.ActionStart:
			c.setListening(true)
			_ = c.ptcl.Transmit(&protocol.Envelope{Type: protocol.TypeRecognizerStart})
		case protocol.ActionStop:
			c.setListening(false)
			_ = c.ptcl.Transmit(&protocol.Envelope{Type: protocol.TypeRecognizerEnd})
		}
	case protocol.TypeState:
		fmt.Fprintf(c.out, "[%s]\n", env.State)
	case protocol.TypeTranscript:
		log.Debug("Transcript", "text", env.Text, "final", env.Final)
	case protocol.TypeMessage:
		m := env.Message
		if m == nil {
			return
		}
		who := "you"
		if m.Type == "assistant" {
			who = "SP.AI"
		}
		fmt.Fprintf(c.out, "%s %s: %s\n", m.Timestamp.Local().Format("15:04:05"), who, m.Content)
		if m.AudioURL != "" {
			go c.play(m.AudioURL)
		}
	case protocol.TypeNotice:
		if env.Notice != nil {
			fmt.Fprintf(c.out, "** %s: %s\n", env.Notice.Title, env.Notice.Text)
		}
	case protocol.TypeError:
		log.Warn("Server rejected frame", "err", env.Error)
	}
}

func (c *client) play(path string) {
	defer func() {
		_ = c.ptcl.Transmit(&protocol.Envelope{Type: protocol.TypePlaybackEnded})
	}()
	if c.mute {
		return
	}

	resp, err := c.http.Get(c.base + path)
	if err != nil {
		log.Error("Failed to fetch audio", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Error("Failed to fetch audio", "status", resp.StatusCode)
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read audio", "err", err)
		return
	}

	if err := c.player.Play(context.Background(), data); err != nil {
		log.Error("Failed to voice out", "err", err)
	}
}

const help = `Lines are sent as speech. Commands:
  /text <command>  send a typed command
  /restart         restart listening
  /stop            stop listening
  /quit            exit`

func (c *client) readInput(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit", "/exit":
			return
		case "/help":
			fmt.Fprintln(c.out, help)
		case "/text":
			_ = c.ptcl.Transmit(&protocol.Envelope{Type: protocol.TypeText, Text: arg})
		case "/restart":
			_ = c.ptcl.Transmit(&protocol.Envelope{Type: protocol.TypeRestart})
		case "/stop":
			_ = c.ptcl.Transmit(&protocol.Envelope{Type: protocol.TypeStop})
		default:
			if !c.isListening() {
				fmt.Fprintln(c.out, "(not listening, /restart to start)")
				continue
			}
			_ = c.ptcl.Transmit(&protocol.Envelope{
				Type:       protocol.TypeResult,
				Text:       line,
				Final:      true,
				Confidence: 1,
			})
		}
	}
}
