// Package session implements the voice session state machine. A session
// is driven by recognizer callbacks (OnStart, OnResult, OnError, OnEnd)
// and user actions (Restart, Stop, SubmitText, PlaybackEnded). It decides
// when an utterance becomes a command, hands the command to a Dispatcher
// and reports everything through a Listener.
package session

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"spai/internal/assistant"
	"spai/internal/config"
	"spai/internal/metrics"
	"spai/pkg/util"
)

// Recognizer is the speech recognizer feeding the session. Start and Stop
// only request a change; the recognizer confirms through OnStart and OnEnd.
type Recognizer interface {
	Start() error
	Stop()
}

// Dispatcher answers commands. *assistant.Service satisfies it.
type Dispatcher interface {
	Process(ctx context.Context, req assistant.Request) (assistant.Response, error)
}

// Recognizer error codes.
const (
	ErrNotAllowed        = "not-allowed"
	ErrServiceNotAllowed = "service-not-allowed"
	ErrNoSpeech          = "no-speech"
	ErrAborted           = "aborted"
	ErrNetwork           = "network"
)

const (
	triggerDebounce = "debounce"
	triggerFinal    = "final"
	triggerText     = "text"
)

type Options struct {
	Config     config.Session
	Recognizer Recognizer
	Dispatcher Dispatcher
	Clock      Clock
	Listener   Listener
	Logger     *log.Logger
	Keys       assistant.Keys
}

type Session struct {
	cfg    config.Session
	wake   WakeWord
	rec    Recognizer
	disp   Dispatcher
	clock  Clock
	notify Listener
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// spawn runs a dispatch. Tests swap it for a synchronous call.
	spawn func(func())

	mu    sync.Mutex
	state State
	keys  assistant.Keys

	recognizing bool
	manualStop  bool
	fatal       bool
	attempts    int

	// pending is the latest transcript waiting for the debounce timer.
	pending string
	// closed is set once the current utterance was dispatched; last is
	// the command it produced and closedAt when.
	closed      bool
	last        string
	lastTrigger string
	closedAt    time.Time

	seq        uint64
	hibernated bool

	debounce   slot
	inactivity slot
	restart    slot
	speaking   slot

	messages []Message
	effects  []func()
}

// slot is a cancellable timer. Bumping gen invalidates a callback that
// already fired but has not taken the lock yet.
type slot struct {
	t   Timer
	gen uint64
}

func (s *slot) cancel() {
	s.gen++
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}

func New(opts Options) *Session {
	cfg := opts.Config
	def := config.Default().Session
	if cfg.WakeWord == "" {
		cfg.WakeWord = def.WakeWord
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = def.Inactivity
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.MinCommandLen <= 0 {
		cfg.MinCommandLen = def.MinCommandLen
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.StartRetryDelay <= 0 {
		cfg.StartRetryDelay = def.StartRetryDelay
	}
	if cfg.StopPhrases == nil {
		cfg.StopPhrases = def.StopPhrases
	}

	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Listener == nil {
		opts.Listener = func(Event) {}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		wake:   NewWakeWord(cfg.WakeWord),
		rec:    opts.Recognizer,
		disp:   opts.Dispatcher,
		clock:  opts.Clock,
		notify: opts.Listener,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
		spawn:  func(f func()) { go f() },
		keys:   opts.Keys,
	}
}

// unlock releases the session lock and then runs the side effects queued
// while it was held: listener events and recognizer calls.
func (s *Session) unlock() {
	fx := s.effects
	s.effects = nil
	s.mu.Unlock()
	for _, f := range fx {
		f()
	}
}

func (s *Session) later(f func()) {
	s.effects = append(s.effects, f)
}

func (s *Session) emit(ev Event) {
	s.later(func() { s.notify(ev) })
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.logger.Debug("Session state", "from", s.state, "to", st)
	s.state = st
	s.emit(Event{Kind: EventState, State: st})
}

func (s *Session) noticeLocked(level Level, title, text string) {
	s.emit(Event{Kind: EventNotice, Notice: Notice{Title: title, Text: text, Level: level}})
}

func (s *Session) addMessage(m Message) {
	s.messages = append(s.messages, m)
	s.emit(Event{Kind: EventMessage, Message: m})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) SetKeys(k assistant.Keys) {
	s.mu.Lock()
	defer s.unlock()
	s.keys = k
	if k.OpenAI == "" {
		s.noticeLocked(LevelWarning, "Configuration Required",
			"Please add your OpenAI API key in settings to activate SP.AI")
	}
}

// Start asks the recognizer to start. It is the same as Restart: both
// clear the retry budget and any fatal error.
func (s *Session) Start() {
	s.Restart()
}

// Restart is the manual recovery path after a fatal error or an exhausted
// retry budget.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.unlock()
	s.logger.Info("Starting speech recognition")
	s.attempts = 0
	s.fatal = false
	s.manualStop = false
	s.restart.cancel()
	s.startLocked()
}

func (s *Session) startLocked() {
	if s.rec == nil {
		return
	}
	s.later(func() {
		if err := s.rec.Start(); err != nil {
			s.onStartFailed(err)
		}
	})
}

func (s *Session) onStartFailed(err error) {
	s.mu.Lock()
	defer s.unlock()
	s.logger.Warn("Failed to start recognition", "err", err)
	if s.manualStop || s.fatal {
		return
	}
	if s.attempts >= s.cfg.MaxReconnect {
		s.offlineLocked()
		return
	}
	s.attempts++
	s.scheduleRestart(s.cfg.StartRetryDelay)
}

func (s *Session) scheduleRestart(d time.Duration) {
	s.restart.cancel()
	gen := s.restart.gen
	s.restart.t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.unlock()
		if gen != s.restart.gen || s.manualStop || s.fatal || s.recognizing {
			return
		}
		s.restart.t = nil
		s.logger.Debug("Restarting recognition", "attempt", s.attempts)
		s.startLocked()
	})
}

func (s *Session) offlineLocked() {
	s.logger.Warn("Speech recognition offline", "attempts", s.attempts)
	s.cancelTimers()
	s.setState(Idle)
	s.noticeLocked(LevelError, "Speech Recognition Offline", "Click to restart neural interface")
}

// Stop ends listening at the user's request. The recognizer is not
// restarted when it reports the end.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.manualStop = true
	s.cancelTimers()
	s.pending = ""
	s.setState(Idle)
	if s.rec != nil {
		s.later(s.rec.Stop)
	}
}

func (s *Session) cancelTimers() {
	s.debounce.cancel()
	s.inactivity.cancel()
	s.restart.cancel()
	s.speaking.cancel()
}

// Close stops the session and abandons any command in flight.
func (s *Session) Close() {
	s.mu.Lock()
	s.manualStop = true
	s.cancelTimers()
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) OnStart() {
	s.mu.Lock()
	defer s.unlock()
	s.logger.Info("Speech recognition started")
	s.recognizing = true
	s.attempts = 0
	s.restart.cancel()
	if s.state == Idle {
		s.setState(Standby)
	}
}

func (s *Session) OnEnd() {
	s.mu.Lock()
	defer s.unlock()
	s.logger.Info("Speech recognition ended")
	s.recognizing = false

	switch {
	case s.manualStop || s.fatal:
		s.setState(Idle)
	case s.attempts >= s.cfg.MaxReconnect:
		s.offlineLocked()
	default:
		s.attempts++
		s.scheduleRestart(s.cfg.ReconnectDelay)
	}
}

func (s *Session) OnError(code string) {
	s.mu.Lock()
	defer s.unlock()

	switch code {
	case ErrNoSpeech:
		s.logger.Debug("No speech detected, continuing")
	case ErrNotAllowed:
		s.fatalLocked(code, "Microphone Access Required", "Grant microphone access to activate neural interface")
	case ErrServiceNotAllowed:
		s.fatalLocked(code, "Speech Service Blocked", "Speech recognition service is not available")
	case ErrNetwork:
		s.logger.Warn("Network error in speech recognition")
		s.noticeLocked(LevelWarning, "Network Error", "Check your internet connection")
	case ErrAborted:
		s.logger.Info("Speech recognition aborted")
	default:
		s.logger.Warn("Unknown speech recognition error", "code", code)
	}
}

func (s *Session) fatalLocked(code, title, text string) {
	s.logger.Error("Speech recognition unavailable", "code", code)
	s.fatal = true
	s.cancelTimers()
	s.setState(Idle)
	s.noticeLocked(LevelError, title, text)
}

// OnResult feeds one recognizer result. text is the transcript of the
// current utterance so far.
func (s *Session) OnResult(text string, final bool, confidence float64) {
	s.mu.Lock()
	defer s.unlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	s.emit(Event{Kind: EventTranscript, Text: trimmed, Final: final})

	if s.isStopPhrase(trimmed) {
		s.logger.Info("Stop phrase heard", "text", trimmed)
		s.stopLocked()
		s.noticeLocked(LevelInfo, "SP.AI Hibernating", "Neural interface entering sleep mode")
		return
	}

	switch s.state {
	case Idle:
		return
	case Processing:
		s.logger.Debug("Dropping result while processing", "text", util.Preview(trimmed, 50))
		return
	case Standby:
		if !s.wake.Detect(trimmed) {
			return
		}
		s.activateLocked()
	case Speaking:
		if !s.wake.Detect(trimmed) {
			return
		}
		s.logger.Debug("Barge in")
		s.speaking.cancel()
		s.setState(Active)
	}

	if s.closed {
		s.closed = false
		// The recognizer may finalize an utterance the debounce already sent.
		if s.lastTrigger == triggerDebounce &&
			s.clock.Now().Sub(s.closedAt) < s.cfg.Debounce &&
			s.wake.commandText(trimmed) == s.last {
			return
		}
	}

	s.armInactivity()

	if len(trimmed) > 1 {
		s.pending = trimmed
		s.armDebounce()
	}

	if final && confidence >= s.cfg.ConfidenceThreshold && len(trimmed) > s.cfg.MinCommandLen {
		s.debounce.cancel()
		s.dispatchLocked(trimmed, triggerFinal)
	}
}

func (s *Session) isStopPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range s.cfg.StopPhrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func (s *Session) activateLocked() {
	s.logger.Info("Wake word detected", "wake", s.wake)
	s.hibernated = false
	s.closed = false
	s.setState(Active)
	s.noticeLocked(LevelInfo, "SP.AI Activated", "Neural interface online - I'm listening")
}

func (s *Session) armDebounce() {
	s.debounce.cancel()
	gen := s.debounce.gen
	s.debounce.t = s.clock.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		defer s.unlock()
		if gen != s.debounce.gen {
			return
		}
		s.debounce.t = nil
		text := s.pending
		if s.state != Active || s.closed || len(text) <= s.cfg.MinCommandLen {
			return
		}
		s.dispatchLocked(text, triggerDebounce)
	})
}

func (s *Session) armInactivity() {
	s.inactivity.cancel()
	gen := s.inactivity.gen
	s.inactivity.t = s.clock.AfterFunc(s.cfg.Inactivity, func() {
		s.mu.Lock()
		defer s.unlock()
		if gen != s.inactivity.gen || s.state == Idle {
			return
		}
		s.logger.Info("Inactivity timeout, hibernating")
		s.hibernated = true
		s.stopLocked()
		s.noticeLocked(LevelInfo, "SP.AI Hibernating", "Neural interface entering sleep mode due to inactivity")
	})
}

// SubmitText dispatches a typed command, activating the session if needed.
func (s *Session) SubmitText(text string) {
	s.mu.Lock()
	defer s.unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.state == Processing {
		s.logger.Debug("Dropping text command while processing")
		return
	}
	if s.state != Active {
		s.speaking.cancel()
		s.hibernated = false
		s.setState(Active)
	}
	s.armInactivity()
	s.debounce.cancel()
	s.dispatchLocked(text, triggerText)
}

func (s *Session) dispatchLocked(text, trigger string) {
	command := s.wake.commandText(text)
	if command == "" {
		return
	}
	if s.keys.OpenAI == "" {
		s.noticeLocked(LevelWarning, "Configuration Required", "Please add your OpenAI API key in settings")
		return
	}

	s.debounce.cancel()
	s.pending = ""
	s.closed = true
	s.last = command
	s.lastTrigger = trigger
	s.closedAt = s.clock.Now()
	s.seq++
	seq := s.seq

	s.logger.Info("Dispatching command", "trigger", trigger, "command", util.Preview(command, 50))
	metrics.CommandsDispatched.WithLabelValues(trigger).Inc()

	s.addMessage(newMessage(MessageUser, command, s.clock.Now()))
	s.setState(Processing)

	if s.disp == nil {
		s.finishLocked(seq, assistant.Response{}, errors.New("no dispatcher configured"))
		return
	}

	req := assistant.Request{Command: command, Keys: s.keys}
	s.later(func() {
		s.spawn(func() {
			resp, err := s.disp.Process(s.ctx, req)
			s.finish(seq, resp, err)
		})
	})
}

func (s *Session) finish(seq uint64, resp assistant.Response, err error) {
	s.mu.Lock()
	defer s.unlock()
	s.finishLocked(seq, resp, err)
}

func (s *Session) finishLocked(seq uint64, resp assistant.Response, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if seq != s.seq {
		return
	}

	if err != nil {
		s.logger.Error("Command failed", "err", err)
		s.addMessage(newMessage(MessageAssistant, "❌ Error: "+err.Error(), s.clock.Now()))
		s.noticeLocked(LevelError, "Command Failed", err.Error())
	} else {
		m := newMessage(MessageAssistant, resp.Response, s.clock.Now())
		m.AudioURL = resp.AudioURL
		s.addMessage(m)
	}

	// Stopped or hibernated while the command was in flight.
	if s.state != Processing {
		return
	}

	if err == nil && resp.AudioURL != "" {
		s.setState(Speaking)
		if resp.AudioDurationMs > 0 {
			s.armSpeaking(time.Duration(resp.AudioDurationMs) * time.Millisecond)
		}
		return
	}
	s.setState(Active)
	s.armInactivity()
}

func (s *Session) armSpeaking(d time.Duration) {
	s.speaking.cancel()
	gen := s.speaking.gen
	s.speaking.t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.unlock()
		if gen != s.speaking.gen {
			return
		}
		s.speaking.t = nil
		s.doneSpeakingLocked()
	})
}

// PlaybackEnded is called by the client once the reply audio finished.
func (s *Session) PlaybackEnded() {
	s.mu.Lock()
	defer s.unlock()
	s.speaking.cancel()
	s.doneSpeakingLocked()
}

func (s *Session) doneSpeakingLocked() {
	if s.state != Speaking {
		return
	}
	s.setState(Active)
	s.armInactivity()
}

// Hibernated reports whether the last stop was caused by inactivity.
func (s *Session) Hibernated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hibernated
}

// Status is a point-in-time summary used by the control socket.
type Status struct {
	State       string `json:"state"`
	Recognizing bool   `json:"recognizing"`
	Attempts    int    `json:"attempts"`
	Messages    int    `json:"messages"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state.String(),
		Recognizing: s.recognizing,
		Attempts:    s.attempts,
		Messages:    len(s.messages),
	}
}
