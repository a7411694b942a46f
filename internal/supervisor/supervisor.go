package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pushline/pushline/internal/transport"
)

// pullPayload is the empty application-level request that asks the
// remote to flush buffered data.
var pullPayload = []byte("{}")

// session spans one Connect() call: the initial attempt plus every
// automatic reconnect attempt that follows it.
type session struct {
	ctx context.Context

	// closing is closed when the caller requests shutdown. The
	// reconnect scheduler aborts on it, so a caller-initiated close can
	// never race into a new attempt.
	closing   chan struct{}
	closeOnce sync.Once

	// done is closed when the session reaches a terminal state: caller
	// close, reconnect budget exhausted, or auto-reconnect disabled.
	done     chan struct{}
	doneOnce sync.Once
}

func (ss *session) requestClose() {
	ss.closeOnce.Do(func() { close(ss.closing) })
}

func (ss *session) finish() {
	ss.doneOnce.Do(func() { close(ss.done) })
}

// connState is the mutable state of one connection attempt. It is
// created fresh for every attempt and discarded with it; nothing is
// shared across attempts except the supervisor's attempt budget.
type connState struct {
	conn transport.Conn
	sess *session

	// Written by the attempt's event loop, read by Status()/Send()
	// under the supervisor mutex.
	open         bool
	callerClosed bool
	lastAck      time.Time
	missedAcks   int
}

// Supervisor keeps one persistent feed connection alive. It persists
// across reconnects; connection attempts come and go underneath it.
type Supervisor struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger

	mu           sync.Mutex
	sess         *session
	st           *connState
	attemptsLeft int
}

// New creates a Supervisor. It fails immediately, before any connection
// attempt, if the configuration violates the timing budget.
func New(cfg Config, hooks Hooks, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &Supervisor{
		cfg:          cfg,
		hooks:        hooks,
		logger:       logger,
		attemptsLeft: cfg.MaxReconnectAttempts,
	}, nil
}

// Connect dials the endpoint and starts the heartbeat and polling
// drivers on success.
//
// Calling Connect while a connection is already open closes the old
// attempt and starts a fresh one (last writer wins); callers should
// avoid relying on this. Calling it again after Close starts a fresh
// session. The reconnect budget is never refilled, not even by a new
// Connect.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	prevSess := s.sess
	prev := s.st
	if prev != nil {
		prev.callerClosed = true
	}
	s.mu.Unlock()

	if prevSess != nil {
		prevSess.requestClose()
	}
	if prev != nil {
		prev.conn.Close(websocket.CloseNormalClosure, "superseded by new connect")
	}

	sess := &session{
		ctx:     ctx,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.sess = sess
	s.st = nil
	s.mu.Unlock()

	if err := s.connectAttempt(sess); err != nil {
		sess.finish()
		return err
	}
	return nil
}

// connectAttempt dials once and, on success, hands the new attempt to
// its event loop.
func (s *Supervisor) connectAttempt(sess *session) error {
	tcfg := transport.DefaultConfig()
	tcfg.URL = s.cfg.Endpoint
	tcfg.Token = s.cfg.Token

	conn := transport.New(tcfg, s.logger.With("component", "transport"))
	if err := conn.Dial(sess.ctx); err != nil {
		return fmt.Errorf("connect %s: %w", s.cfg.Endpoint, err)
	}

	// The ack clock starts at open, so a connection that never
	// acknowledges a single probe is still detected once the first full
	// cycle has passed.
	st := &connState{conn: conn, sess: sess, open: true, lastAck: time.Now()}

	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		conn.Terminate()
		return ErrSuperseded
	}
	// A caller Close that landed while the dial was in flight wins: the
	// fresh connection is dropped and the session stays terminal.
	select {
	case <-sess.closing:
		s.mu.Unlock()
		conn.Terminate()
		sess.finish()
		return ErrSuperseded
	default:
	}
	s.st = st
	s.mu.Unlock()

	go s.runLoop(st)

	return nil
}

// Send delivers one outbound frame. Strings and byte slices pass
// through unchanged; any other value is JSON-marshalled. Fails with
// ErrNotOpen before the connection opens or after it closes.
func (s *Supervisor) Send(v any) error {
	s.mu.Lock()
	st := s.st
	open := st != nil && st.open
	s.mu.Unlock()

	if !open {
		return ErrNotOpen
	}

	var data []byte
	switch p := v.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		data = b
	}

	if err := st.conn.Send(data); err != nil {
		// The connection can close between the open check and the write.
		if errors.Is(err, transport.ErrNotOpen) {
			return ErrNotOpen
		}
		return err
	}
	return nil
}

// Close requests a graceful shutdown. The caller-initiated mark is set
// and the reconnect scheduler disabled before any close event can be
// observed, so an explicit Close never triggers a reconnect. Safe to
// call when already closed.
func (s *Supervisor) Close(code int, reason string) error {
	s.mu.Lock()
	sess := s.sess
	st := s.st
	if st != nil {
		st.callerClosed = true
	}
	s.mu.Unlock()

	if sess == nil {
		return nil
	}

	sess.requestClose()

	if st != nil {
		return st.conn.Close(code, reason)
	}
	return nil
}

// Done returns a channel that is closed when the current session
// reaches a terminal state: caller close, reconnect budget exhausted,
// or an unexpected close with auto-reconnect disabled. A later Connect
// starts a new session with a new Done channel.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.sess.done
}

// Status returns a snapshot of the supervisor's current state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{AttemptsLeft: s.attemptsLeft}
	if s.st != nil {
		st.Open = s.st.open
		st.LastProbeAck = s.st.lastAck
		st.MissedAcks = s.st.missedAcks
	}
	return st
}

// runLoop is the event loop for one connection attempt. It is the only
// goroutine that touches the attempt's timers and health counters, and
// the only place hooks fire, so handlers never run concurrently. Both
// timers die with the loop; no tick can reach a closed attempt.
func (s *Supervisor) runLoop(st *connState) {
	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	var pollC <-chan time.Time
	if s.cfg.pollingActive() {
		poll := time.NewTicker(s.cfg.PollInterval)
		defer poll.Stop()
		pollC = poll.C
	}

	s.logger.Info("connection open",
		"endpoint", s.cfg.Endpoint,
		"streaming", s.cfg.Streaming,
	)
	if s.hooks.OnOpen != nil {
		s.hooks.OnOpen()
	}

	events := st.conn.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			switch ev.Kind {
			case transport.KindMessage:
				if s.hooks.OnMessage != nil {
					s.hooks.OnMessage(ev.Decoded, ev.Raw)
				}

			case transport.KindProbeAck:
				s.mu.Lock()
				st.lastAck = time.Now()
				s.mu.Unlock()

				s.logger.Debug("probe acknowledged", "probe_id", string(ev.Raw))
				if s.hooks.OnProbeAck != nil {
					s.hooks.OnProbeAck()
				}

			case transport.KindError:
				s.logger.Warn("transport error", "error", ev.Err)
				if s.hooks.OnError != nil {
					s.hooks.OnError(ev.Err)
				}

			case transport.KindClosed:
				heartbeat.Stop()
				s.handleClosed(st, ev.Code, ev.Reason)
				return
			}

		case <-heartbeat.C:
			if s.evaluateHealth(st) {
				s.sendProbe(st)
			}

		case <-pollC:
			s.sendPull(st)
		}
	}
}

// evaluateHealth runs at the start of every heartbeat tick. It returns
// false when the attempt was force-terminated, in which case no probe
// follows.
func (s *Supervisor) evaluateHealth(st *connState) bool {
	s.mu.Lock()
	lastAck := st.lastAck
	s.mu.Unlock()

	elapsed := time.Since(lastAck)
	if elapsed <= s.cfg.LivenessTimeout {
		// Healthy again; prior missed beats are forgiven.
		s.mu.Lock()
		st.missedAcks = 0
		s.mu.Unlock()
		return true
	}

	s.mu.Lock()
	st.missedAcks++
	missed := st.missedAcks
	s.mu.Unlock()

	if missed >= s.cfg.MaxMissedAcks {
		s.logger.Warn("connection unresponsive, terminating",
			"missed_acks", missed,
			"since_last_ack", elapsed,
		)
		// Abrupt termination: the close event it produces drives the
		// normal teardown and reconnect path.
		st.conn.Terminate()
		return false
	}

	s.logger.Debug("missed liveness ack",
		"missed_acks", missed,
		"since_last_ack", elapsed,
	)
	return true
}

// sendProbe emits one liveness probe. Each probe carries a fresh id so
// the ack can be matched in logs.
func (s *Supervisor) sendProbe(st *connState) {
	id := uuid.NewString()
	if err := st.conn.Probe([]byte(id)); err != nil {
		s.logger.Debug("probe send failed", "error", err)
		return
	}
	s.logger.Debug("probe sent", "probe_id", id)
}

// sendPull nudges the remote to flush buffered data.
func (s *Supervisor) sendPull(st *connState) {
	if err := st.conn.Send(pullPayload); err != nil {
		s.logger.Debug("pull send failed", "error", err)
	}
}

// handleClosed is the unified teardown point: graceful closes, network
// failures and health-evaluator terminations all arrive here.
func (s *Supervisor) handleClosed(st *connState, code int, reason string) {
	s.mu.Lock()
	st.open = false
	callerClosed := st.callerClosed
	current := s.st == st
	s.mu.Unlock()

	s.logger.Info("connection closed",
		"code", code,
		"reason", reason,
		"caller_initiated", callerClosed,
	)
	if s.hooks.OnClose != nil {
		s.hooks.OnClose(code, reason)
	}

	if !current {
		// A newer Connect took over; its session owns the lifecycle now.
		// The superseded session is finished so old Done waiters unblock.
		st.sess.finish()
		return
	}

	if callerClosed {
		st.sess.finish()
		return
	}

	if !s.cfg.AutoReconnect {
		s.logger.Info("auto-reconnect disabled, staying closed")
		st.sess.finish()
		return
	}

	go s.reconnectLoop(st.sess)
}

// reconnectLoop re-establishes the connection after an unexpected
// close. It waits the fixed delay, spends one unit of the lifetime
// attempt budget, and dials; a failed dial loops back through the same
// delay. It runs strictly between attempts, so its hook invocations
// never overlap an event loop's.
func (s *Supervisor) reconnectLoop(sess *session) {
	delay := time.NewTimer(s.cfg.ReconnectDelay)
	defer delay.Stop()

	for {
		select {
		case <-sess.closing:
			sess.finish()
			return
		case <-sess.ctx.Done():
			sess.finish()
			return
		case <-delay.C:
		}

		s.mu.Lock()
		if s.attemptsLeft <= 0 {
			s.mu.Unlock()
			s.logger.Warn("reconnect attempts exhausted, giving up")
			if s.hooks.OnDown != nil {
				s.hooks.OnDown(ErrReconnectExhausted)
			}
			sess.finish()
			return
		}
		s.attemptsLeft--
		left := s.attemptsLeft
		s.mu.Unlock()

		s.logger.Info("reconnecting", "attempts_left", left)

		if err := s.connectAttempt(sess); err != nil {
			if errors.Is(err, ErrSuperseded) {
				return
			}
			s.logger.Warn("reconnect failed", "error", err, "attempts_left", left)
			if s.hooks.OnError != nil {
				s.hooks.OnError(err)
			}
			delay.Reset(s.cfg.ReconnectDelay)
			continue
		}

		return
	}
}
