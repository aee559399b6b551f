package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novatra/novabot/internal/logging"
)

// ErrGatewayClosed is returned after Close.
var ErrGatewayClosed = errors.New("gateway closed")

// GatewayClient connects to the Discord Gateway and streams dispatch events.
// It resumes the previous session on reconnect when it can.
type GatewayClient struct {
	rest     *Client
	botToken string
	intents  int
	log      *slog.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	url       string
	resumeURL string
	conn      *websocket.Conn
	connDone  chan struct{}
	sessionID string
	seq       *int
	lastErr   error
	closed    bool
}

// NewGatewayClient creates a gateway client. The gateway URL is looked up
// through rest on first connect.
func NewGatewayClient(rest *Client, botToken string, intents int) *GatewayClient {
	return &GatewayClient{
		rest:     rest,
		botToken: botToken,
		intents:  intents,
		log:      logging.WithComponent("discord.gateway"),
	}
}

// SetURL skips the gateway URL lookup.
func (g *GatewayClient) SetURL(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.url = url
}

// Connect dials the gateway, waits for HELLO, then sends RESUME for a known
// session or IDENTIFY otherwise.
func (g *GatewayClient) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGatewayClosed
	}
	url := g.url
	g.mu.Unlock()

	if url == "" {
		var err error
		if url, err = g.rest.GetGatewayURL(ctx); err != nil {
			return fmt.Errorf("get gateway url: %w", err)
		}
		g.SetURL(url)
	}

	g.mu.Lock()
	canResume := g.sessionID != "" && g.seq != nil
	if canResume && g.resumeURL != "" {
		url = g.resumeURL
	}
	g.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url+"/?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	interval, err := g.handshake(conn, canResume)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}

	done := make(chan struct{})
	g.mu.Lock()
	g.conn = conn
	g.connDone = done
	g.lastErr = nil
	g.mu.Unlock()

	go g.heartbeatLoop(conn, interval, done)
	g.log.Info("Connected to Discord Gateway", slog.Bool("resumed", canResume))
	return nil
}

func (g *GatewayClient) handshake(conn *websocket.Conn, resumeSession bool) (time.Duration, error) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var event GatewayEvent
	if err := conn.ReadJSON(&event); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if event.Op != OpcodeHello {
		return 0, fmt.Errorf("expected hello opcode %d, got %d", OpcodeHello, event.Op)
	}
	var h hello
	if err := json.Unmarshal(event.D, &h); err != nil {
		return 0, fmt.Errorf("parse hello: %w", err)
	}
	if h.HeartbeatInterval <= 0 {
		return 0, fmt.Errorf("invalid heartbeat interval %d", h.HeartbeatInterval)
	}

	var payload any
	if resumeSession {
		g.mu.Lock()
		payload = resume{Op: OpcodeResume, D: resumeData{Token: g.botToken, SessionID: g.sessionID, Seq: *g.seq}}
		g.mu.Unlock()
	} else {
		payload = identify{Op: OpcodeIdentify, D: identifyData{
			Token:   g.botToken,
			Intents: g.intents,
			Properties: map[string]string{
				"os":      "linux",
				"browser": "novabot",
				"device":  "novabot",
			},
		}}
	}
	if err := g.write(conn, payload); err != nil {
		return 0, fmt.Errorf("send identify: %w", err)
	}
	return time.Duration(h.HeartbeatInterval) * time.Millisecond, nil
}

func (g *GatewayClient) write(conn *websocket.Conn, v any) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (g *GatewayClient) sendHeartbeat(conn *websocket.Conn) error {
	g.mu.Lock()
	seq := g.seq
	g.mu.Unlock()
	return g.write(conn, heartbeat{Op: OpcodeHeartbeat, D: seq})
}

func (g *GatewayClient) heartbeatLoop(conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(conn); err != nil {
				g.log.Warn("Heartbeat failed", slog.Any("error", err))
				return
			}
		}
	}
}

// Listen streams dispatch events from the current connection. The channel
// closes when the connection drops, the server asks for a reconnect, or ctx
// ends; Err then reports why.
func (g *GatewayClient) Listen(ctx context.Context) (<-chan GatewayEvent, error) {
	g.mu.Lock()
	conn, done := g.conn, g.connDone
	g.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	out := make(chan GatewayEvent, 64)
	go func() {
		defer close(out)
		defer g.dropConn(conn)

		for {
			var event GatewayEvent
			if err := conn.ReadJSON(&event); err != nil {
				g.setErr(err)
				g.log.Warn("Gateway read ended", slog.Any("error", err))
				return
			}
			if event.S != nil {
				g.mu.Lock()
				g.seq = event.S
				g.mu.Unlock()
			}

			switch event.Op {
			case OpcodeHeartbeat:
				_ = g.sendHeartbeat(conn)
				continue
			case OpcodeHeartbeatAck:
				continue
			case OpcodeReconnect:
				g.log.Info("Gateway requested reconnect")
				return
			case OpcodeInvalidSession:
				var resumable bool
				_ = json.Unmarshal(event.D, &resumable)
				if !resumable {
					g.forgetSession()
				}
				g.log.Info("Gateway session invalidated", slog.Bool("resumable", resumable))
				return
			case OpcodeDispatch:
			default:
				continue
			}

			if event.T == EventReady {
				var ready Ready
				if err := json.Unmarshal(event.D, &ready); err == nil {
					g.mu.Lock()
					g.sessionID = ready.SessionID
					g.resumeURL = ready.ResumeGatewayURL
					g.mu.Unlock()
					g.log.Info("Received READY", slog.String("session_id", ready.SessionID))
				}
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return out, nil
}

func (g *GatewayClient) dropConn(conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != conn {
		return
	}
	close(g.connDone)
	_ = g.conn.Close()
	g.conn = nil
	g.connDone = nil
}

func (g *GatewayClient) forgetSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionID = ""
	g.seq = nil
}

func (g *GatewayClient) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastErr = err
}

// Err returns the error that ended the last Listen stream, if any.
func (g *GatewayClient) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// IsFatal reports whether a gateway error rules out reconnecting, such as a
// rejected token.
func IsFatal(err error) bool {
	if errors.Is(err, ErrGatewayClosed) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case CloseCodeAuthFailed, 4010, 4011, 4012, 4013, CloseCodeDisallowedIntent:
			return true
		}
	}
	return false
}

// Close shuts the connection down for good.
func (g *GatewayClient) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if g.conn == nil {
		return nil
	}
	close(g.connDone)
	err := g.conn.Close()
	g.conn = nil
	g.connDone = nil
	return err
}
