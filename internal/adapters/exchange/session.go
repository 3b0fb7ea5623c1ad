package exchange

// session.go — Transport Session del path live.
//
// Un único goroutine (el que llama Run) es dueño del socket y el único
// writer hacia el aggregator. El loop supervisor reintenta indefinidamente
// con backoff exponencial; una desconexión nunca es fatal para el proceso.
// Solo el fallo total de autenticación (AuthFailureLimit consecutivos)
// se escala al caller.

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/betstream/internal/domain"
	"github.com/alejandrodnm/betstream/internal/ports"
)

// ErrAuthentication marca un rechazo de credenciales por parte del exchange.
var ErrAuthentication = errors.New("authentication rejected")

// SessionState es el estado del state machine de la sesión.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateStreaming
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Las definiciones con cientos de runners superan el buffer por defecto
// de bufio.Scanner.
const maxLineBytes = 4 << 20

// SessionConfig controla la sesión de streaming.
type SessionConfig struct {
	Addr        string
	MarketIDs   []string
	Fields      []string
	HeartbeatMs int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration

	// DecodeFailureBurst corta la conexión tras N frames malformados
	// seguidos; frames malformados sueltos solo se cuentan y saltan.
	DecodeFailureBurst int

	// AuthFailureLimit escala el error al caller tras N rechazos de
	// autenticación consecutivos.
	AuthFailureLimit int

	// Dialer reemplaza el dial TLS por defecto; lo usan los tests para
	// inyectar conexiones en memoria.
	Dialer func(ctx context.Context) (net.Conn, error)
}

// DefaultSessionConfig devuelve una configuración sensata para producción.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       10 * time.Second,
		BaseBackoff:        time.Second,
		MaxBackoff:         60 * time.Second,
		DecodeFailureBurst: 10,
		AuthFailureLimit:   5,
	}
}

// Session mantiene la conexión autenticada con el stream del exchange y
// alimenta los market changes decodificados al handler.
type Session struct {
	cfg     SessionConfig
	creds   ports.CredentialProvider
	handler ports.MarketChangeHandler

	// dial es reemplazable en tests; por defecto abre un socket TLS.
	dial func(ctx context.Context) (net.Conn, error)

	state          atomic.Int32
	reconnects     atomic.Int64
	decodeFailures atomic.Int64
	reqID          int // solo lo toca el goroutine de Run
}

// NewSession crea una Session con las dependencias inyectadas.
func NewSession(cfg SessionConfig, creds ports.CredentialProvider, handler ports.MarketChangeHandler) *Session {
	def := DefaultSessionConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.DecodeFailureBurst <= 0 {
		cfg.DecodeFailureBurst = def.DecodeFailureBurst
	}
	if cfg.AuthFailureLimit <= 0 {
		cfg.AuthFailureLimit = def.AuthFailureLimit
	}

	s := &Session{cfg: cfg, creds: creds, handler: handler}
	s.dial = cfg.Dialer
	if s.dial == nil {
		s.dial = func(ctx context.Context) (net.Conn, error) {
			d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
			return d.DialContext(ctx, "tcp", cfg.Addr)
		}
	}
	return s
}

// State devuelve el estado actual del state machine.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Reconnects devuelve cuántas veces se reinició la conexión.
func (s *Session) Reconnects() int64 { return s.reconnects.Load() }

// DecodeFailures devuelve cuántas líneas malformadas se saltaron.
func (s *Session) DecodeFailures() int64 { return s.decodeFailures.Load() }

// Run ejecuta el loop supervisor hasta que el contexto se cancele.
// Los errores de transporte reintentan para siempre; devuelve error solo
// tras AuthFailureLimit rechazos de autenticación consecutivos.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	attempt := 0
	authFailures := 0

	for {
		streamed, err := s.runOnce(ctx)
		s.setState(StateDisconnected)

		if ctx.Err() != nil {
			slog.Info("stream session stopped")
			return nil
		}

		if errors.Is(err, ErrAuthentication) {
			authFailures++
			slog.Error("stream authentication rejected",
				"err", err,
				"consecutive", authFailures,
				"limit", s.cfg.AuthFailureLimit,
			)
			if authFailures >= s.cfg.AuthFailureLimit {
				return fmt.Errorf("session.Run: %d consecutive auth failures: %w", authFailures, err)
			}
		} else {
			authFailures = 0
			slog.Warn("stream disconnected", "err", err, "attempt", attempt)
		}

		if streamed {
			// La conexión llegó a streaming: el backoff arranca de cero.
			attempt = 0
		}

		s.reconnects.Add(1)
		wait := s.backoff(attempt)
		attempt++
		slog.Debug("reconnecting", "wait", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// runOnce ejecuta un ciclo completo connect → authenticate → subscribe →
// read-loop. Devuelve streamed=true si la sesión llegó a Streaming.
func (s *Session) runOnce(ctx context.Context) (streamed bool, err error) {
	s.setState(StateConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("session: dial %s: %w", s.cfg.Addr, err)
	}
	defer conn.Close()

	// Cierre cooperativo: cancelar el contexto cierra el socket y
	// desbloquea el Read sin propagar un panic entre componentes.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	env, err := s.readEnvelope(conn, scanner)
	if err != nil {
		return false, fmt.Errorf("session: handshake read: %w", err)
	}
	hello, ok := env.(domain.Connection)
	if !ok {
		return false, fmt.Errorf("session: expected connection envelope, got %q", env.Op())
	}
	slog.Info("stream connected", "connection_id", hello.ConnectionID)

	s.setState(StateAuthenticating)
	if err := s.authenticate(ctx, conn, scanner); err != nil {
		return false, err
	}

	// La suscripción es fire-and-forget: la sesión se considera viva en
	// cuanto el request sale. Tras una reconexión el exchange no conserva
	// nada, así que siempre se reenvían todas las suscripciones activas.
	s.setState(StateSubscribing)
	sub, err := EncodeSubscribe(s.nextID(), s.cfg.MarketIDs, s.cfg.Fields, s.cfg.HeartbeatMs)
	if err != nil {
		return false, fmt.Errorf("session: %w", err)
	}
	if err := s.write(conn, sub); err != nil {
		return false, fmt.Errorf("session: send subscribe: %w", err)
	}

	s.setState(StateStreaming)
	slog.Info("stream live", "markets", len(s.cfg.MarketIDs))

	return true, s.readLoop(ctx, conn, scanner)
}

// authenticate envía el auth request y espera el status de respuesta.
func (s *Session) authenticate(ctx context.Context, conn net.Conn, scanner *bufio.Scanner) error {
	token, err := s.creds.SessionToken(ctx)
	if err != nil {
		return fmt.Errorf("session: fetch session token: %w", err)
	}

	msg, err := EncodeAuth(s.nextID(), s.creds.AppKey(), token)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := s.write(conn, msg); err != nil {
		return fmt.Errorf("session: send auth: %w", err)
	}

	env, err := s.readEnvelope(conn, scanner)
	if err != nil {
		return fmt.Errorf("session: auth response: %w", err)
	}
	status, ok := env.(domain.Status)
	if !ok {
		return fmt.Errorf("session: expected status envelope, got %q", env.Op())
	}
	if !status.OK() {
		return fmt.Errorf("session: %w: %s %s", ErrAuthentication, status.ErrorCode, status.ErrorMessage)
	}
	return nil
}

// readLoop consume el feed hasta error de lectura, EOF o burst de frames
// malformados. Los heartbeats solo resetean el read deadline.
func (s *Session) readLoop(ctx context.Context, conn net.Conn, scanner *bufio.Scanner) error {
	burst := 0
	for {
		line, err := s.readLine(conn, scanner)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session: read: %w", err)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		env, err := Decode(line)
		if err != nil {
			s.decodeFailures.Add(1)
			burst++
			slog.Warn("malformed frame skipped", "err", err, "burst", burst)
			if burst >= s.cfg.DecodeFailureBurst {
				return fmt.Errorf("session: %d consecutive malformed frames: %w", burst, ErrProtocolDecode)
			}
			continue
		}
		burst = 0

		switch e := env.(type) {
		case domain.MarketChange:
			if e.Heartbeat() {
				continue
			}
			s.handler.OnMarketChange(e)
		case domain.Status:
			if e.ConnectionClosed {
				return fmt.Errorf("session: exchange closed connection: %s %s", e.ErrorCode, e.ErrorMessage)
			}
			if !e.OK() {
				slog.Warn("stream status error", "code", e.ErrorCode, "msg", e.ErrorMessage)
			}
		case domain.Connection:
			// Inesperado mid-stream; no transporta estado, se ignora.
		}
	}
}

// readEnvelope lee y decodifica la siguiente línea no vacía del handshake.
func (s *Session) readEnvelope(conn net.Conn, scanner *bufio.Scanner) (domain.Envelope, error) {
	for {
		line, err := s.readLine(conn, scanner)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return Decode(line)
	}
}

// readLine lee una línea con el read deadline configurado.
func (s *Session) readLine(conn net.Conn, scanner *bufio.Scanner) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		return nil, err
	}
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return scanner.Bytes(), nil
}

// write envía un mensaje con el write deadline configurado.
func (s *Session) write(conn net.Conn, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(msg)
	return err
}

// backoff espera exponencial con tope, estilo 2^attempt sobre BaseBackoff.
func (s *Session) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return s.cfg.MaxBackoff
	}
	wait := time.Duration(math.Pow(2, float64(attempt))) * s.cfg.BaseBackoff
	if wait > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return wait
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) nextID() int {
	s.reqID++
	return s.reqID
}
