// SPDX-License-Identifier: EPL-2.0

package statusserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"matrun-cli/internal/core/serverbase"
)

// clearScreen homes the cursor and wipes the frame before each redraw.
const clearScreen = "\x1b[2J\x1b[H"

// ErrNilBoard is returned by New when no board is supplied.
var ErrNilBoard = errors.New("status server needs a board")

type (
	// Config holds immutable configuration for the status server.
	Config struct {
		// Addr is the host:port to bind to. An empty or zero port
		// auto-selects a free one.
		Addr string
		// Token guards access; empty means generate a random one.
		Token string
		// HostKeyPath is where the SSH host key lives. The key is created
		// on first use. Empty means an ephemeral in-memory key.
		HostKeyPath string
		// StartupTimeout is the max time to wait for the server to be
		// ready (default: 5s).
		StartupTimeout time.Duration
		// ShutdownTimeout is the timeout for graceful shutdown
		// (default: 10s).
		ShutdownTimeout time.Duration
	}

	// Server serves the board to SSH clients. A Server instance is
	// single-use: once stopped or failed, create a new instance.
	Server struct {
		*serverbase.Base

		cfg   Config
		token string
		board *Board

		// Initialized during Start(), guarded by srvMu.
		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		logger *log.Logger
	}
)

// DefaultConfig returns a configuration that binds an auto-selected
// localhost port with a generated token and an ephemeral host key.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:0",
		StartupTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// New creates a status server for the given board. The server is not
// started; call Start() to begin accepting connections.
func New(board *Board, cfg Config, logger *log.Logger) (*Server, error) {
	if board == nil {
		return nil, ErrNilBoard
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "status"})
	}

	token := cfg.Token
	if token == "" {
		generated, err := generateToken(16)
		if err != nil {
			return nil, fmt.Errorf("failed to generate access token: %w", err)
		}
		token = generated
	}

	return &Server{
		Base:   serverbase.NewBase(),
		cfg:    cfg,
		token:  token,
		board:  board,
		logger: logger,
	}, nil
}

// Token returns the access token clients must present as their SSH
// password.
func (s *Server) Token() string { return s.token }

// Start starts the status server and blocks until either:
//   - The server is ready to accept connections (returns nil)
//   - The server fails to start (returns error)
//   - The context is cancelled (returns context error)
//   - The startup timeout is exceeded (returns error)
//
// After Start() returns nil, use Err() to monitor for runtime errors.
func (s *Server) Start(ctx context.Context) error {
	if err := s.TransitionToStarting(ctx); err != nil {
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", s.cfg.Addr)
	if err != nil {
		s.TransitionToFailed(fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err))
		return s.LastError()
	}

	s.srvMu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	opts := []ssh.Option{
		wish.WithAddress(s.cfg.Addr),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithMiddleware(s.boardMiddleware()),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = listener.Close() // Best-effort cleanup on error
		s.TransitionToFailed(fmt.Errorf("failed to create SSH server: %w", err))
		return s.LastError()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	s.AddGoroutine()
	go s.serve()

	select {
	case <-s.StartedChannel():
		s.logger.Info("status server started", "address", s.addr)
		return nil

	case err := <-s.Err():
		s.TransitionToFailed(err)
		return err

	case <-startupCtx.Done():
		s.TransitionToFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.LastError()
	}
}

// Stop gracefully stops the status server. It blocks until all sessions
// are closed or the shutdown timeout is reached. Safe to call multiple
// times; subsequent calls are no-ops.
func (s *Server) Stop() error {
	if !s.TransitionToStopping() {
		// Already stopped, stopping, created, or failed
		s.WaitForShutdown()
		return nil
	}
	return s.doStop()
}

// doStop performs the actual shutdown logic.
func (s *Server) doStop() error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		shutdownErr = s.srv.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, ssh.ErrServerClosed) {
			s.logger.Error("shutdown error", "error", shutdownErr)
		} else {
			shutdownErr = nil
		}
	}
	if s.listener != nil {
		_ = s.listener.Close() //nolint:errcheck // Best-effort cleanup during shutdown
	}
	s.srvMu.Unlock()

	s.WaitForShutdown()

	s.TransitionToStopped()
	s.CloseErrChannel()
	s.logger.Info("status server stopped")

	return shutdownErr
}

// serve runs the SSH server and reports unexpected failures.
func (s *Server) serve() {
	defer s.DoneGoroutine()

	// Transition: Starting -> Running (signals readiness)
	s.TransitionToRunning()

	s.srvMu.Lock()
	srv := s.srv
	listener := s.listener
	s.srvMu.Unlock()

	if srv == nil || listener == nil {
		return
	}

	err := srv.Serve(listener)
	if err != nil {
		// Ignore expected shutdown errors
		if errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return
		}
		s.SendError(fmt.Errorf("serve error: %w", err))
	}
}

// Address returns the server's bound address (host:port). Blocks until
// the server has started or failed. Returns empty string if the server
// never started.
func (s *Server) Address() string {
	select {
	case <-s.StartedChannel():
		s.srvMu.Lock()
		defer s.srvMu.Unlock()
		return s.addr
	default:
		ctx := s.Context()
		if ctx == nil {
			return ""
		}
		select {
		case <-s.StartedChannel():
			s.srvMu.Lock()
			defer s.srvMu.Unlock()
			return s.addr
		case <-ctx.Done():
			return ""
		}
	}
}

// Port returns the server's listening port, or 0 if the server never
// started.
func (s *Server) Port() int {
	addr := s.Address()
	if addr == "" {
		return 0
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 0
	}
	return port
}

// Wait blocks until the server stops (either gracefully or due to error).
// Returns the error if the server failed, nil otherwise.
func (s *Server) Wait() error {
	s.WaitForShutdown()
	if s.State() == serverbase.StateFailed {
		return s.LastError()
	}
	return nil
}

// passwordHandler accepts sessions whose password matches the access
// token.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.token)) != 1 {
		s.logger.Warn("rejected connection with bad token", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	return true
}

// publicKeyHandler rejects all public key authentication.
// Only token-based password auth is accepted.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}

// boardMiddleware serves the scoreboard. Clients with a PTY get a live
// view; plain clients (ssh -T, scripted checks) get one snapshot.
func (s *Server) boardMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			_, _, isPty := sess.Pty()
			if !isPty {
				_, _ = io.WriteString(sess, s.board.Render())
				_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
				return
			}
			s.watch(sess)
			_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
		}
	}
}

// watch redraws the board for one session until the client detaches (q,
// ctrl-c, ctrl-d, or connection loss) or the server stops.
func (s *Server) watch(sess ssh.Session) {
	ctx, cancel := context.WithCancel(sess.Context())
	defer cancel()

	// Server shutdown ends the session too, so Stop() is never held
	// hostage by an idle watcher.
	if srvCtx := s.Context(); srvCtx != nil {
		go func() {
			select {
			case <-srvCtx.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	// Detach keys arrive on the session's input stream.
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := sess.Read(buf)
			if err != nil {
				cancel()
				return
			}
			if n > 0 && (buf[0] == 'q' || buf[0] == 3 || buf[0] == 4) {
				cancel()
				return
			}
		}
	}()

	hint := boardDimStyle.Render("press q to detach") + "\n"
	version := s.board.Version()
	for {
		frame := clearScreen + s.board.Render() + "\n" + hint
		// Raw-mode terminals need CRLF line endings.
		if _, err := io.WriteString(sess, strings.ReplaceAll(frame, "\n", "\r\n")); err != nil {
			return
		}
		next := s.board.Wait(ctx, version)
		if next == version {
			return
		}
		version = next
	}
}

// generateToken generates a random hex-encoded token of the specified
// byte length.
func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
