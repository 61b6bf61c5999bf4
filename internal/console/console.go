// Package console serves an operator TUI over SSH: scheduled tasks, recent
// cycles and manual triggers.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crypto-herald/internal/job"
	"crypto-herald/internal/pipeline"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/rs/zerolog/log"
	gossh "golang.org/x/crypto/ssh"
)

type ctxKey string

const fingerprintKey ctxKey = "ssh_fingerprint"

// Pipeline is what the console reads and triggers.
type Pipeline interface {
	RunGlobalUpdate(ctx context.Context, trigger pipeline.Trigger) pipeline.CycleResult
	RunNewsCheck(ctx context.Context) pipeline.CycleResult
	Status() pipeline.Status
}

type TaskLister interface {
	Tasks() []job.TaskStatus
}

type Config struct {
	Addr                string
	HostKeyPath         string
	AllowedFingerprints []string
	Location            *time.Location
}

type Server struct {
	cfg      Config
	pipeline Pipeline
	tasks    TaskLister
	allowed  map[string]bool
	ctx      context.Context
}

var newWishServerFunc = wish.NewServer

func New(cfg Config, p Pipeline, tasks TaskLister) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	allowed := make(map[string]bool, len(cfg.AllowedFingerprints))
	for _, fp := range cfg.AllowedFingerprints {
		fp = strings.TrimSpace(fp)
		if fp != "" && !strings.HasPrefix(fp, "SHA256:") {
			fp = "SHA256:" + fp
		}
		if fp != "" {
			allowed[fp] = true
		}
	}
	return &Server{cfg: cfg, pipeline: p, tasks: tasks, allowed: allowed, ctx: context.Background()}
}

// Authorize accepts a key only when its SHA256 fingerprint is allow-listed.
func (s *Server) Authorize(key gossh.PublicKey) (string, bool) {
	fp := gossh.FingerprintSHA256(key)
	return fp, s.allowed[fp]
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.ctx = ctx
	srv, err := newWishServerFunc(
		wish.WithAddress(s.cfg.Addr),
		wish.WithHostKeyPath(s.cfg.HostKeyPath),
		wish.WithPublicKeyAuth(func(sctx ssh.Context, key ssh.PublicKey) bool {
			fp, ok := s.Authorize(key)
			if !ok {
				log.Warn().Str("component", "console").Str("fingerprint", fp).Msg("ssh auth denied")
				return false
			}
			sctx.SetValue(fingerprintKey, fp)
			log.Info().Str("component", "console").Str("user", sctx.User()).Str("fingerprint", fp).Msg("ssh auth accepted")
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(s.session),
			logging.Middleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("ssh server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "console").Str("addr", s.cfg.Addr).Msg("SSH console listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, ssh.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ssh listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) session(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	m := NewModel(s.ctx, s.pipeline, s.tasks, s.cfg.Location)
	m.user = sess.User()
	if pty, _, ok := sess.Pty(); ok {
		m.SetSize(pty.Window.Width, pty.Window.Height)
	}
	return m, []tea.ProgramOption{tea.WithAltScreen()}
}
