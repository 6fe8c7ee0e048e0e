// Package server wires together the HTTP surface of the gateway: the chat
// transports, the session API, and the OAuth2 client-credentials issuer.
// Every transport reduces to the same exchange: verify the credential,
// resolve the session, append the user turn, run the dialogue engine over
// the full history, append the reply, and render it in the caller's shape.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/engine"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/session"
)

// Options carries the server's collaborators and settings.
type Options struct {
	Store    session.Store
	Usage    *session.UsageTracker
	Verifier *auth.Verifier
	// Signer issues and introspects OAuth tokens. May be nil, which
	// disables the /oauth surface (issuance 401s, introspection reports
	// inactive).
	Signer *auth.Signer
	Engine session.Completer

	// ClientSecret is the expected client_secret for token issuance.
	// Empty disables issuance.
	ClientSecret string
	// Issuer is the public base URL used in discovery metadata.
	Issuer string
	// EngineTimeout bounds each dialogue engine call.
	EngineTimeout time.Duration

	Logger zerolog.Logger
}

// Server is the gateway's HTTP server.
type Server struct {
	store    session.Store
	usage    *session.UsageTracker
	verifier *auth.Verifier
	signer   *auth.Signer
	engine   session.Completer

	clientSecret  string
	issuer        string
	engineTimeout time.Duration

	mux    *http.ServeMux
	logger zerolog.Logger
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	if opts.Usage == nil {
		opts.Usage = session.NewUsageTracker()
	}
	if opts.EngineTimeout <= 0 {
		opts.EngineTimeout = 2 * time.Minute
	}

	s := &Server{
		store:         opts.Store,
		usage:         opts.Usage,
		verifier:      opts.Verifier,
		signer:        opts.Signer,
		engine:        opts.Engine,
		clientSecret:  opts.ClientSecret,
		issuer:        opts.Issuer,
		engineTimeout: opts.EngineTimeout,
		mux:           http.NewServeMux(),
		logger:        opts.Logger,
	}

	// Chat transports.
	s.mux.HandleFunc("POST /chat", s.handle(s.handleChat))
	s.mux.HandleFunc("POST /chat/completions", s.handle(s.handleCompletions))
	s.mux.HandleFunc("POST /vapi/webhook", s.handle(s.handleVapiWebhook))

	// Session API.
	s.mux.HandleFunc("GET /sessions/{id}", s.handle(s.handleGetSession))
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handle(s.handleDeleteSession))

	// OAuth2 client-credentials surface.
	s.mux.HandleFunc("POST /oauth/token", s.handle(s.handleTokenIssue))
	s.mux.HandleFunc("GET /oauth/token", s.handle(s.handleTokenMetadata))
	s.mux.HandleFunc("GET /.well-known/oauth-authorization-server", s.handle(s.handleDiscovery))
	s.mux.HandleFunc("POST /oauth/introspect", s.handle(s.handleIntrospect))

	// Liveness and pipeline metadata.
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /agent", s.handle(s.handleAgentInfo))

	return s
}

// Run starts the server on the given address.
func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("gateway listening")
	return http.ListenAndServe(addr, s.mux)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(l net.Listener) error {
	s.logger.Info().Stringer("addr", l.Addr()).Msg("gateway listening")
	return http.Serve(l, s.mux)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// exchange runs one turn through a session: resolve/create, append the
// user turn, complete over the full history under the session lock, and
// append the reply. The engine call carries a bounded timeout; its failure
// surfaces as an upstream error and leaves the user turn in place.
func (s *Server) exchange(ctx context.Context, key string, userTurn chat.Turn) (chat.Turn, error) {
	sess := s.store.GetOrCreate(key)

	ctx, cancel := context.WithTimeout(ctx, s.engineTimeout)
	defer cancel()

	reply, err := sess.Exchange(ctx, userTurn, s.engine)
	if err != nil {
		if !errors.Is(err, engine.ErrUpstream) {
			err = errors.Wrapf(engine.ErrUpstream, "%v", err)
		}
		return chat.Turn{}, err
	}

	s.usage.Record(key, int64(len(userTurn.Content)), int64(len(reply.Content)))
	s.logger.Debug().
		Str("session_id", key).
		Int("history_len", sess.Len()).
		Msg("exchange completed")
	return reply, nil
}
