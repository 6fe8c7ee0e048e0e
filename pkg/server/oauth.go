package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
)

// tokenTTL is the fixed lifetime of issued tokens.
const tokenTTL = time.Hour

// tokenScope is the only scope the gateway issues.
const tokenScope = "chat"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// handleTokenIssue implements the client-credentials grant: a matching
// client_secret yields a signed bearer token with a fixed one-hour ttl.
func (s *Server) handleTokenIssue(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errors.Wrapf(errBadRequest, "invalid form body: %v", err)
	}
	if grant := r.PostFormValue("grant_type"); grant != "client_credentials" {
		return errors.Wrapf(errBadRequest, "unsupported grant_type %q", grant)
	}

	secret := r.PostFormValue("client_secret")
	if s.signer == nil || s.clientSecret == "" {
		return errors.Wrap(auth.ErrUnauthorized, "token issuance is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.clientSecret)) != 1 {
		return errors.Wrap(auth.ErrUnauthorized, "invalid client credentials")
	}

	subject := r.PostFormValue("client_id")
	if subject == "" {
		subject = "client"
	}

	token, err := s.signer.Issue(subject, tokenScope, tokenTTL)
	if err != nil {
		return errors.Wrap(err, "issue token")
	}

	s.logger.Info().Str("subject", subject).Msg("issued client-credentials token")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(tokenTTL.Seconds()),
		Scope:       tokenScope,
	})
	return nil
}

// handleTokenMetadata describes the token endpoint for GET callers.
func (s *Server) handleTokenMetadata(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                s.issuer,
		"token_endpoint":        s.issuer + "/oauth/token",
		"grant_types_supported": []string{"client_credentials"},
	})
	return nil
}

// handleDiscovery serves the RFC 8414 authorization-server metadata.
func (s *Server) handleDiscovery(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                 s.issuer,
		"token_endpoint":         s.issuer + "/oauth/token",
		"introspection_endpoint": s.issuer + "/oauth/introspect",
		"grant_types_supported":  []string{"client_credentials"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
		"response_types_supported":              []string{"token"},
		"scopes_supported":                      []string{tokenScope},
	})
	return nil
}

// handleIntrospect implements the RFC 7662 shape. It is deliberately
// side-effect free and never fails: anything unverifiable is active=false.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errors.Wrapf(errBadRequest, "invalid form body: %v", err)
	}
	token := r.PostFormValue("token")
	if token == "" {
		return errors.Wrap(errBadRequest, "token is required")
	}

	if s.signer == nil {
		writeJSON(w, http.StatusOK, auth.Introspection{Active: false})
		return nil
	}

	writeJSON(w, http.StatusOK, s.signer.Introspect(token))
	return nil
}
