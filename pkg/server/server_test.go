package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/engine"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/session"
)

const (
	testAPIKey       = "test-api-key"
	testClientSecret = "test-client-secret"
)

// scriptedEngine replies with a fixed prefix over the last turn, or fails
// when broken.
type scriptedEngine struct {
	broken bool
}

func (e *scriptedEngine) Complete(_ context.Context, turns []chat.Turn) (chat.Turn, error) {
	if e.broken {
		return chat.Turn{}, errors.Wrap(engine.ErrUpstream, "provider returned 500")
	}
	return chat.Assistant("re: " + turns[len(turns)-1].Content), nil
}

type fixture struct {
	srv    *httptest.Server
	signer *auth.Signer
	store  *session.MemoryStore
	engine *scriptedEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer := auth.NewSigner([]byte("test-signing-secret"), "http://gateway.test")
	store := session.NewMemoryStore()
	eng := &scriptedEngine{}

	s := New(Options{
		Store:         store,
		Verifier:      auth.NewVerifier([]string{testAPIKey}, signer),
		Signer:        signer,
		Engine:        eng,
		ClientSecret:  testClientSecret,
		Issuer:        "http://gateway.test",
		EngineTimeout: 5 * time.Second,
		Logger:        zerolog.Nop(),
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, signer: signer, store: store, engine: eng}
}

func (f *fixture) postJSON(t *testing.T, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", f.srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (f *fixture) get(t *testing.T, path, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest("GET", f.srv.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestChat_GeneratesSessionAndRecordsHistory(t *testing.T) {
	f := newFixture(t)

	resp, body := f.postJSON(t, "/chat", testAPIKey, map[string]any{
		"message": "find me a 3BR house",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "re: find me a 3BR house", body["response"])

	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID, "server must generate a session id")

	// The stored history is exactly user turn then assistant reply.
	resp, body = f.get(t, "/sessions/"+sessionID, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "find me a 3BR house", first["content"])
	assert.Equal(t, "assistant", second["role"])
	assert.Equal(t, "re: find me a 3BR house", second["content"])
}

func TestChat_ReusesProvidedSession(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"first", "second"} {
		resp, body := f.postJSON(t, "/chat", testAPIKey, map[string]any{
			"message":    msg,
			"session_id": "fixed-session",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "fixed-session", body["session_id"])
	}

	sess, err := f.store.Get("fixed-session")
	require.NoError(t, err)
	turns := sess.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "re: first", turns[1].Content)
	assert.Equal(t, "second", turns[2].Content)
	assert.Equal(t, "re: second", turns[3].Content)
}

func TestChat_Unauthorized(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.postJSON(t, "/chat", "", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.postJSON(t, "/chat", "wrong-key", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChat_AcceptsIssuedToken(t *testing.T) {
	f := newFixture(t)

	token, err := f.signer.Issue("client", "chat", time.Hour)
	require.NoError(t, err)

	resp, _ := f.postJSON(t, "/chat", token, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChat_BadRequest(t *testing.T) {
	f := newFixture(t)

	resp, body := f.postJSON(t, "/chat", testAPIKey, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "message is required")
}

func TestChat_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.engine.broken = true

	resp, body := f.postJSON(t, "/chat", testAPIKey, map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	// No internal detail leaks.
	assert.Equal(t, "dialogue engine unavailable", body["error"])
}

func TestCompletions(t *testing.T) {
	f := newFixture(t)

	resp, body := f.postJSON(t, "/chat/completions", testAPIKey, map[string]any{
		"model": "gpt-4o-mini",
		"messages": []map[string]string{
			{"role": "user", "content": "hello"},
			{"role": "assistant", "content": "hi there"},
			{"role": "user", "content": "any houses?"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	choices, ok := body["choices"].([]any)
	require.True(t, ok)
	require.Len(t, choices, 1)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "assistant", msg["role"])
	assert.Equal(t, "re: any houses?", msg["content"])
	assert.Equal(t, "chat.completion", body["object"])

	// Usage is rendered text lengths.
	usage := body["usage"].(map[string]any)
	promptChars := len("hello") + len("hi there") + len("any houses?")
	assert.EqualValues(t, promptChars, usage["prompt_tokens"])
	assert.EqualValues(t, len("re: any houses?"), usage["completion_tokens"])
	assert.EqualValues(t, promptChars+len("re: any houses?"), usage["total_tokens"])
}

func TestCompletions_RejectsUnknownRole(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.postJSON(t, "/chat/completions", testAPIKey, map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": "you are helpful"},
			{"role": "user", "content": "hello"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompletions_EmptyMessages(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.postJSON(t, "/chat/completions", testAPIKey, map[string]any{
		"messages": []map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVapiWebhook(t *testing.T) {
	f := newFixture(t)

	// Any non-empty authorization header passes the placeholder check.
	resp, body := f.postJSON(t, "/vapi/webhook", "anything-at-all", map[string]any{
		"session_id":   "vapi-call-1",
		"user_message": "looking for a condo",
		"context":      map[string]any{"call_id": "call-123", "user_phone": "+15550100"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "re: looking for a condo", body["response"])
	assert.Equal(t, "vapi-call-1", body["session_id"])

	// Opaque context comes back untouched.
	ctx := body["context"].(map[string]any)
	assert.Equal(t, "call-123", ctx["call_id"])
	assert.Equal(t, "+15550100", ctx["user_phone"])
}

func TestVapiWebhook_MissingAuthHeader(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.postJSON(t, "/vapi/webhook", "", map[string]any{
		"session_id":   "vapi-call-1",
		"user_message": "hi",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVapiWebhook_RequiresSessionID(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.postJSON(t, "/vapi/webhook", "vapi-key", map[string]any{
		"user_message": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessions_NotFoundAndDelete(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/sessions/unknown", testAPIKey)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Create a session, delete it, and make sure it stays gone.
	_, body := f.postJSON(t, "/chat", testAPIKey, map[string]any{
		"message":    "hello",
		"session_id": "doomed",
	})
	require.Equal(t, "doomed", body["session_id"])

	req, err := http.NewRequest("DELETE", f.srv.URL+"/sessions/doomed", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, _ = f.get(t, "/sessions/doomed", testAPIKey)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_RejectsSignedToken(t *testing.T) {
	f := newFixture(t)

	// Session endpoints are static-key only; issued tokens do not clear
	// them.
	token, err := f.signer.Issue("client", "chat", time.Hour)
	require.NoError(t, err)

	resp, _ := f.get(t, "/sessions/anything", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func postForm(t *testing.T, rawURL string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(rawURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func TestOAuthToken_Issue(t *testing.T) {
	f := newFixture(t)

	resp, body := postForm(t, f.srv.URL+"/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"vapi-integration"},
		"client_secret": {testClientSecret},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3600, body["expires_in"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "chat", body["scope"])

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	claims, err := f.signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "vapi-integration", claims.Subject)
	assert.Equal(t, "chat", claims.Scope)
}

func TestOAuthToken_WrongSecret(t *testing.T) {
	f := newFixture(t)

	resp, _ := postForm(t, f.srv.URL+"/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_secret": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOAuthToken_UnsupportedGrant(t *testing.T) {
	f := newFixture(t)

	resp, _ := postForm(t, f.srv.URL+"/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_secret": {testClientSecret},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOAuth_Discovery(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/.well-known/oauth-authorization-server", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://gateway.test", body["issuer"])
	assert.Equal(t, "http://gateway.test/oauth/token", body["token_endpoint"])
	assert.Equal(t, "http://gateway.test/oauth/introspect", body["introspection_endpoint"])

	resp, body = f.get(t, "/oauth/token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://gateway.test/oauth/token", body["token_endpoint"])
}

func TestOAuth_Introspect(t *testing.T) {
	f := newFixture(t)

	token, err := f.signer.Issue("client", "chat", time.Hour)
	require.NoError(t, err)

	resp, body := postForm(t, f.srv.URL+"/oauth/introspect", url.Values{"token": {token}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "client", body["sub"])
	assert.Equal(t, "chat", body["scope"])

	resp, body = postForm(t, f.srv.URL+"/oauth/introspect", url.Values{"token": {"garbage"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["active"])
}

func TestAgentInfo(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/agent", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "real-estate-agent-gateway", body["name"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Equal(t, "/chat", endpoints["chat"])
}
