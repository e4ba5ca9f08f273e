package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/clients"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/server"
	"github.com/inevity/zhibot/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	testAdminToken   = "admin-secret"
	testClientID     = "genie-skill"
	testClientSecret = "s3cret"
)

type testFixture struct {
	gateway *server.Gateway
	srv     *httptest.Server
}

func setupTestFixture(t *testing.T, bots []config.BotConfig) *testFixture {
	t.Helper()

	t.Setenv("FOLDER", t.TempDir())
	t.Setenv("TOKEN_DB", config.TokenDBMemory)
	t.Setenv("TOKEN_SECRET", "test-signing-secret")
	t.Setenv("ADMIN_TOKEN", testAdminToken)
	t.Setenv("OIDC_ISSUER", "")
	t.Setenv("ENV", "TEST")

	hash, err := clients.HashSecret(testClientSecret)
	require.NoError(t, err)

	file := &config.File{
		Bots:    bots,
		Clients: []config.ClientConfig{{ID: testClientID, Name: "Genie", SecretHash: hash}},
		Devices: []config.DeviceConfig{{ID: "tv", Name: "tv"}},
	}

	g, err := server.Bootstrap(context.Background(), config.New(), file, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	srv := httptest.NewServer(g.Server)
	t.Cleanup(srv.Close)

	return &testFixture{gateway: g, srv: srv}
}

func (f *testFixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *testFixture) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.PostForm(f.srv.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *testFixture) admin(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) gjson.Result {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return gjson.ParseBytes(b)
}

func TestBootstrap_RegistersEndpoints(t *testing.T) {
	f := setupTestFixture(t, []config.BotConfig{
		{Platform: "genie2", Name: "Living Room", Token: "abc"},
		{Platform: "ding"},
		{Platform: "genie", Name: "Home"},
	})

	paths := make([]string, 0, len(f.gateway.Endpoints))
	for _, ep := range f.gateway.Endpoints {
		paths = append(paths, ep.Path())
	}
	require.Equal(t, []string{"/living_room", "/ding", "/home"}, paths)
	require.Contains(t, f.gateway.Server.Routes(), "POST /living_room")

	require.Equal(t, "static_token", f.gateway.Endpoints[0].Strategy().Name())
	require.Equal(t, "interactive_consent", f.gateway.Endpoints[1].Strategy().Name())
	require.Equal(t, "oauth_bridge", f.gateway.Endpoints[2].Strategy().Name())
	require.True(t, f.gateway.Provider.Installed(token.LifetimeExtenderName))
}

func TestBootstrap_RejectsCollidingPaths(t *testing.T) {
	t.Setenv("FOLDER", t.TempDir())
	t.Setenv("TOKEN_DB", config.TokenDBMemory)
	t.Setenv("TOKEN_SECRET", "x")
	t.Setenv("ADMIN_TOKEN", testAdminToken)

	file := &config.File{Bots: []config.BotConfig{
		{Platform: "genie2", Name: "Living Room", Token: "a"},
		{Platform: "ding", Name: "living-room", Token: "b"},
	}}
	_, err := server.Bootstrap(context.Background(), config.New(), file, prometheus.NewRegistry())
	require.Error(t, err)
	require.ErrorIs(t, err, zerrors.ErrInvalidConfig)
}

func TestBotEndpoint_StaticToken(t *testing.T) {
	f := setupTestFixture(t, []config.BotConfig{{Platform: "genie2", Name: "Living Room", Token: "abc"}})
	payload := `{"utterance":"tv状态","requestData":{"userOpenId":"U1"}}`

	resp := f.post(t, "/living_room?token=abc", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Equal(t, "0", body.Get("returnCode").String())
	require.NotEqual(t, bot.DeniedMessage, body.Get("returnValue.reply").String())

	resp = f.post(t, "/living_room?token=wrong", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, bot.DeniedMessage, readBody(t, resp).Get("returnValue.reply").String())
}

func TestHostRoutes(t *testing.T) {
	f := setupTestFixture(t, nil)

	resp, err := http.Get(f.srv.URL + server.RouteHealthz)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", readBody(t, resp).Get("status").String())

	resp, err = http.Get(f.srv.URL + "/nowhere")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", readBody(t, resp).Get("error").String())

	resp, err = http.Get(f.srv.URL + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenEndpoint(t *testing.T) {
	f := setupTestFixture(t, []config.BotConfig{{Platform: "genie"}})
	ctx := context.Background()

	rt, err := f.gateway.Provider.IssueRefreshToken(ctx, token.GrantRequest{
		Subject:  "user-1",
		ClientID: testClientID,
	})
	require.NoError(t, err)

	t.Run("refresh", func(t *testing.T) {
		resp := f.postForm(t, server.RouteAuthToken, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {rt.Token},
			"client_id":     {testClientID},
			"client_secret": {testClientSecret},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

		body := readBody(t, resp)
		require.Equal(t, "Bearer", body.Get("token_type").String())
		// the OAuth bot installed the lifetime extender
		require.Equal(t, int64(token.ExtendedAccessTokenExpiration/time.Second), body.Get("expires_in").Int())

		in, err := f.gateway.Provider.ValidateAccessToken(ctx, body.Get("access_token").String())
		require.NoError(t, err)
		require.Equal(t, "user-1", in.Subject)
	})

	t.Run("basic auth", func(t *testing.T) {
		form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {rt.Token}}
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+server.RouteAuthToken, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(testClientID, testClientSecret)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name   string
			form   url.Values
			status int
			code   string
		}{
			{
				name:   "unsupported grant",
				form:   url.Values{"grant_type": {"authorization_code"}},
				status: http.StatusBadRequest,
				code:   "unsupported_grant_type",
			},
			{
				name:   "missing refresh token",
				form:   url.Values{"grant_type": {"refresh_token"}},
				status: http.StatusBadRequest,
				code:   "invalid_request",
			},
			{
				name: "wrong secret",
				form: url.Values{"grant_type": {"refresh_token"}, "refresh_token": {rt.Token},
					"client_id": {testClientID}, "client_secret": {"nope"}},
				status: http.StatusUnauthorized,
				code:   "invalid_client",
			},
			{
				name: "unknown refresh token",
				form: url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"missing"},
					"client_id": {testClientID}, "client_secret": {testClientSecret}},
				status: http.StatusBadRequest,
				code:   "invalid_grant",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := f.postForm(t, server.RouteAuthToken, tt.form)
				require.Equal(t, tt.status, resp.StatusCode)
				require.Equal(t, tt.code, readBody(t, resp).Get("error").String())
			})
		}
	})
}

func TestRevokeEndpoint(t *testing.T) {
	f := setupTestFixture(t, nil)
	ctx := context.Background()

	rt, err := f.gateway.Provider.IssueRefreshToken(ctx, token.GrantRequest{Subject: "user-1", ClientID: testClientID})
	require.NoError(t, err)
	access, err := f.gateway.Provider.CreateAccessToken(ctx, rt)
	require.NoError(t, err)

	creds := url.Values{"client_id": {testClientID}, "client_secret": {testClientSecret}}
	withToken := func(tok string) url.Values {
		v := url.Values{"token": {tok}}
		for k, vs := range creds {
			v[k] = vs
		}
		return v
	}

	resp := f.postForm(t, server.RouteAuthRevoke, creds)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.postForm(t, server.RouteAuthRevoke, url.Values{"token": {rt.Token}})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.postForm(t, server.RouteAuthRevoke, withToken(rt.Token))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = f.gateway.Provider.ValidateAccessToken(ctx, access)
	require.ErrorIs(t, err, zerrors.ErrInvalidToken)

	// unknown tokens are not an error
	resp = f.postForm(t, server.RouteAuthRevoke, withToken("never-issued"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestConsentRoutes(t *testing.T) {
	f := setupTestFixture(t, []config.BotConfig{{Platform: "ding"}})
	payload := `{"msgtype":"text","text":{"content":"tv状态"},"senderId":"$:u1"}`

	resp := f.post(t, "/ding", payload)
	require.Equal(t, bot.DeniedMessage, readBody(t, resp).Get("text.content").String())

	resp, err := http.Get(f.srv.URL + server.RouteConsent)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.admin(t, http.MethodGet, server.RouteConsent, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prompts := readBody(t, resp).Get("prompts").Array()
	require.Len(t, prompts, 1)
	id := prompts[0].Get("id").String()
	require.NotEmpty(t, id)

	resp = f.admin(t, http.MethodPost, "/consent/"+id, `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.admin(t, http.MethodPost, "/consent/"+id, `{"agree":"ok"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.admin(t, http.MethodPost, "/consent/"+id, `{"agree":"ok"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.post(t, "/ding", payload)
	require.NotEqual(t, bot.DeniedMessage, readBody(t, resp).Get("text.content").String())
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t, nil)

	h := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, f.gateway.Server.APIMiddleware()...)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "server_error", gjson.Get(rec.Body.String(), "error").String())
}
