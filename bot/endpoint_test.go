package bot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/inevity/zhibot/auth"
	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/bot/genie"
	"github.com/inevity/zhibot/bot/genie2"
	"github.com/inevity/zhibot/consent"
	"github.com/inevity/zhibot/consentui"
	"github.com/inevity/zhibot/home"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type testRouter struct {
	mux      *http.ServeMux
	patterns []string
}

func newTestRouter() *testRouter {
	return &testRouter{mux: http.NewServeMux()}
}

func (r *testRouter) RegisterRouteHandler(pattern string, h http.Handler) {
	r.patterns = append(r.patterns, pattern)
	r.mux.Handle(pattern, h)
}

// spyHub counts calls into the home hub.
type spyHub struct {
	home.Hub
	calls atomic.Int32
	panic bool
	err   error
}

func (s *spyHub) Devices(ctx context.Context) ([]home.Device, error) {
	s.calls.Add(1)
	if s.panic {
		panic("hub exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.Hub.Devices(ctx)
}

func (s *spyHub) Converse(ctx context.Context, userID, text string) (string, error) {
	s.calls.Add(1)
	return s.Hub.Converse(ctx, userID, text)
}

func newSpyHub(t *testing.T) *spyHub {
	t.Helper()
	mem, err := home.NewMemory([]config.DeviceConfig{{ID: "light.1", Name: "灯"}})
	require.NoError(t, err)
	return &spyHub{Hub: mem}
}

const discovery = `{"header":{"namespace":"AliGenie.Iot.Device.Discovery","name":"DiscoveryDevices","messageId":"m-1","payLoadVersion":1},"payload":{"accessToken":"t"}}`

func post(t *testing.T, h http.Handler, target, tokenHeader, body string) gjson.Result {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if tokenHeader != "" {
		r.Header.Set("token", tokenHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
	require.True(t, gjson.Valid(w.Body.String()), w.Body.String())
	return gjson.Parse(w.Body.String())
}

func TestEndpoint_StaticTokenScenario(t *testing.T) {
	router := newTestRouter()
	hub := newSpyHub(t)

	e, err := bot.New(context.Background(), bot.Genie, router,
		config.BotConfig{Platform: "genie", Name: "shop", Token: "abc"}, genie.New(hub), bot.Options{Folder: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, "/shop", e.Path())
	require.Equal(t, []string{"POST /shop"}, router.patterns)
	require.Equal(t, auth.NameStaticToken, e.Strategy().Name())

	resp := post(t, router.mux, "/shop", "abc", discovery)
	require.Equal(t, "DiscoveryDevicesResponse", resp.Get("header.name").String())
	require.Equal(t, "m-1", resp.Get("header.messageId").String())
	require.Equal(t, "light.1", resp.Get("payload.devices.0.deviceId").String())
	require.EqualValues(t, 1, hub.calls.Load())

	resp = post(t, router.mux, "/shop", "xyz", discovery)
	require.Equal(t, "ErrorResponse", resp.Get("header.name").String())
	require.Equal(t, genie.ErrorAccessTokenInvalid, resp.Get("payload.errorCode").String())
	require.Equal(t, bot.DeniedMessage, resp.Get("payload.message").String())
	require.EqualValues(t, 1, hub.calls.Load())

	resp = post(t, router.mux, "/shop?token=abc", "", `{"header":`)
	require.Equal(t, "ErrorResponse", resp.Get("header.name").String())
	require.Equal(t, genie.ErrorService, resp.Get("payload.errorCode").String())
	require.EqualValues(t, 1, hub.calls.Load())

	resp = post(t, router.mux, "/shop?token=abc", "", `["not","an","object"]`)
	require.Equal(t, genie.ErrorService, resp.Get("payload.errorCode").String())
}

func TestEndpoint_HandlerFailures(t *testing.T) {
	hub := newSpyHub(t)
	e, err := bot.New(context.Background(), bot.Genie, newTestRouter(),
		config.BotConfig{Platform: "genie", Token: "*"}, genie.New(hub), bot.Options{Folder: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, "/genie", e.Path())

	hub.err = errors.New("hub offline")
	resp := post(t, e, "/genie", "", discovery)
	require.Equal(t, genie.ErrorService, resp.Get("payload.errorCode").String())
	require.Contains(t, resp.Get("payload.message").String(), "hub offline")

	hub.err = nil
	hub.panic = true
	resp = post(t, e, "/genie", "", discovery)
	require.Equal(t, genie.ErrorService, resp.Get("payload.errorCode").String())
	require.Contains(t, resp.Get("payload.message").String(), "hub exploded")
}

type panickingStrategyHandler struct {
	bot.Handler
}

func (panickingStrategyHandler) UserID([]byte) string { panic("reader exploded") }

func TestEndpoint_StrategyPanicIsContained(t *testing.T) {
	store := consent.NewStore()
	board := consentui.NewBoard()
	e, err := bot.New(context.Background(), bot.Ding, newTestRouter(),
		config.BotConfig{Platform: "ding"}, panickingStrategyHandler{Handler: genie2.New(newSpyHub(t))},
		bot.Options{Folder: t.TempDir(), Auth: auth.Deps{Consent: store, UI: board}})
	require.NoError(t, err)
	require.Equal(t, auth.NameInteractiveConsent, e.Strategy().Name())

	resp := post(t, e, "/ding", "", `{"senderId":"U1"}`)
	require.Equal(t, genie2.ExecuteError, resp.Get("returnValue.executeCode").String())
	require.Contains(t, resp.Get("returnValue.reply").String(), "reader exploded")
}

type panickingFailHandler struct {
	bot.Handler
}

func (panickingFailHandler) Fail([]byte, bot.Failure, string) any { panic("envelope exploded") }

func TestEndpoint_FailPanicStillAnswers(t *testing.T) {
	e, err := bot.New(context.Background(), bot.Genie, newTestRouter(),
		config.BotConfig{Platform: "genie", Token: "*"}, panickingFailHandler{Handler: genie.New(newSpyHub(t))},
		bot.Options{Folder: t.TempDir()})
	require.NoError(t, err)

	resp := post(t, e, "/genie", "", `{"header":`)
	require.Equal(t, "service_error", resp.Get("error").String())

	// authorized traffic is unaffected
	resp = post(t, e, "/genie", "", discovery)
	require.Equal(t, "DiscoveryDevicesResponse", resp.Get("header.name").String())
}

func TestEndpoint_InteractiveConsent(t *testing.T) {
	folder := t.TempDir()
	store := consent.NewStore()
	board := consentui.NewBoard()
	hub := newSpyHub(t)

	e, err := bot.New(context.Background(), bot.Genie2, newTestRouter(),
		config.BotConfig{Platform: "genie2", Name: "Living Room"}, genie2.New(hub),
		bot.Options{Folder: folder, Auth: auth.Deps{Consent: store, UI: board}})
	require.NoError(t, err)
	require.Equal(t, "/living_room", e.Path())
	require.Equal(t, "Living Room", e.Name())

	body := `{"utterance":"打开灯","requestData":{"userOpenId":"U1"}}`
	resp := post(t, e, "/living_room", "", body)
	require.Equal(t, bot.DeniedMessage, resp.Get("returnValue.reply").String())
	require.EqualValues(t, 0, hub.calls.Load())

	pending := board.Pending()
	require.Len(t, pending, 1)
	require.Contains(t, pending[0].Description, "U1")
	require.NoError(t, board.Complete(pending[0].Handle, map[string]string{"agree": "ok"}))
	require.True(t, store.IsApproved(consent.StoragePath(folder, "living_room"), "U1"))

	resp = post(t, e, "/living_room", "", body)
	require.Equal(t, "已打开灯", resp.Get("returnValue.reply").String())
	require.Equal(t, "0", resp.Get("returnCode").String())
	require.EqualValues(t, 1, hub.calls.Load())
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	h := genie.New(newSpyHub(t))

	_, err := bot.New(ctx, bot.Genie, nil, config.BotConfig{Token: "*"}, h, bot.Options{})
	require.ErrorIs(t, err, zerrors.ErrInvalidConfig)
	_, err = bot.New(ctx, bot.Genie, newTestRouter(), config.BotConfig{Token: "*"}, nil, bot.Options{})
	require.ErrorIs(t, err, zerrors.ErrInvalidConfig)
	// OAuth-capable platform without an identity provider
	_, err = bot.New(ctx, bot.Genie, newTestRouter(), config.BotConfig{}, h, bot.Options{})
	require.ErrorIs(t, err, zerrors.ErrInvalidConfig)
}

func TestPathKey(t *testing.T) {
	require.Equal(t, "shop", bot.PathKey(bot.Genie, "Shop"))
	require.Equal(t, "genie", bot.PathKey(bot.Genie, ""))
	require.Equal(t, "miai", bot.PathKey(bot.Miai, "!!!"))
}
