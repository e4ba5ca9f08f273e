package genie2_test

import (
	"context"
	"testing"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/bot/genie2"
	"github.com/inevity/zhibot/home"
	"github.com/inevity/zhibot/internal/config"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	hub, err := home.NewMemory([]config.DeviceConfig{{ID: "fan", Name: "风扇"}})
	require.NoError(t, err)
	h := genie2.New(hub)

	p := []byte(`{"utterance":" 打开风扇 ","token":"tok","requestData":{"userOpenId":"U1"}}`)
	require.False(t, h.OAuthCapable())
	require.Equal(t, "U1", h.UserID(p))
	require.Equal(t, "tok", h.AccessToken(p))
	require.Contains(t, h.AuthDescription(p), "U1")
	require.Contains(t, h.AuthDescription(p), "打开风扇")
	require.Empty(t, h.UserID([]byte(`{}`)))

	res, err := h.Handle(context.Background(), p)
	require.NoError(t, err)
	resp := h.Respond(p, res).(genie2.Response)
	require.Equal(t, "0", resp.ReturnCode)
	require.Equal(t, "已打开风扇", resp.ReturnValue.Reply)
	require.Equal(t, "RESULT", resp.ReturnValue.ResultType)
	require.Equal(t, genie2.ExecuteSuccess, resp.ReturnValue.ExecuteCode)

	resp = h.Fail(p, bot.FailureDenied, bot.DeniedMessage).(genie2.Response)
	require.Equal(t, bot.DeniedMessage, resp.ReturnValue.Reply)

	resp = h.Fail(p, bot.FailureServiceError, "boom").(genie2.Response)
	require.Equal(t, genie2.ExecuteError, resp.ReturnValue.ExecuteCode)
	require.Equal(t, "boom", resp.ReturnValue.Reply)
}
