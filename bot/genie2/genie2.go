// Package genie2 handles AliGenie custom skill callbacks: the user's utterance is passed to the
// home hub's conversation and the answer is spoken back.
package genie2

import (
	"context"
	"fmt"
	"strings"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/home"
	"github.com/tidwall/gjson"
)

const (
	ExecuteSuccess = "SUCCESS"
	ExecuteError   = "REPLY_ERROR"
)

var _ bot.Handler = (*Handler)(nil)

type Handler struct {
	hub home.Hub
}

func New(hub home.Hub) *Handler {
	return &Handler{hub: hub}
}

type ReturnValue struct {
	Reply       string `json:"reply"`
	ResultType  string `json:"resultType"`
	ExecuteCode string `json:"executeCode"`
}

type Response struct {
	ReturnCode  string      `json:"returnCode"`
	ReturnValue ReturnValue `json:"returnValue"`
}

func (h *Handler) OAuthCapable() bool { return false }

func (h *Handler) UserID(payload []byte) string {
	return gjson.GetBytes(payload, "requestData.userOpenId").String()
}

func (h *Handler) AccessToken(payload []byte) string {
	return gjson.GetBytes(payload, "token").String()
}

func (h *Handler) AuthDescription(payload []byte) string {
	return fmt.Sprintf("天猫精灵用户 %s 说：“%s”", h.UserID(payload), utterance(payload))
}

func utterance(payload []byte) string {
	return strings.TrimSpace(gjson.GetBytes(payload, "utterance").String())
}

func (h *Handler) Handle(ctx context.Context, payload []byte) (any, error) {
	return h.hub.Converse(ctx, h.UserID(payload), utterance(payload))
}

func (h *Handler) Respond(_ []byte, result any) any {
	return reply(fmt.Sprint(result), ExecuteSuccess)
}

func (h *Handler) Fail(_ []byte, failure bot.Failure, message string) any {
	if failure == bot.FailureDenied {
		return reply(message, ExecuteSuccess)
	}
	return reply(message, ExecuteError)
}

func reply(text, code string) Response {
	return Response{
		ReturnCode:  "0",
		ReturnValue: ReturnValue{Reply: text, ResultType: "RESULT", ExecuteCode: code},
	}
}
