// Package miai handles Xiaomi XiaoAi skill callbacks.
package miai

import (
	"context"
	"fmt"
	"strings"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/home"
	"github.com/tidwall/gjson"
)

// Request types sent by XiaoAi.
const (
	RequestStart  = 0
	RequestIntent = 1
	RequestEnd    = 2
)

const (
	welcome         = "你好，有什么可以帮你？"
	goodbye         = "再见"
	responseVersion = "1.0"
)

var _ bot.Handler = (*Handler)(nil)

type Handler struct {
	hub home.Hub
}

func New(hub home.Hub) *Handler {
	return &Handler{hub: hub}
}

type ToSpeak struct {
	Type int    `json:"type"`
	Text string `json:"text"`
}

type Body struct {
	OpenMic bool    `json:"open_mic"`
	ToSpeak ToSpeak `json:"to_speak"`
}

type Response struct {
	Version      string `json:"version"`
	Response     Body   `json:"response"`
	IsSessionEnd bool   `json:"is_session_end"`
}

// reply is the Handle result.
type reply struct {
	text string
	end  bool
}

func (h *Handler) OAuthCapable() bool { return false }

func (h *Handler) UserID(payload []byte) string {
	return gjson.GetBytes(payload, "session.user.user_id").String()
}

func (h *Handler) AccessToken(payload []byte) string {
	return gjson.GetBytes(payload, "session.user.access_token").String()
}

func (h *Handler) AuthDescription(payload []byte) string {
	return fmt.Sprintf("小爱同学用户 %s 说：“%s”", h.UserID(payload), query(payload))
}

func query(payload []byte) string {
	return strings.TrimSpace(gjson.GetBytes(payload, "request.intent.query").String())
}

func (h *Handler) Handle(ctx context.Context, payload []byte) (any, error) {
	if gjson.GetBytes(payload, "request.type").Int() == RequestEnd {
		return reply{text: goodbye, end: true}, nil
	}
	q := query(payload)
	if q == "" {
		return reply{text: welcome}, nil
	}
	text, err := h.hub.Converse(ctx, h.UserID(payload), q)
	if err != nil {
		return nil, err
	}
	return reply{text: text}, nil
}

func (h *Handler) Respond(_ []byte, result any) any {
	r, ok := result.(reply)
	if !ok {
		r = reply{text: fmt.Sprint(result)}
	}
	return speak(r.text, r.end)
}

func (h *Handler) Fail(_ []byte, _ bot.Failure, message string) any {
	return speak(message, true)
}

func speak(text string, end bool) Response {
	return Response{
		Version:      responseVersion,
		Response:     Body{OpenMic: !end, ToSpeak: ToSpeak{Type: 0, Text: text}},
		IsSessionEnd: end,
	}
}
