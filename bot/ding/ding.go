// Package ding handles DingTalk outgoing robot callbacks.
package ding

import (
	"context"
	"fmt"
	"strings"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/home"
	"github.com/tidwall/gjson"
)

var _ bot.Handler = (*Handler)(nil)

type Handler struct {
	hub home.Hub
}

func New(hub home.Hub) *Handler {
	return &Handler{hub: hub}
}

type Text struct {
	Content string `json:"content"`
}

type Response struct {
	MsgType string `json:"msgtype"`
	Text    Text   `json:"text"`
}

func (h *Handler) OAuthCapable() bool { return false }

func (h *Handler) UserID(payload []byte) string {
	if id := gjson.GetBytes(payload, "senderStaffId").String(); id != "" {
		return id
	}
	return gjson.GetBytes(payload, "senderId").String()
}

// AccessToken is empty: DingTalk robots sign requests instead of carrying user tokens.
func (h *Handler) AccessToken(_ []byte) string { return "" }

func (h *Handler) AuthDescription(payload []byte) string {
	nick := gjson.GetBytes(payload, "senderNick").String()
	if nick == "" {
		nick = h.UserID(payload)
	}
	return fmt.Sprintf("钉钉用户 %s 说：“%s”", nick, content(payload))
}

func content(payload []byte) string {
	return strings.TrimSpace(gjson.GetBytes(payload, "text.content").String())
}

func (h *Handler) Handle(ctx context.Context, payload []byte) (any, error) {
	return h.hub.Converse(ctx, h.UserID(payload), content(payload))
}

func (h *Handler) Respond(_ []byte, result any) any {
	return text(fmt.Sprint(result))
}

func (h *Handler) Fail(_ []byte, _ bot.Failure, message string) any {
	return text(message)
}

func text(content string) Response {
	return Response{MsgType: "text", Text: Text{Content: content}}
}
