// Package genie handles AliGenie smart home skill callbacks (device discovery, control and query).
// Accounts are linked through OAuth, so every payload carries an access token.
package genie

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/home"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	NamespaceDiscovery = "AliGenie.Iot.Device.Discovery"
	NamespaceControl   = "AliGenie.Iot.Device.Control"
	NamespaceQuery     = "AliGenie.Iot.Device.Query"

	ErrorAccessTokenInvalid = "ACCESS_TOKEN_INVALIDATE"
	ErrorService            = "SERVICE_ERROR"
	ErrorDeviceNotSupported = "DEVICE_NOT_SUPPORT_FUNCTION"
	ErrorInvalidDirective   = "INVALIDATE_CONTROL_ORDER"

	errorResponseName = "ErrorResponse"
)

var _ bot.Handler = (*Handler)(nil)

type Handler struct {
	hub home.Hub
}

func New(hub home.Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) OAuthCapable() bool { return true }

// UserID is empty: smart home payloads identify the account only through the access token.
func (h *Handler) UserID(_ []byte) string { return "" }

func (h *Handler) AccessToken(payload []byte) string {
	return gjson.GetBytes(payload, "payload.accessToken").String()
}

func (h *Handler) AuthDescription(payload []byte) string {
	return fmt.Sprintf("天猫精灵请求%s（%s）", gjson.GetBytes(payload, "header.name").String(),
		gjson.GetBytes(payload, "header.namespace").String())
}

// directiveError is a failure the platform has a dedicated error code for.
type directiveError struct {
	code    string
	message string
}

func (e *directiveError) Error() string { return e.code + ": " + e.message }

type property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type device struct {
	DeviceID   string     `json:"deviceId"`
	DeviceName string     `json:"deviceName"`
	DeviceType string     `json:"deviceType"`
	Zone       string     `json:"zone"`
	Brand      string     `json:"brand"`
	Model      string     `json:"model"`
	Icon       string     `json:"icon"`
	Properties []property `json:"properties"`
	Actions    []string   `json:"actions"`
}

// result is the body of a successful response, minus the header.
type result struct {
	Properties []property     `json:"properties,omitempty"`
	Payload    map[string]any `json:"payload"`
}

func (h *Handler) Handle(ctx context.Context, payload []byte) (any, error) {
	namespace := gjson.GetBytes(payload, "header.namespace").String()
	name := gjson.GetBytes(payload, "header.name").String()
	deviceID := gjson.GetBytes(payload, "payload.deviceId").String()

	switch namespace {
	case NamespaceDiscovery:
		devices, err := h.hub.Devices(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]device, 0, len(devices))
		for _, d := range devices {
			out = append(out, device{
				DeviceID:   d.ID,
				DeviceName: d.Name,
				DeviceType: d.Type,
				Brand:      "ZhiBot",
				Model:      d.Type,
				Properties: []property{{Name: "powerstate", Value: d.PowerState()}},
				Actions:    []string{"TurnOn", "TurnOff", "Query"},
			})
		}
		return result{Payload: map[string]any{"devices": out}}, nil

	case NamespaceControl:
		action := home.Action(name)
		if action != home.ActionTurnOn && action != home.ActionTurnOff {
			return nil, &directiveError{code: ErrorDeviceNotSupported, message: "unsupported action " + name}
		}
		if _, err := h.hub.Execute(ctx, deviceID, action); err != nil {
			return nil, err
		}
		return result{Payload: map[string]any{"deviceId": deviceID}}, nil

	case NamespaceQuery:
		d, err := h.hub.State(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		return result{
			Properties: []property{{Name: "powerstate", Value: d.PowerState()}},
			Payload:    map[string]any{"deviceId": deviceID},
		}, nil
	}
	return nil, &directiveError{code: ErrorInvalidDirective, message: "unknown namespace " + namespace}
}

func (h *Handler) Respond(payload []byte, res any) any {
	r, ok := res.(result)
	if !ok {
		return h.Fail(payload, bot.FailureServiceError, fmt.Sprintf("unexpected result %T", res))
	}
	body, err := json.Marshal(r)
	if err != nil {
		return h.Fail(payload, bot.FailureServiceError, err.Error())
	}
	name := gjson.GetBytes(payload, "header.name").String() + "Response"
	return json.RawMessage(withHeader(body, payload, name))
}

// Fail maps a denial to ACCESS_TOKEN_INVALIDATE and everything else to SERVICE_ERROR, unless the
// handler reported a more specific code.
func (h *Handler) Fail(payload []byte, failure bot.Failure, message string) any {
	code := ErrorService
	if failure == bot.FailureDenied {
		code = ErrorAccessTokenInvalid
	} else if c := directiveCode(message); c != "" {
		code = c
	}

	body, _ := sjson.SetBytes([]byte(`{}`), "payload.errorCode", code)
	body, _ = sjson.SetBytes(body, "payload.message", message)
	if id := gjson.GetBytes(payload, "payload.deviceId"); id.Exists() {
		body, _ = sjson.SetBytes(body, "payload.deviceId", id.String())
	}
	return json.RawMessage(withHeader(body, payload, errorResponseName))
}

func directiveCode(message string) string {
	for _, c := range []string{ErrorDeviceNotSupported, ErrorInvalidDirective} {
		if strings.Contains(message, c) {
			return c
		}
	}
	return ""
}

// withHeader sets the response header, echoing the request's namespace and message id.
func withHeader(body, request []byte, name string) []byte {
	namespace := gjson.GetBytes(request, "header.namespace").String()
	if namespace == "" {
		namespace = NamespaceControl
	}
	out, err := sjson.SetBytes(body, "header", map[string]any{
		"namespace":      namespace,
		"name":           name,
		"messageId":      gjson.GetBytes(request, "header.messageId").String(),
		"payLoadVersion": 1,
	})
	if err != nil {
		return body
	}
	return out
}
