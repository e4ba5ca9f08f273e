// Package consentui collects confirmations from the operator on behalf of the gateway. Prompts are
// posted to a Board and answered through the admin HTTP routes or the CLI.
package consentui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/rs/zerolog/log"
)

// Field is one input the operator must fill in.
type Field struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Request asks the operator to confirm something. OnComplete runs once, with the handle of the
// prompt and the submitted values, when the prompt is completed.
type Request struct {
	Title       string
	Description string
	SubmitLabel string
	Fields      []Field
	OnComplete  func(handle string, values map[string]string)
}

// UI is the consent UI as seen by the auth strategies.
type UI interface {
	RequestConfirmation(req Request) (string, error)
	Withdraw(handle string)
}

// Prompt is a pending request as shown to the operator.
type Prompt struct {
	Handle      string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SubmitLabel string    `json:"submit_label"`
	Fields      []Field   `json:"fields"`
	CreatedAt   time.Time `json:"created_at"`
}

type entry struct {
	prompt     Prompt
	onComplete func(handle string, values map[string]string)
}

var _ UI = (*Board)(nil)

type Board struct {
	mu      sync.Mutex
	prompts map[string]*entry
	nowFunc func() time.Time
}

type BoardOption func(*Board)

func WithNowFunc(now func() time.Time) BoardOption {
	return func(b *Board) {
		b.nowFunc = now
	}
}

func NewBoard(opts ...BoardOption) *Board {
	b := &Board{
		prompts: make(map[string]*entry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) RequestConfirmation(req Request) (string, error) {
	if req.Title == "" {
		return "", fmt.Errorf("%w: title is required", zerrors.ErrInvalidRequest)
	}
	handle := uuid.New().String()
	fields := make([]Field, len(req.Fields))
	copy(fields, req.Fields)

	b.mu.Lock()
	b.prompts[handle] = &entry{
		prompt: Prompt{
			Handle:      handle,
			Title:       req.Title,
			Description: req.Description,
			SubmitLabel: req.SubmitLabel,
			Fields:      fields,
			CreatedAt:   b.nowFunc(),
		},
		onComplete: req.OnComplete,
	}
	b.mu.Unlock()

	log.Warn().Str("handle", handle).Str("title", req.Title).Str("description", req.Description).
		Msg("consentui: confirmation requested")
	return handle, nil
}

// Withdraw removes a prompt. Unknown handles are ignored.
func (b *Board) Withdraw(handle string) {
	b.mu.Lock()
	_, ok := b.prompts[handle]
	delete(b.prompts, handle)
	b.mu.Unlock()

	if ok {
		log.Debug().Str("handle", handle).Msg("consentui: prompt withdrawn")
	}
}

// Complete answers a prompt. A missing required field leaves the prompt pending and returns
// ErrInvalidRequest; an unknown or withdrawn handle returns ErrNotFound.
func (b *Board) Complete(handle string, values map[string]string) error {
	b.mu.Lock()
	e, ok := b.prompts[handle]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: prompt %s", zerrors.ErrNotFound, handle)
	}
	for _, f := range e.prompt.Fields {
		if f.Required && strings.TrimSpace(values[f.ID]) == "" {
			b.mu.Unlock()
			return fmt.Errorf("%w: field %q is required", zerrors.ErrInvalidRequest, f.ID)
		}
	}
	delete(b.prompts, handle)
	b.mu.Unlock()

	if e.onComplete != nil {
		e.onComplete(handle, values)
	}
	return nil
}

// Get returns the pending prompt with the given handle.
func (b *Board) Get(handle string) (Prompt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.prompts[handle]
	if !ok {
		return Prompt{}, false
	}
	return e.prompt, true
}

// Pending lists pending prompts, oldest first.
func (b *Board) Pending() []Prompt {
	b.mu.Lock()
	out := make([]Prompt, 0, len(b.prompts))
	for _, e := range b.prompts {
		out = append(out, e.prompt)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
