package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/inevity/zhibot/consent"
	"github.com/inevity/zhibot/consentui"
	"github.com/inevity/zhibot/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	ConsentTitle       = "智加加"
	ConsentSubmitLabel = "完成"
	ConsentFieldAgree  = "agree"
	ConsentFieldPrompt = "如果允许访问，请输入“ok”"
	ConsentAnswer      = "ok"
)

// InteractiveConsent authorizes callers an operator has approved. An unknown caller triggers a
// prompt on the consent UI and is refused; the operator's answer only affects later requests.
type InteractiveConsent struct {
	endpoint    string
	storagePath string
	store       *consent.Store
	ui          consentui.UI
	reader      PayloadReader

	mu      sync.Mutex
	pending string
}

var _ Strategy = (*InteractiveConsent)(nil)

func NewInteractiveConsent(endpoint, storagePath string, store *consent.Store, ui consentui.UI,
	reader PayloadReader) *InteractiveConsent {
	return &InteractiveConsent{
		endpoint:    endpoint,
		storagePath: storagePath,
		store:       store,
		ui:          ui,
		reader:      reader,
	}
}

func (s *InteractiveConsent) Name() string { return NameInteractiveConsent }

func (s *InteractiveConsent) Check(_ context.Context, _ *http.Request, payload []byte) bool {
	user := s.reader.UserID(payload)
	if user == "" {
		return false
	}
	if s.store.IsApproved(s.storagePath, user) {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// an approval may have completed while waiting for the lock
	if s.store.IsApproved(s.storagePath, user) {
		return true
	}
	if s.pending != "" {
		s.ui.Withdraw(s.pending)
		s.pending = ""
	}

	handle, err := s.ui.RequestConfirmation(consentui.Request{
		Title:       ConsentTitle,
		Description: s.reader.AuthDescription(payload),
		SubmitLabel: ConsentSubmitLabel,
		Fields:      []consentui.Field{{ID: ConsentFieldAgree, Name: ConsentFieldPrompt, Required: true}},
		OnComplete: func(handle string, values map[string]string) {
			s.complete(handle, user, values)
		},
	})
	if err != nil {
		log.Error().Err(err).Str("endpoint", s.endpoint).Msg("auth: consent prompt failed")
		return false
	}
	s.pending = handle
	metrics.RecordConsentPrompt(s.endpoint)
	return false
}

// PendingHandle returns the handle of the outstanding prompt, if any.
func (s *InteractiveConsent) PendingHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *InteractiveConsent) complete(handle, user string, values map[string]string) {
	s.mu.Lock()
	if s.pending == handle {
		s.pending = ""
	}
	s.mu.Unlock()

	if strings.TrimSpace(values[ConsentFieldAgree]) != ConsentAnswer {
		log.Info().Str("endpoint", s.endpoint).Str("user", user).Msg("auth: access not granted")
		return
	}
	if err := s.store.Approve(s.storagePath, user); err != nil {
		log.Error().Err(err).Str("endpoint", s.endpoint).Str("user", user).Msg("auth: approval not persisted")
	}
	metrics.RecordConsentApproval(s.endpoint)
	log.Info().Str("endpoint", s.endpoint).Str("user", user).Msg("auth: access granted")
}
