package selector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

// ErrUnknownMethod is returned for method names outside the offered set.
var ErrUnknownMethod = errors.New("unknown payment method")

// Option is one entry of the method list.
type Option struct {
	Method      models.Method `json:"method"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
}

var options = []Option{
	{Method: models.MethodCard, Label: "Credit or Debit Card", Description: "Visa, Mastercard, American Express"},
	{Method: models.MethodRedirect, Label: "PayPal", Description: "Log in to your PayPal account"},
	{Method: models.MethodBank, Label: "Bank Transfer", Description: "Log in to your online banking"},
}

// Options returns the offered payment methods in display order.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// ParseMethod maps a wire name to a Method.
func ParseMethod(name string) (models.Method, error) {
	m := models.Method(strings.ToLower(strings.TrimSpace(name)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return m, nil
}

// Selector tracks the highlighted method and forwards a choice.
type Selector struct {
	mu          sync.Mutex
	highlighted models.Method
	choose      func(models.Method) error
}

func New(choose func(models.Method) error) *Selector {
	return &Selector{choose: choose}
}

func (s *Selector) Highlight(m models.Method) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, m)
	}
	s.mu.Lock()
	s.highlighted = m
	s.mu.Unlock()
	return nil
}

func (s *Selector) Highlighted() (models.Method, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlighted, s.highlighted != ""
}

// Choose highlights m and hands it to the orchestrator.
func (s *Selector) Choose(m models.Method) error {
	if err := s.Highlight(m); err != nil {
		return err
	}
	return s.choose(m)
}

// Clear drops the highlight, e.g. when the list is shown again.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.highlighted = ""
	s.mu.Unlock()
}
