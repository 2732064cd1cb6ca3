package collector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

var (
	// ErrFieldRequired is returned by Submit while a required field is empty.
	ErrFieldRequired = errors.New("field is required")

	// ErrUnknownField is returned when setting a field the method does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownMethod is returned by New for methods without a collector.
	ErrUnknownMethod = errors.New("unknown payment method")

	// ErrCollectorDiscarded is returned by a collector after Reset.
	ErrCollectorDiscarded = errors.New("collector discarded")
)

// Collector gathers the input of one payment method and signals submission.
// Collected values never leave the collector.
type Collector interface {
	Method() models.Method
	Fields() []string
	SetField(name, value string) (string, error)
	Submit() error
	Reset()
}

// New returns a fresh collector for method. onSubmit is invoked, without
// arguments, once every required field has a value.
func New(method models.Method, onSubmit func()) (Collector, error) {
	switch method {
	case models.MethodCard:
		return NewCard(onSubmit), nil
	case models.MethodRedirect:
		return NewRedirect(onSubmit), nil
	case models.MethodBank:
		return NewBank(onSubmit), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

type form struct {
	mu         sync.Mutex
	method     models.Method
	fields     []string
	formatters map[string]func(string) string
	values     map[string]string
	onSubmit   func()
	discarded  bool
}

func newForm(method models.Method, onSubmit func(), fields []string, formatters map[string]func(string) string) *form {
	return &form{
		method:     method,
		fields:     fields,
		formatters: formatters,
		values:     make(map[string]string, len(fields)),
		onSubmit:   onSubmit,
	}
}

func (f *form) Method() models.Method { return f.method }

func (f *form) Fields() []string {
	out := make([]string, len(f.fields))
	copy(out, f.fields)
	return out
}

// SetField stores value for name and returns it as it should be displayed.
func (f *form) SetField(name, value string) (string, error) {
	if !f.hasField(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if format, ok := f.formatters[name]; ok {
		value = format(value)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discarded {
		return "", ErrCollectorDiscarded
	}
	f.values[name] = value
	return value, nil
}

// Value returns what was stored for name.
func (f *form) Value(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

func (f *form) Submit() error {
	f.mu.Lock()
	if f.discarded {
		f.mu.Unlock()
		return ErrCollectorDiscarded
	}
	for _, name := range f.fields {
		if strings.TrimSpace(f.values[name]) == "" {
			f.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrFieldRequired, name)
		}
	}
	onSubmit := f.onSubmit
	f.mu.Unlock()

	// onSubmit may call back into Reset.
	if onSubmit != nil {
		onSubmit()
	}
	return nil
}

// Reset wipes collected values and detaches the submit callback. The
// collector is unusable afterwards.
func (f *form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[string]string, len(f.fields))
	f.onSubmit = nil
	f.discarded = true
}

func (f *form) hasField(name string) bool {
	for _, field := range f.fields {
		if field == name {
			return true
		}
	}
	return false
}
