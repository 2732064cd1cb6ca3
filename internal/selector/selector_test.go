package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

func TestOptionsCoverEveryMethod(t *testing.T) {
	opts := Options()
	require.Len(t, opts, len(models.Methods))
	for i, m := range models.Methods {
		assert.Equal(t, m, opts[i].Method)
		assert.NotEmpty(t, opts[i].Label)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Card ")
	require.NoError(t, err)
	assert.Equal(t, models.MethodCard, m)

	_, err = ParseMethod("crypto")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestChooseForwardsAndHighlights(t *testing.T) {
	var chosen []models.Method
	s := New(func(m models.Method) error {
		chosen = append(chosen, m)
		return nil
	})

	_, ok := s.Highlighted()
	assert.False(t, ok)

	require.NoError(t, s.Choose(models.MethodBank))
	assert.Equal(t, []models.Method{models.MethodBank}, chosen)
	h, ok := s.Highlighted()
	assert.True(t, ok)
	assert.Equal(t, models.MethodBank, h)

	s.Clear()
	_, ok = s.Highlighted()
	assert.False(t, ok)
}

func TestChooseRejectsUnknownMethod(t *testing.T) {
	called := false
	s := New(func(models.Method) error { called = true; return nil })

	err := s.Choose(models.Method("cash"))
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.False(t, called)
}

func TestChoosePropagatesOrchestratorError(t *testing.T) {
	boom := errors.New("busy")
	s := New(func(models.Method) error { return boom })
	assert.ErrorIs(t, s.Choose(models.MethodCard), boom)
}
