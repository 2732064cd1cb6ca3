package collector

import "github.com/akylbek/payment-system/upgrade-checkout/internal/models"

const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// RedirectCollector collects the login of a wallet provider (PayPal style).
type RedirectCollector struct {
	*form
}

func NewRedirect(onSubmit func()) *RedirectCollector {
	return &RedirectCollector{form: newForm(models.MethodRedirect, onSubmit,
		[]string{FieldEmail, FieldPassword}, nil)}
}
