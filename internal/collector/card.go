package collector

import "github.com/akylbek/payment-system/upgrade-checkout/internal/models"

const (
	FieldCardholder = "cardholder"
	FieldCardNumber = "number"
	FieldExpiry     = "expiry"
	FieldCVC        = "cvc"
)

// CardCollector collects card details. The number and expiry are reformatted as typed.
type CardCollector struct {
	*form
}

func NewCard(onSubmit func()) *CardCollector {
	return &CardCollector{form: newForm(models.MethodCard, onSubmit,
		[]string{FieldCardholder, FieldCardNumber, FieldExpiry, FieldCVC},
		map[string]func(string) string{
			FieldCardNumber: FormatCardNumber,
			FieldExpiry:     FormatExpiry,
		},
	)}
}
