package collector

import "github.com/akylbek/payment-system/upgrade-checkout/internal/models"

const (
	FieldBank     = "bank"
	FieldUsername = "username"
)

// BankCollector collects online banking credentials. The password field
// shares its name with RedirectCollector's.
type BankCollector struct {
	*form
}

func NewBank(onSubmit func()) *BankCollector {
	return &BankCollector{form: newForm(models.MethodBank, onSubmit,
		[]string{FieldBank, FieldUsername, FieldPassword}, nil)}
}
