package validation

import (
	"fmt"
	"strings"

	"github.com/create-my-art/api/internal/domain"
)

// FormError reports every failing field of a checkout form at once, so the
// storefront can highlight them in a single pass.
type FormError struct {
	Fields []string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("invalid form fields: %s", strings.Join(e.Fields, ", "))
}

// CheckoutForm is everything the storefront submits that needs validating
// before a payment may start: the customer data plus the consent checkbox,
// the chosen payment method, and the cart lines whose print size must be set.
type CheckoutForm struct {
	Customer      domain.Customer
	PaymentMethod domain.PaymentMethod
	TermsAccepted bool
	Items         []domain.CartItem
}

// ValidateCustomer checks all customer fields and collects every failure.
// Phone is optional but must be plausible when provided.
func ValidateCustomer(c domain.Customer) error {
	if fields := customerFields(c); len(fields) > 0 {
		return &FormError{Fields: fields}
	}
	return nil
}

// ValidateCheckout checks the whole submission in one pass. The terms
// checkbox, a missing payment method, and a cart line without a print size
// are reported alongside the customer field failures, never instead of them.
func ValidateCheckout(form CheckoutForm) error {
	fields := customerFields(form.Customer)

	if !form.TermsAccepted {
		fields = append(fields, "terms")
	}
	if strings.TrimSpace(string(form.PaymentMethod)) == "" {
		fields = append(fields, "paymentMethod")
	}
	for _, item := range form.Items {
		if strings.TrimSpace(string(item.Size)) == "" {
			fields = append(fields, "size")
			break
		}
	}

	if len(fields) > 0 {
		return &FormError{Fields: fields}
	}
	return nil
}

func customerFields(c domain.Customer) []string {
	var fields []string

	if !Name(c.FirstName) {
		fields = append(fields, "firstName")
	}
	if !Name(c.LastName) {
		fields = append(fields, "lastName")
	}
	if !Email(c.Email) {
		fields = append(fields, "email")
	}
	if phone := strings.TrimSpace(c.Phone); phone != "" && !Phone(phone) {
		fields = append(fields, "phone")
	}
	if !Address(c.Address()) {
		fields = append(fields, "address")
	}
	if !ZIP(c.ZIP) {
		fields = append(fields, "zip")
	}
	if !Name(c.City) {
		fields = append(fields, "city")
	}
	return fields
}
