package enums

import (
	"fmt"
	"strings"
)

// InvoiceType categorizes how an invoice was produced.
type InvoiceType string

const (
	InvoiceTypeSubscription InvoiceType = "subscription"
	InvoiceTypeManual       InvoiceType = "manual"
)

var validInvoiceTypes = []InvoiceType{
	InvoiceTypeSubscription,
	InvoiceTypeManual,
}

// String implements fmt.Stringer.
func (t InvoiceType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t InvoiceType) IsValid() bool {
	for _, candidate := range validInvoiceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInvoiceType converts raw input into an InvoiceType.
func ParseInvoiceType(value string) (InvoiceType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validInvoiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice type %q", value)
}
