package enums

import "slices"

// PaymentMethod identifies how a course purchase is settled.
type PaymentMethod string

const (
	PaymentMethodGatewayA PaymentMethod = "gateway_a"
	PaymentMethodGatewayB PaymentMethod = "gateway_b"
	PaymentMethodManual   PaymentMethod = "manual"
	PaymentMethodFree     PaymentMethod = "free"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodGatewayA,
	PaymentMethodGatewayB,
	PaymentMethodManual,
	PaymentMethodFree,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, p)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethods, "payment method", value)
}
