package enums

import "slices"

// EnrollmentSource records the path that granted access to a course.
type EnrollmentSource string

const (
	EnrollmentSourceFree    EnrollmentSource = "free"
	EnrollmentSourcePayment EnrollmentSource = "payment"
)

var validEnrollmentSources = []EnrollmentSource{
	EnrollmentSourceFree,
	EnrollmentSourcePayment,
}

// IsValid reports whether the value is a known EnrollmentSource.
func (s EnrollmentSource) IsValid() bool {
	return slices.Contains(validEnrollmentSources, s)
}

// ParseEnrollmentSource converts raw input into EnrollmentSource.
func ParseEnrollmentSource(value string) (EnrollmentSource, error) {
	return parse(validEnrollmentSources, "enrollment source", value)
}
