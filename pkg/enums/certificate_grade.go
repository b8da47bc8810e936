package enums

import "slices"

// CertificateGrade is the tier printed on an issued certificate.
type CertificateGrade string

const (
	GradeAPlus CertificateGrade = "A+"
	GradeA     CertificateGrade = "A"
	GradeBPlus CertificateGrade = "B+"
	GradeB     CertificateGrade = "B"
	GradeCPlus CertificateGrade = "C+"
	GradeC     CertificateGrade = "C"
	GradePass  CertificateGrade = "Pass"
)

// gradeFloors is ordered from the highest tier down; floors are inclusive.
var gradeFloors = []struct {
	floor int
	grade CertificateGrade
}{
	{95, GradeAPlus},
	{90, GradeA},
	{85, GradeBPlus},
	{80, GradeB},
	{75, GradeCPlus},
	{70, GradeC},
}

var validCertificateGrades = []CertificateGrade{
	GradeAPlus, GradeA, GradeBPlus, GradeB, GradeCPlus, GradeC, GradePass,
}

// GradeForScore maps a 0..100 score to its tier. Anything below 70 is Pass.
func GradeForScore(score int) CertificateGrade {
	for _, tier := range gradeFloors {
		if score >= tier.floor {
			return tier.grade
		}
	}
	return GradePass
}

// String implements fmt.Stringer.
func (g CertificateGrade) String() string {
	return string(g)
}

// IsValid reports whether the value is a known grade.
func (g CertificateGrade) IsValid() bool {
	return slices.Contains(validCertificateGrades, g)
}

// ParseCertificateGrade converts raw input into a CertificateGrade.
func ParseCertificateGrade(value string) (CertificateGrade, error) {
	return parse(validCertificateGrades, "certificate grade", value)
}
