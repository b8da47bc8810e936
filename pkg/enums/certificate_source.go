package enums

import "slices"

// CertificateSource records which path issued a certificate.
type CertificateSource string

const (
	CertificateSourceProgress CertificateSource = "progress"
	CertificateSourceManual   CertificateSource = "manual"
	CertificateSourceBulk     CertificateSource = "bulk"
)

var validCertificateSources = []CertificateSource{
	CertificateSourceProgress,
	CertificateSourceManual,
	CertificateSourceBulk,
}

// IsValid reports whether the value is a known CertificateSource.
func (s CertificateSource) IsValid() bool {
	return slices.Contains(validCertificateSources, s)
}

// ParseCertificateSource converts raw input into a CertificateSource.
func ParseCertificateSource(value string) (CertificateSource, error) {
	return parse(validCertificateSources, "certificate source", value)
}
