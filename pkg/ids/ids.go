// Package ids mints the human-facing identifiers printed on receipts and certificates.
// ULIDs sort by creation time and are unique without coordination.
package ids

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	TransactionPrefix = "TXN-"
	InvoicePrefix     = "INV-"
	CertificatePrefix = "CERT-"
)

func NewTransactionID() string {
	return TransactionPrefix + ulid.Make().String()
}

func NewInvoiceNumber() string {
	return InvoicePrefix + ulid.Make().String()
}

func NewCertificateID() string {
	return CertificatePrefix + ulid.Make().String()
}

// IsCertificateID reports whether value looks like an identifier minted by NewCertificateID.
func IsCertificateID(value string) bool {
	rest, ok := strings.CutPrefix(value, CertificatePrefix)
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}
