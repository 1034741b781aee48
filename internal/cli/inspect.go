package cli

import (
	"crypto/x509"
	"fmt"
	"io"
	"time"
)

// PrintCertSummary writes a one-certificate summary in the style of the
// inspect command.
func PrintCertSummary(w io.Writer, label string, cert *x509.Certificate) {
	fmt.Fprintf(w, "%s:\n", label)
	fmt.Fprintf(w, "  Subject:    %s\n", cert.Subject.String())
	fmt.Fprintf(w, "  Issuer:     %s\n", cert.Issuer.String())
	fmt.Fprintf(w, "  Serial:     0x%X\n", cert.SerialNumber)
	fmt.Fprintf(w, "  Not before: %s\n", cert.NotBefore.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  Not after:  %s\n", cert.NotAfter.UTC().Format(time.RFC3339))
	if len(cert.DNSNames) > 0 {
		fmt.Fprintf(w, "  DNS names:  %v\n", cert.DNSNames)
	}
	fmt.Fprintf(w, "  Usage:      %s\n", describeUsage(cert))
}

func describeUsage(cert *x509.Certificate) string {
	if cert.IsCA {
		return "certificate authority"
	}

	server, client := false, false
	for _, eku := range cert.ExtKeyUsage {
		switch eku {
		case x509.ExtKeyUsageServerAuth:
			server = true
		case x509.ExtKeyUsageClientAuth:
			client = true
		}
	}

	switch {
	case server && client:
		return "TLS server + client"
	case client:
		return "TLS client only"
	case server:
		return "TLS server only"
	default:
		return "unknown"
	}
}
