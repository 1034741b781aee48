// Package x509util provides X.509 helpers for building and encoding
// certificates.
package x509util

import (
	"crypto/x509/pkix"
	"fmt"
	"strings"
)

// InvalidSubjectError reports a distinguished name that could not be parsed.
type InvalidSubjectError struct {
	DN     string
	Reason string
}

func (e *InvalidSubjectError) Error() string {
	return fmt.Sprintf("invalid subject %q: %s", e.DN, e.Reason)
}

// ParseDN parses a comma-separated distinguished name string such as
// "CN=Root CA, O=Example, C=US" into a pkix.Name.
//
// Recognized attribute types: CN, O, OU, C, ST, L. Attribute values may not
// contain commas. The common name is required.
func ParseDN(dn string) (pkix.Name, error) {
	var name pkix.Name

	if strings.TrimSpace(dn) == "" {
		return name, &InvalidSubjectError{DN: dn, Reason: "empty distinguished name"}
	}

	for _, part := range strings.Split(dn, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return name, &InvalidSubjectError{DN: dn, Reason: "empty attribute"}
		}

		key, value, found := strings.Cut(part, "=")
		if !found {
			return name, &InvalidSubjectError{DN: dn, Reason: fmt.Sprintf("attribute %q has no value", part)}
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			return name, &InvalidSubjectError{DN: dn, Reason: fmt.Sprintf("attribute %q has an empty value", key)}
		}

		switch strings.ToUpper(key) {
		case "CN":
			if name.CommonName != "" {
				return name, &InvalidSubjectError{DN: dn, Reason: "duplicate CN attribute"}
			}
			name.CommonName = value
		case "O":
			name.Organization = append(name.Organization, value)
		case "OU":
			name.OrganizationalUnit = append(name.OrganizationalUnit, value)
		case "C":
			name.Country = append(name.Country, value)
		case "ST":
			name.Province = append(name.Province, value)
		case "L":
			name.Locality = append(name.Locality, value)
		default:
			return name, &InvalidSubjectError{DN: dn, Reason: fmt.Sprintf("unsupported attribute type %q", key)}
		}
	}

	if name.CommonName == "" {
		return name, &InvalidSubjectError{DN: dn, Reason: "missing CN attribute"}
	}

	return name, nil
}
