// Package screening checks free text submitted by the public for SQL
// injection and cross-site scripting payloads before it is stored.
package screening

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// Kinds of detected payloads.
const (
	KindSQLi = "sqli"
	KindXSS  = "xss"
)

// Finding describes one field that failed screening.
type Finding struct {
	Field       string
	Kind        string
	Fingerprint string // libinjection fingerprint, SQLi only
}

// CheckText screens value for SQL injection and XSS.
// Returns nil when the value is clean.
//
// Example:
//
//	CheckText("message", "Road near school is broken")  // nil
//	CheckText("message", "' OR '1'='1")                 // Kind == "sqli"
//	CheckText("title", "<script>alert(1)</script>")     // Kind == "xss"
func CheckText(field, value string) *Finding {
	if value == "" {
		return nil
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(value); isSQLi {
		return &Finding{Field: field, Kind: KindSQLi, Fingerprint: string(fingerprint)}
	}
	if libinjection.IsXSS(value) {
		return &Finding{Field: field, Kind: KindXSS}
	}
	return nil
}

// CheckFields screens every field in order and returns the first finding.
// Fields are passed as name/value pairs so the order is deterministic.
func CheckFields(fields ...[2]string) *Finding {
	for _, f := range fields {
		if finding := CheckText(f[0], f[1]); finding != nil {
			return finding
		}
	}
	return nil
}
