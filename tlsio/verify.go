package tlsio

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// VerifyKind names the reason a peer certificate was rejected.
type VerifyKind int

const (
	VerifyGeneric VerifyKind = iota
	VerifyExpired
	VerifyNotYetValid
	VerifySelfSigned
	VerifyIssuerNotLocallyTrusted
	VerifyRevoked
	VerifyCrlSignatureInvalid
	VerifyCrlExpired
	VerifyCrlNextUpdateInvalid
	VerifySignatureInvalid
)

func (k VerifyKind) String() string {
	switch k {
	case VerifyExpired:
		return "certificate expired"
	case VerifyNotYetValid:
		return "certificate not yet valid"
	case VerifySelfSigned:
		return "self-signed certificate"
	case VerifyIssuerNotLocallyTrusted:
		return "issuer not locally trusted"
	case VerifyRevoked:
		return "certificate revoked"
	case VerifyCrlSignatureInvalid:
		return "CRL signature invalid"
	case VerifyCrlExpired:
		return "CRL expired"
	case VerifyCrlNextUpdateInvalid:
		return "CRL nextUpdate invalid"
	case VerifySignatureInvalid:
		return "certificate signature invalid"
	default:
		return "certificate verify failed"
	}
}

// VerifyError is a certificate verification failure with its kind and,
// when available, the subject of the offending certificate.
type VerifyError struct {
	Kind    VerifyKind
	Subject string
	Err     error
}

func (e *VerifyError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("tls: %s (%s)", e.Kind, e.Subject)
	}
	return fmt.Sprintf("tls: %s", e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// classifyVerify maps a handshake error to a VerifyError when it stems
// from certificate verification; other errors pass through unchanged.
func classifyVerify(err error) error {
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		kind := VerifyGeneric
		subject := ""
		if invalid.Cert != nil {
			subject = SubjectRDN(invalid.Cert)
			switch {
			case invalid.Reason == x509.Expired && time.Now().Before(invalid.Cert.NotBefore):
				kind = VerifyNotYetValid
			case invalid.Reason == x509.Expired:
				kind = VerifyExpired
			}
		} else if invalid.Reason == x509.Expired {
			kind = VerifyExpired
		}
		return &VerifyError{Kind: kind, Subject: subject, Err: err}
	}

	var unknown x509.UnknownAuthorityError
	if errors.As(err, &unknown) {
		kind := VerifyIssuerNotLocallyTrusted
		subject := ""
		if unknown.Cert != nil {
			subject = SubjectRDN(unknown.Cert)
			if unknown.Cert.Issuer.String() == unknown.Cert.Subject.String() {
				kind = VerifySelfSigned
			}
		}
		return &VerifyError{Kind: kind, Subject: subject, Err: err}
	}

	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		subject := ""
		if hostname.Certificate != nil {
			subject = SubjectRDN(hostname.Certificate)
		}
		return &VerifyError{Kind: VerifyGeneric, Subject: subject, Err: err}
	}

	return err
}
