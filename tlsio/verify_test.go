package tlsio

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"testing"
	"time"
)

func certWithCN(cn string) *x509.Certificate {
	name := pkix.Name{
		CommonName: cn,
		Names: []pkix.AttributeTypeAndValue{
			{Type: asn1.ObjectIdentifier{2, 5, 4, 3}, Value: cn},
		},
	}
	return &x509.Certificate{Subject: name, Issuer: name}
}

func asVerifyError(t *testing.T, err error) *VerifyError {
	t.Helper()
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("got %T (%v), want *VerifyError", err, err)
	}
	return ve
}

func TestClassifyVerify_Expired(t *testing.T) {
	t.Parallel()
	cert := certWithCN("files.example.org")
	cert.NotBefore = time.Now().Add(-48 * time.Hour)
	cert.NotAfter = time.Now().Add(-24 * time.Hour)

	ve := asVerifyError(t, classifyVerify(
		x509.CertificateInvalidError{Cert: cert, Reason: x509.Expired}))
	if ve.Kind != VerifyExpired {
		t.Errorf("kind = %v, want expired", ve.Kind)
	}
	if ve.Subject != "CN=files.example.org" {
		t.Errorf("subject = %q", ve.Subject)
	}
}

func TestClassifyVerify_NotYetValid(t *testing.T) {
	t.Parallel()
	// x509 reports a future NotBefore under the same Expired reason;
	// the validity window tells the two cases apart
	cert := certWithCN("files.example.org")
	cert.NotBefore = time.Now().Add(24 * time.Hour)
	cert.NotAfter = time.Now().Add(48 * time.Hour)

	ve := asVerifyError(t, classifyVerify(
		x509.CertificateInvalidError{Cert: cert, Reason: x509.Expired}))
	if ve.Kind != VerifyNotYetValid {
		t.Errorf("kind = %v, want not yet valid", ve.Kind)
	}
}

func TestClassifyVerify_SelfSigned(t *testing.T) {
	t.Parallel()
	cert := certWithCN("standalone.example.org")

	ve := asVerifyError(t, classifyVerify(x509.UnknownAuthorityError{Cert: cert}))
	if ve.Kind != VerifySelfSigned {
		t.Errorf("kind = %v, want self-signed", ve.Kind)
	}
}

func TestClassifyVerify_UntrustedIssuer(t *testing.T) {
	t.Parallel()
	cert := certWithCN("leaf.example.org")
	cert.Issuer = pkix.Name{CommonName: "Private Corp CA"}

	ve := asVerifyError(t, classifyVerify(x509.UnknownAuthorityError{Cert: cert}))
	if ve.Kind != VerifyIssuerNotLocallyTrusted {
		t.Errorf("kind = %v, want issuer not locally trusted", ve.Kind)
	}
}

func TestClassifyVerify_HostnameMismatch(t *testing.T) {
	t.Parallel()
	cert := certWithCN("other.example.org")
	cert.DNSNames = []string{"other.example.org"}

	err := classifyVerify(x509.HostnameError{Certificate: cert, Host: "files.example.org"})
	ve := asVerifyError(t, err)
	if ve.Kind != VerifyGeneric {
		t.Errorf("kind = %v, want generic", ve.Kind)
	}
	if ve.Subject != "CN=other.example.org" {
		t.Errorf("subject = %q", ve.Subject)
	}
}

func TestClassifyVerify_PassesThroughOtherErrors(t *testing.T) {
	t.Parallel()
	plain := fmt.Errorf("handshake aborted")
	if got := classifyVerify(plain); got != plain {
		t.Errorf("unrelated error rewritten to %v", got)
	}
}

func TestVerifyError_Message(t *testing.T) {
	t.Parallel()
	ve := &VerifyError{Kind: VerifyExpired, Subject: "CN=x"}
	if got := ve.Error(); got != "tls: certificate expired (CN=x)" {
		t.Errorf("got %q", got)
	}
	ve = &VerifyError{Kind: VerifySelfSigned}
	if got := ve.Error(); got != "tls: self-signed certificate" {
		t.Errorf("got %q", got)
	}
}
