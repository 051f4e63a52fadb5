/*-
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bundle models certificate payloads as returned by a Vault PKI
// secrets engine: a leaf certificate with its issuing CA, optional CA
// chain and optional private key, all as PEM or base64-DER strings.
// Derivations to parsed X.509 and key material re-parse on every call.
package bundle

import (
	"crypto/x509"

	"github.com/pkg/errors"

	"github.com/vaultkit/vaultkit/keyspec"
	"github.com/vaultkit/vaultkit/keystore"
)

// Certificate is a certificate-only secret payload, without key
// material.
type Certificate struct {
	SerialNumber   string   `json:"serial_number"`
	CertificatePEM string   `json:"certificate"`
	IssuingCA      string   `json:"issuing_ca"`
	CAChain        []string `json:"ca_chain,omitempty"`
	RevocationTime int64    `json:"revocation_time,omitempty"`
}

// CertificateBundle is a certificate secret payload including the
// private key it was issued for.
type CertificateBundle struct {
	Certificate
	PrivateKey     string `json:"private_key,omitempty"`
	PrivateKeyType string `json:"private_key_type,omitempty"`
}

// NewCertificate builds a certificate-only payload. The certificate and
// issuing CA must be non-empty.
func NewCertificate(serialNumber, certificate, issuingCA string, caChain ...string) (*Certificate, error) {
	if certificate == "" {
		return nil, errors.New("certificate must not be empty")
	}
	if issuingCA == "" {
		return nil, errors.New("issuing CA certificate must not be empty")
	}
	return &Certificate{
		SerialNumber:   serialNumber,
		CertificatePEM: certificate,
		IssuingCA:      issuingCA,
		CAChain:        caChain,
	}, nil
}

// NewCertificateBundle builds a full bundle. The certificate and
// issuing CA must be non-empty.
func NewCertificateBundle(serialNumber, certificate, issuingCA, privateKey, privateKeyType string, caChain ...string) (*CertificateBundle, error) {
	cert, err := NewCertificate(serialNumber, certificate, issuingCA, caChain...)
	if err != nil {
		return nil, err
	}
	return &CertificateBundle{
		Certificate:    *cert,
		PrivateKey:     privateKey,
		PrivateKeyType: privateKeyType,
	}, nil
}

// X509Certificate parses the leaf certificate.
func (c *Certificate) X509Certificate() (*x509.Certificate, error) {
	cert, err := keystore.ParseCertificate(c.CertificatePEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse certificate")
	}
	return cert, nil
}

// X509IssuerCertificates parses the issuing CA followed by the CA
// chain, in payload order.
func (c *Certificate) X509IssuerCertificates() ([]*x509.Certificate, error) {
	issuers := make([]*x509.Certificate, 0, 1+len(c.CAChain))

	issuer, err := keystore.ParseCertificate(c.IssuingCA)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse issuing CA certificate")
	}
	issuers = append(issuers, issuer)

	for i, content := range c.CAChain {
		cert, err := keystore.ParseCertificate(content)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse CA chain certificate %d", i)
		}
		issuers = append(issuers, cert)
	}
	return issuers, nil
}

// TrustStore assembles the issuer certificates into a trust-only
// keystore.
func (c *Certificate) TrustStore() (*keystore.KeyStore, error) {
	issuers, err := c.X509IssuerCertificates()
	if err != nil {
		return nil, err
	}
	return keystore.CreateTrustStore(issuers...)
}

// PrivateKeySpec decodes the bundle's private key using the declared
// key type.
func (b *CertificateBundle) PrivateKeySpec() (keyspec.PrivateKeySpec, error) {
	if b.PrivateKey == "" {
		return nil, errors.New("bundle holds no private key")
	}
	spec, err := keystore.ParsePrivateKey(b.PrivateKey, b.PrivateKeyType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse bundle private key")
	}
	return spec, nil
}

// AsKeyStore assembles the bundle into a keystore holding the private
// key with the full certificate chain under the given alias.
func (b *CertificateBundle) AsKeyStore(alias string) (*keystore.KeyStore, error) {
	spec, err := b.PrivateKeySpec()
	if err != nil {
		return nil, err
	}
	leaf, err := b.X509Certificate()
	if err != nil {
		return nil, err
	}
	issuers, err := b.X509IssuerCertificates()
	if err != nil {
		return nil, err
	}
	chain := append([]*x509.Certificate{leaf}, issuers...)
	return keystore.CreateKeyStore(alias, spec, chain...)
}

// AsPKCS12 assembles the bundle and exports it as a password-protected
// PKCS#12 blob.
func (b *CertificateBundle) AsPKCS12(alias, password string) ([]byte, error) {
	ks, err := b.AsKeyStore(alias)
	if err != nil {
		return nil, err
	}
	return ks.ToPKCS12(alias, password)
}

// CertificateOnly strips the key material from the bundle.
func (b *CertificateBundle) CertificateOnly() *Certificate {
	cert := b.Certificate
	cert.CAChain = append([]string(nil), b.CAChain...)
	return &cert
}
