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

package bundle

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/vaultkit/vaultkit/keyspec"
)

type fixture struct {
	bundle  *CertificateBundle
	leafKey *rsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "issuing ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "leaf"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)

	toPEM := func(der []byte) string {
		return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	}
	keyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(leafKey),
	}))

	b, err := NewCertificateBundle("02", toPEM(leafDER), toPEM(caDER), keyPEM, "rsa", toPEM(caDER))
	require.NoError(t, err)
	return &fixture{bundle: b, leafKey: leafKey}
}

func TestNewCertificateValidation(t *testing.T) {
	_, err := NewCertificate("01", "", "ca")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate must not be empty")

	_, err = NewCertificate("01", "cert", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuing CA")

	_, err = NewCertificateBundle("01", "", "ca", "key", "rsa")
	require.Error(t, err)
}

func TestX509Certificate(t *testing.T) {
	f := newFixture(t)

	cert, err := f.bundle.X509Certificate()
	require.NoError(t, err)
	assert.Equal(t, "leaf", cert.Subject.CommonName)

	// Lazy derivation, fresh object per call.
	again, err := f.bundle.X509Certificate()
	require.NoError(t, err)
	assert.NotSame(t, cert, again)
}

func TestX509IssuerCertificates(t *testing.T) {
	f := newFixture(t)

	issuers, err := f.bundle.X509IssuerCertificates()
	require.NoError(t, err)
	require.Len(t, issuers, 2)
	assert.Equal(t, "issuing ca", issuers[0].Subject.CommonName)
	assert.Equal(t, "issuing ca", issuers[1].Subject.CommonName)
}

func TestPrivateKeySpec(t *testing.T) {
	f := newFixture(t)

	spec, err := f.bundle.PrivateKeySpec()
	require.NoError(t, err)
	assert.Equal(t, keyspec.KeyTypeRSA, spec.KeyType())

	key, err := spec.Key()
	require.NoError(t, err)
	assert.True(t, f.leafKey.Equal(key.(*rsa.PrivateKey)))
}

func TestPrivateKeySpecMissingKey(t *testing.T) {
	f := newFixture(t)
	cert := f.bundle.CertificateOnly()

	rebuilt := &CertificateBundle{Certificate: *cert}
	_, err := rebuilt.PrivateKeySpec()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no private key")
}

func TestAsKeyStore(t *testing.T) {
	f := newFixture(t)

	ks, err := f.bundle.AsKeyStore("vault")
	require.NoError(t, err)
	assert.Equal(t, []string{"vault"}, ks.Aliases())

	entry, err := ks.Entry("vault")
	require.NoError(t, err)
	assert.Len(t, entry.Chain, 3)

	leaf, err := entry.Leaf()
	require.NoError(t, err)
	assert.Equal(t, "leaf", leaf.Subject.CommonName)

	root, err := entry.Root()
	require.NoError(t, err)
	assert.Equal(t, "issuing ca", root.Subject.CommonName)
}

func TestAsPKCS12RoundTrip(t *testing.T) {
	f := newFixture(t)

	p12, err := f.bundle.AsPKCS12("vault", "changeit")
	require.NoError(t, err)

	key, cert, _, err := pkcs12.DecodeChain(p12, "changeit")
	require.NoError(t, err)
	assert.Equal(t, "leaf", cert.Subject.CommonName)
	assert.True(t, f.leafKey.Equal(key.(*rsa.PrivateKey)))
}

func TestTrustStore(t *testing.T) {
	f := newFixture(t)

	ks, err := f.bundle.TrustStore()
	require.NoError(t, err)
	assert.Equal(t, []string{"cert_0", "cert_1"}, ks.Aliases())
}

func TestJSONShape(t *testing.T) {
	f := newFixture(t)

	data, err := json.Marshal(f.bundle)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "serial_number")
	assert.Contains(t, fields, "certificate")
	assert.Contains(t, fields, "issuing_ca")
	assert.Contains(t, fields, "ca_chain")
	assert.Contains(t, fields, "private_key")
	assert.Contains(t, fields, "private_key_type")
	assert.NotContains(t, fields, "revocation_time")

	var decoded CertificateBundle
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, f.bundle.SerialNumber, decoded.SerialNumber)
	assert.Equal(t, f.bundle.PrivateKeyType, decoded.PrivateKeyType)
	assert.Equal(t, f.bundle.CAChain, decoded.CAChain)
}

func TestCertificateOnly(t *testing.T) {
	f := newFixture(t)
	f.bundle.RevocationTime = 1700000000

	cert := f.bundle.CertificateOnly()
	assert.Equal(t, f.bundle.SerialNumber, cert.SerialNumber)
	assert.Equal(t, int64(1700000000), cert.RevocationTime)

	// Chain is copied, not aliased.
	cert.CAChain[0] = "mutated"
	assert.NotEqual(t, "mutated", f.bundle.CAChain[0])
}
