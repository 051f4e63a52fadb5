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

package pemutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func armor(t *testing.T, label string, content []byte) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("-----BEGIN " + label + "-----\n")
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 0 {
		n := len(encoded)
		if n > 64 {
			n = 64
		}
		sb.WriteString(encoded[:n])
		sb.WriteByte('\n')
		encoded = encoded[n:]
	}
	sb.WriteString("-----END " + label + "-----\n")
	return sb.String()
}

func selfSignedCertPEM(t *testing.T) (string, *x509.Certificate) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{SerialNumber: big.NewInt(1)}
	derBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(derBytes)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})), cert
}

func TestParseRoundTrip(t *testing.T) {
	content := []byte("arbitrary bytes, not actually a certificate")
	text := armor(t, "CERTIFICATE", content)

	items, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ObjectTypeCertificate, items[0].Type)
	assert.Equal(t, content, items[0].Content)
}

func TestParseMismatchedEndTag(t *testing.T) {
	text := "-----BEGIN CERTIFICATE-----\nAAAA\n-----END RSA PRIVATE KEY-----\n"
	_, err := Parse(text)
	assert.ErrorIs(t, err, ErrMalformedPEM)
	assert.Contains(t, err.Error(), "doesn't match")
}

func TestParseMissingEndTag(t *testing.T) {
	text := "-----BEGIN CERTIFICATE-----\nAAAA\n"
	_, err := Parse(text)
	assert.ErrorIs(t, err, ErrMalformedPEM)
	assert.Contains(t, err.Error(), "missing end tag")
}

func TestParseUnknownLabel(t *testing.T) {
	text := "-----BEGIN WIBBLE-----\nAAAA\n-----END WIBBLE-----\n"
	_, err := Parse(text)
	assert.ErrorIs(t, err, ErrUnknownObjectType)
}

func TestParseBadBase64(t *testing.T) {
	text := "-----BEGIN CERTIFICATE-----\n!!!not base64!!!\n-----END CERTIFICATE-----\n"
	_, err := Parse(text)
	assert.ErrorIs(t, err, ErrMalformedPEM)
}

func TestParseBundlePreservesOrder(t *testing.T) {
	contents := [][]byte{
		[]byte("first block"),
		[]byte("second block"),
		[]byte("third block"),
	}
	var text strings.Builder
	for _, c := range contents {
		text.WriteString(armor(t, "CERTIFICATE", c))
	}

	items, err := Parse(text.String())
	require.NoError(t, err)
	require.Len(t, items, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, items[i].Content)
	}
}

func TestParseMixedBundle(t *testing.T) {
	text := armor(t, "CERTIFICATE", []byte("cert")) +
		armor(t, "RSA PRIVATE KEY", []byte("key")) +
		armor(t, "EC PARAMETERS", []byte("params"))

	items, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, ObjectTypeCertificate, items[0].Type)
	assert.Equal(t, ObjectTypeRSAPrivateKey, items[1].Type)
	assert.Equal(t, ObjectTypeECParameters, items[2].Type)
}

func TestParseToleratesCRLFAndIndentation(t *testing.T) {
	content := []byte("windows line endings")
	text := strings.ReplaceAll(armor(t, "CERTIFICATE", content), "\n", "\r\n")
	text = "  " + strings.ReplaceAll(text, "-----BEGIN", "  -----BEGIN")

	items, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, content, items[0].Content)
}

func TestParseSkipsLeadingJunk(t *testing.T) {
	text := "some explanatory text\nbefore the block\n" + armor(t, "CERTIFICATE", []byte("data"))
	items, err := Parse(text)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestIsPEMEncoded(t *testing.T) {
	assert.True(t, IsPEMEncoded(armor(t, "CERTIFICATE", []byte("x"))))
	assert.False(t, IsPEMEncoded("just some text"))
	assert.False(t, IsPEMEncoded("-----BEGIN CERTIFICATE-----\nno end tag"))
}

func TestBlockCount(t *testing.T) {
	assert.Equal(t, 0, BlockCount("nothing"))
	assert.Equal(t, 1, BlockCount(armor(t, "CERTIFICATE", []byte("x"))))
	assert.Equal(t, 2, BlockCount(armor(t, "CERTIFICATE", []byte("x"))+armor(t, "CERTIFICATE", []byte("y"))))
}

func TestClassificationPredicates(t *testing.T) {
	tests := []struct {
		typ     ObjectType
		cert    bool
		private bool
		public  bool
	}{
		{ObjectTypeCertificate, true, false, false},
		{ObjectTypeX509Certificate, true, false, false},
		{ObjectTypeTrustedCertificate, true, false, false},
		{ObjectTypePrivateKey, false, true, false},
		{ObjectTypeRSAPrivateKey, false, true, false},
		{ObjectTypeECPrivateKey, false, true, false},
		{ObjectTypePublicKey, false, false, true},
		{ObjectTypeRSAPublicKey, false, false, true},
		{ObjectTypePKCS7, false, false, false},
		{ObjectTypeCMS, false, false, false},
		{ObjectTypeEncryptedPrivateKey, false, false, false},
		{ObjectTypeCertificateRequest, false, false, false},
	}
	for _, tt := range tests {
		item := Item{Type: tt.typ}
		assert.Equal(t, tt.cert, item.IsCertificate(), "%s IsCertificate", tt.typ)
		assert.Equal(t, tt.private, item.IsPrivateKey(), "%s IsPrivateKey", tt.typ)
		assert.Equal(t, tt.public, item.IsPublicKey(), "%s IsPublicKey", tt.typ)
	}
}

func TestParseObjectType(t *testing.T) {
	typ, err := ParseObjectType("CERTIFICATE")
	require.NoError(t, err)
	assert.Equal(t, ObjectTypeCertificate, typ)

	typ, err = ParseObjectType("rsa private key")
	require.NoError(t, err)
	assert.Equal(t, ObjectTypeRSAPrivateKey, typ)

	_, err = ParseObjectType("GIBBERISH")
	assert.ErrorIs(t, err, ErrUnknownObjectType)
}

func TestParseFirst(t *testing.T) {
	_, err := ParseFirst("no pem here")
	assert.ErrorIs(t, err, ErrNoPEMObject)

	item, err := ParseFirst(armor(t, "RSA PRIVATE KEY", []byte("key")))
	require.NoError(t, err)
	assert.Equal(t, ObjectTypeRSAPrivateKey, item.Type)
}

func TestFirstCertificateAndPrivateKey(t *testing.T) {
	text := armor(t, "EC PARAMETERS", []byte("params")) +
		armor(t, "EC PRIVATE KEY", []byte("key")) +
		armor(t, "CERTIFICATE", []byte("cert"))

	item, err := FirstCertificate(text)
	require.NoError(t, err)
	assert.Equal(t, []byte("cert"), item.Content)

	item, err = FirstPrivateKey(text)
	require.NoError(t, err)
	assert.Equal(t, []byte("key"), item.Content)

	_, err = FirstPrivateKey(armor(t, "CERTIFICATE", []byte("cert")))
	assert.ErrorIs(t, err, ErrNoPEMObject)
	assert.Contains(t, err.Error(), "could not find a private key")
}

func TestParseFirstOf(t *testing.T) {
	text := armor(t, "CERTIFICATE", []byte("cert")) +
		armor(t, "RSA PUBLIC KEY", []byte("pub"))

	item, err := ParseFirstOf(text, Item.IsPublicKey, "public key")
	require.NoError(t, err)
	assert.Equal(t, []byte("pub"), item.Content)

	_, err = ParseFirstOf(text, Item.IsPrivateKey, "private key")
	assert.ErrorIs(t, err, ErrNoPEMObject)
}

func TestItemCertificate(t *testing.T) {
	certPEM, want := selfSignedCertPEM(t)

	item, err := ParseFirst(certPEM)
	require.NoError(t, err)

	cert, err := item.Certificate()
	require.NoError(t, err)
	assert.Equal(t, want.SerialNumber, cert.SerialNumber)

	_, err = Item{Type: ObjectTypeRSAPrivateKey}.Certificate()
	assert.ErrorIs(t, err, ErrUnexpectedObjectType)
}

func TestItemKeyExtraction(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(rsaKey),
	}))

	item, err := FirstPrivateKey(rsaPEM)
	require.NoError(t, err)
	spec, err := item.RSAPrivateKey()
	require.NoError(t, err)
	assert.Zero(t, rsaKey.N.Cmp(spec.N))

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	sec1, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)
	ecPEM := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}))

	item, err = FirstPrivateKey(ecPEM)
	require.NoError(t, err)
	ecSpec, err := item.ECPrivateKey()
	require.NoError(t, err)
	assert.Zero(t, ecKey.D.Cmp(ecSpec.D))

	_, err = Item{Type: ObjectTypeCertificate}.RSAPrivateKey()
	assert.ErrorIs(t, err, ErrUnexpectedObjectType)
}
