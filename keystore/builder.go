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

package keystore

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/vaultkit/vaultkit/keyspec"
	"github.com/vaultkit/vaultkit/pemutil"
)

var (
	ErrNoCertificate        = errors.New("no certificate found")
	ErrNoPrivateKey         = errors.New("no private key found")
	ErrUnsupportedKeyFormat = errors.New("unsupported private key format")
)

// ParseCertificate decodes a single X.509 certificate from content
// that is either base64 DER or PEM encoded. For PEM bundles, the first
// certificate-classified section wins.
func ParseCertificate(content string) (*x509.Certificate, error) {
	format, err := DetectFormat(content)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatDER:
		decoded, err := decodeBase64(content)
		if err != nil {
			return nil, err
		}
		return x509.ParseCertificate(decoded)
	case FormatPEM, FormatPEMBundle:
		items, err := pemutil.Parse(content)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.IsCertificate() {
				return item.Certificate()
			}
		}
	}
	return nil, ErrNoCertificate
}

// ParsePrivateKey decodes private key material of the given type from
// base64 DER or PEM content. On the PEM path only PKCS#1 (RSA PRIVATE
// KEY) and SEC1 (EC PRIVATE KEY) sections are accepted; PKCS#8 and
// PKCS#7 sections are rejected even though the DER-level factories can
// unwrap one layer of PKCS#8 themselves.
func ParsePrivateKey(content, keyType string) (keyspec.PrivateKeySpec, error) {
	kt, err := keyspec.ParseKeyType(keyType)
	if err != nil {
		return nil, err
	}

	format, err := DetectFormat(content)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatDER:
		decoded, err := decodeBase64(content)
		if err != nil {
			return nil, err
		}
		return keyspec.ParsePrivateKey(decoded, kt)
	case FormatPEM, FormatPEMBundle:
		items, err := pemutil.Parse(content)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			switch item.Type {
			case pemutil.ObjectTypeRSAPrivateKey, pemutil.ObjectTypeECPrivateKey:
				return keyspec.ParsePrivateKey(item.Content, kt)
			case pemutil.ObjectTypePrivateKey, pemutil.ObjectTypeEncryptedPrivateKey:
				return nil, fmt.Errorf("%w: PKCS#8 key sections are not supported, PKCS#1 only", ErrUnsupportedKeyFormat)
			case pemutil.ObjectTypePKCS7:
				return nil, fmt.Errorf("%w: PKCS#7 key sections are not supported, PKCS#1 only", ErrUnsupportedKeyFormat)
			}
		}
	}
	return nil, ErrNoPrivateKey
}
