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

// Package pemutil scans textual PEM content for BEGIN/END sections,
// decodes their bodies and classifies them against a fixed vocabulary
// of PEM labels. It supports bundles of multiple concatenated blocks
// and preserves their order.
package pemutil

import (
	"bufio"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vaultkit/vaultkit/keyspec"
)

var (
	ErrMalformedPEM         = errors.New("malformed PEM data")
	ErrUnknownObjectType    = errors.New("unknown PEM object type")
	ErrNoPEMObject          = errors.New("cannot find PEM object")
	ErrUnexpectedObjectType = errors.New("unexpected PEM object type")
)

var (
	beginPattern = regexp.MustCompile(`^\s*-----BEGIN ([A-Z ]+)-----\s*$`)
	endPattern   = regexp.MustCompile(`^\s*-----END ([A-Z ]+)-----\s*$`)
)

// ObjectType classifies a PEM section by its label.
type ObjectType int

const (
	ObjectTypeCertificateRequest ObjectType = iota
	ObjectTypeNewCertificateRequest
	ObjectTypeCertificate
	ObjectTypeTrustedCertificate
	ObjectTypeX509Certificate
	ObjectTypeX509CRL
	ObjectTypePKCS7
	ObjectTypeCMS
	ObjectTypeAttributeCertificate
	ObjectTypeECParameters
	ObjectTypePublicKey
	ObjectTypeRSAPublicKey
	ObjectTypeRSAPrivateKey
	ObjectTypeECPrivateKey
	ObjectTypeEncryptedPrivateKey
	ObjectTypePrivateKey
)

var objectTypeLabels = map[ObjectType]string{
	ObjectTypeCertificateRequest:    "CERTIFICATE REQUEST",
	ObjectTypeNewCertificateRequest: "NEW CERTIFICATE REQUEST",
	ObjectTypeCertificate:           "CERTIFICATE",
	ObjectTypeTrustedCertificate:    "TRUSTED CERTIFICATE",
	ObjectTypeX509Certificate:       "X509 CERTIFICATE",
	ObjectTypeX509CRL:               "X509 CRL",
	ObjectTypePKCS7:                 "PKCS7",
	ObjectTypeCMS:                   "CMS",
	ObjectTypeAttributeCertificate:  "ATTRIBUTE CERTIFICATE",
	ObjectTypeECParameters:          "EC PARAMETERS",
	ObjectTypePublicKey:             "PUBLIC KEY",
	ObjectTypeRSAPublicKey:          "RSA PUBLIC KEY",
	ObjectTypeRSAPrivateKey:         "RSA PRIVATE KEY",
	ObjectTypeECPrivateKey:          "EC PRIVATE KEY",
	ObjectTypeEncryptedPrivateKey:   "ENCRYPTED PRIVATE KEY",
	ObjectTypePrivateKey:            "PRIVATE KEY",
}

var labelObjectTypes = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(objectTypeLabels))
	for typ, label := range objectTypeLabels {
		m[label] = typ
	}
	return m
}()

// Label returns the PEM armor label of the type.
func (t ObjectType) Label() string {
	return objectTypeLabels[t]
}

func (t ObjectType) String() string {
	return t.Label()
}

// ParseObjectType resolves a PEM label against the known vocabulary.
// Matching is case-insensitive.
func ParseObjectType(label string) (ObjectType, error) {
	typ, ok := labelObjectTypes[strings.ToUpper(strings.TrimSpace(label))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownObjectType, label)
	}
	return typ, nil
}

// Item is a classified PEM section with its base64-decoded content.
type Item struct {
	Type    ObjectType
	Content []byte
}

// IsCertificate reports whether the item holds certificate data.
func (i Item) IsCertificate() bool {
	switch i.Type {
	case ObjectTypeCertificate, ObjectTypeX509Certificate, ObjectTypeTrustedCertificate:
		return true
	}
	return false
}

// IsPrivateKey reports whether the item holds private key data.
func (i Item) IsPrivateKey() bool {
	switch i.Type {
	case ObjectTypePrivateKey, ObjectTypeRSAPrivateKey, ObjectTypeECPrivateKey:
		return true
	}
	return false
}

// IsPublicKey reports whether the item holds public key data.
func (i Item) IsPublicKey() bool {
	switch i.Type {
	case ObjectTypePublicKey, ObjectTypeRSAPublicKey:
		return true
	}
	return false
}

// Certificate parses the item's content as an X.509 certificate.
func (i Item) Certificate() (*x509.Certificate, error) {
	if !i.IsCertificate() {
		return nil, fmt.Errorf("%w: %s is not a certificate", ErrUnexpectedObjectType, i.Type)
	}
	return x509.ParseCertificate(i.Content)
}

// RSAPrivateKey decodes the item's content as a PKCS#1 RSA private key.
func (i Item) RSAPrivateKey() (*keyspec.RSAPrivateKeySpec, error) {
	if !i.IsPrivateKey() {
		return nil, fmt.Errorf("%w: %s is not a private key", ErrUnexpectedObjectType, i.Type)
	}
	return keyspec.ParseRSAPrivateKey(i.Content)
}

// ECPrivateKey decodes the item's content as a SEC1 EC private key.
func (i Item) ECPrivateKey() (*keyspec.ECPrivateKeySpec, error) {
	if !i.IsPrivateKey() {
		return nil, fmt.Errorf("%w: %s is not a private key", ErrUnexpectedObjectType, i.Type)
	}
	return keyspec.ParseECPrivateKey(i.Content)
}

// RSAPublicKey decodes the item's content as an RSA public key.
func (i Item) RSAPublicKey() (*keyspec.RSAPublicKeySpec, error) {
	if !i.IsPublicKey() {
		return nil, fmt.Errorf("%w: %s is not a public key", ErrUnexpectedObjectType, i.Type)
	}
	return keyspec.ParseRSAPublicKey(i.Content)
}

// IsPEMEncoded reports whether the text contains both a BEGIN and an
// END marker line.
func IsPEMEncoded(text string) bool {
	var hasBegin, hasEnd bool
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if beginPattern.MatchString(line) {
			hasBegin = true
		}
		if endPattern.MatchString(line) {
			hasEnd = true
		}
	}
	return hasBegin && hasEnd
}

// BlockCount returns the number of BEGIN marker lines in the text.
func BlockCount(text string) int {
	count := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if beginPattern.MatchString(scanner.Text()) {
			count++
		}
	}
	return count
}

// Parse scans the text for PEM sections and returns them in order of
// appearance. A section whose END label differs from its BEGIN label,
// a section left open at end of input, or a label outside the known
// vocabulary all fail the whole parse.
func Parse(text string) ([]Item, error) {
	var items []Item
	var label string
	var body strings.Builder
	inSection := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if !inSection {
			if m := beginPattern.FindStringSubmatch(line); m != nil {
				label = m[1]
				inSection = true
				body.Reset()
			}
			continue
		}

		if m := endPattern.FindStringSubmatch(line); m != nil {
			if m[1] != label {
				return nil, fmt.Errorf("%w: end tag %q doesn't match begin tag %q", ErrMalformedPEM, m[1], label)
			}
			typ, err := ParseObjectType(label)
			if err != nil {
				return nil, err
			}
			content, err := base64.StdEncoding.DecodeString(body.String())
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPEM, err)
			}
			items = append(items, Item{Type: typ, Content: content})
			inSection = false
			continue
		}

		body.WriteString(strings.TrimSpace(line))
	}
	if inSection {
		return nil, fmt.Errorf("%w: missing end tag for %q", ErrMalformedPEM, label)
	}
	return items, nil
}

// ParseFirst returns the first PEM section of the text.
func ParseFirst(text string) (Item, error) {
	items, err := Parse(text)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, ErrNoPEMObject
	}
	return items[0], nil
}

// FirstCertificate returns the first certificate-classified section.
func FirstCertificate(text string) (Item, error) {
	return ParseFirstOf(text, Item.IsCertificate, "certificate")
}

// FirstPrivateKey returns the first private-key-classified section.
func FirstPrivateKey(text string) (Item, error) {
	return ParseFirstOf(text, Item.IsPrivateKey, "private key")
}

// ParseFirstOf returns the first section matching the predicate; what
// names the sought object in the not-found error.
func ParseFirstOf(text string, match func(Item) bool, what string) (Item, error) {
	items, err := Parse(text)
	if err != nil {
		return Item{}, err
	}
	for _, item := range items {
		if match(item) {
			return item, nil
		}
	}
	return Item{}, fmt.Errorf("%w: could not find a %s", ErrNoPEMObject, what)
}
