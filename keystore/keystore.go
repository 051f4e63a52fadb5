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
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	certigo "github.com/square/certigo/lib"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/vaultkit/vaultkit/keyspec"
)

var (
	ErrNoSuchAlias    = errors.New("no such alias")
	ErrNotAKeyEntry   = errors.New("alias does not hold a key entry")
	ErrEmptyKeyStore  = errors.New("keystore holds no entries")
	ErrEmptyCertChain = errors.New("certificate chain is empty")
)

// Entry is a keystore slot holding either a private key with its
// certificate chain, or a lone trusted certificate (nil PrivateKey,
// single-element Chain).
type Entry struct {
	PrivateKey crypto.PrivateKey
	Chain      []*x509.Certificate
}

// IsKeyEntry reports whether the entry holds a private key.
func (e *Entry) IsKeyEntry() bool {
	return e.PrivateKey != nil
}

// Leaf returns the first certificate of the chain.
func (e *Entry) Leaf() (*x509.Certificate, error) {
	if len(e.Chain) == 0 {
		return nil, ErrEmptyCertChain
	}
	return e.Chain[0], nil
}

// Root returns the last self-signed certificate of the chain, or the
// last certificate if none is self-signed.
func (e *Entry) Root() (*x509.Certificate, error) {
	if len(e.Chain) == 0 {
		return nil, ErrEmptyCertChain
	}
	for i := len(e.Chain) - 1; i >= 0; i-- {
		if certigo.IsSelfSigned(e.Chain[i]) {
			return e.Chain[i], nil
		}
	}
	return e.Chain[len(e.Chain)-1], nil
}

// KeyStore is an alias-keyed collection of key and certificate entries.
// Aliases keep insertion order; setting an existing alias replaces its
// entry in place.
type KeyStore struct {
	entries map[string]*Entry
	aliases []string
}

// New returns an empty keystore.
func New() *KeyStore {
	return &KeyStore{entries: make(map[string]*Entry)}
}

// CreateKeyStore builds a keystore holding a single key entry under the
// given alias.
func CreateKeyStore(alias string, spec keyspec.PrivateKeySpec, chain ...*x509.Certificate) (*KeyStore, error) {
	ks := New()
	if err := ks.SetKeyEntry(alias, spec, chain...); err != nil {
		return nil, err
	}
	return ks, nil
}

// CreateTrustStore builds a keystore of trusted certificate entries,
// aliased cert_0, cert_1 and so on in argument order.
func CreateTrustStore(certs ...*x509.Certificate) (*KeyStore, error) {
	if len(certs) == 0 {
		return nil, ErrEmptyCertChain
	}
	ks := New()
	for i, cert := range certs {
		ks.SetCertificateEntry(fmt.Sprintf("cert_%d", i), cert)
	}
	return ks, nil
}

func (ks *KeyStore) put(alias string, entry *Entry) {
	if _, exists := ks.entries[alias]; !exists {
		ks.aliases = append(ks.aliases, alias)
	}
	ks.entries[alias] = entry
}

// SetKeyEntry materializes the key spec and stores it with its chain
// under the alias.
func (ks *KeyStore) SetKeyEntry(alias string, spec keyspec.PrivateKeySpec, chain ...*x509.Certificate) error {
	if len(chain) == 0 {
		return ErrEmptyCertChain
	}
	key, err := spec.Key()
	if err != nil {
		return err
	}
	ks.put(alias, &Entry{PrivateKey: key, Chain: chain})
	return nil
}

// SetCertificateEntry stores a trusted certificate under the alias.
func (ks *KeyStore) SetCertificateEntry(alias string, cert *x509.Certificate) {
	ks.put(alias, &Entry{Chain: []*x509.Certificate{cert}})
}

// Aliases returns the entry aliases in insertion order.
func (ks *KeyStore) Aliases() []string {
	out := make([]string, len(ks.aliases))
	copy(out, ks.aliases)
	return out
}

// Entry returns the entry stored under the alias.
func (ks *KeyStore) Entry(alias string) (*Entry, error) {
	entry, ok := ks.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchAlias, alias)
	}
	return entry, nil
}

// Certificate returns the leaf certificate of the entry stored under
// the alias.
func (ks *KeyStore) Certificate(alias string) (*x509.Certificate, error) {
	entry, err := ks.Entry(alias)
	if err != nil {
		return nil, err
	}
	return entry.Leaf()
}

// ToPKCS12 exports the key entry under the alias as a password-protected
// PKCS#12 bundle, leaf first with the rest of the chain as CA bags.
func (ks *KeyStore) ToPKCS12(alias, password string) ([]byte, error) {
	entry, err := ks.Entry(alias)
	if err != nil {
		return nil, err
	}
	if !entry.IsKeyEntry() {
		return nil, fmt.Errorf("%w: %q", ErrNotAKeyEntry, alias)
	}
	leaf, err := entry.Leaf()
	if err != nil {
		return nil, err
	}
	return pkcs12.Modern.Encode(entry.PrivateKey, leaf, entry.Chain[1:], password)
}

// TrustStorePKCS12 exports all certificate entries as a PKCS#12 trust
// store. Key entries contribute their leaf certificate only.
func (ks *KeyStore) TrustStorePKCS12(password string) ([]byte, error) {
	if len(ks.aliases) == 0 {
		return nil, ErrEmptyKeyStore
	}
	certs := make([]*x509.Certificate, 0, len(ks.aliases))
	for _, alias := range ks.aliases {
		leaf, err := ks.entries[alias].Leaf()
		if err != nil {
			return nil, err
		}
		certs = append(certs, leaf)
	}
	return pkcs12.Modern.EncodeTrustStore(certs, password)
}

// Certificates parses one or more concatenated DER certificates.
func Certificates(derBytes []byte) ([]*x509.Certificate, error) {
	return x509.ParseCertificates(derBytes)
}
