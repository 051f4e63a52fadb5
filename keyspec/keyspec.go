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

// Package keyspec decodes DER-encoded RSA and EC key material into
// structured key parameter sets, implementing the PKCS#1 and SEC1
// ASN.1 schemas with one layer of PKCS#8/SubjectPublicKeyInfo wrapper
// detection.
package keyspec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInvalidKeySpec     = errors.New("invalid key material")
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	ErrUnsupportedCurve   = errors.New("unsupported curve")
)

// Well-known algorithm identifiers.
const (
	OIDRSAEncryption = "1.2.840.113549.1.1.1"
	OIDECPublicKey   = "1.2.840.10045.2.1"
)

// KeyType identifies a supported private key algorithm.
type KeyType string

const (
	KeyTypeRSA KeyType = "rsa"
	KeyTypeEC  KeyType = "ec"
)

// ParseKeyType resolves a key type token case-insensitively. Anything
// other than "rsa" or "ec" is rejected.
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(s) {
	case "rsa":
		return KeyTypeRSA, nil
	case "ec":
		return KeyTypeEC, nil
	}
	return "", fmt.Errorf("%w: %q (supported types: rsa, ec)", ErrUnsupportedKeyType, s)
}

// PrivateKeySpec is a structured private key parameter set that can be
// turned back into a usable crypto key.
type PrivateKeySpec interface {
	// KeyType returns the algorithm of the key.
	KeyType() KeyType

	// Key builds the corresponding stdlib private key.
	Key() (crypto.PrivateKey, error)
}

// RSAPrivateKeySpec holds the eight CRT parameters of a PKCS#1 RSA
// private key. Derived data, never mutated after construction.
type RSAPrivateKeySpec struct {
	N    *big.Int // modulus
	E    *big.Int // public exponent
	D    *big.Int // private exponent
	P    *big.Int // prime1
	Q    *big.Int // prime2
	Dp   *big.Int // exponent1, d mod (p-1)
	Dq   *big.Int // exponent2, d mod (q-1)
	Qinv *big.Int // CRT coefficient, q^-1 mod p
}

// KeyType returns KeyTypeRSA.
func (s *RSAPrivateKeySpec) KeyType() KeyType {
	return KeyTypeRSA
}

// Key builds an rsa.PrivateKey from the parameter set.
func (s *RSAPrivateKeySpec) Key() (crypto.PrivateKey, error) {
	return s.PrivateKey()
}

// PrivateKey builds an rsa.PrivateKey from the parameter set.
func (s *RSAPrivateKeySpec) PrivateKey() (*rsa.PrivateKey, error) {
	if !s.E.IsInt64() {
		return nil, fmt.Errorf("%w: public exponent does not fit in an int", ErrInvalidKeySpec)
	}
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: s.N,
			E: int(s.E.Int64()),
		},
		D:      s.D,
		Primes: []*big.Int{s.P, s.Q},
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeySpec, err)
	}
	key.Precompute()
	return key, nil
}

// RSAPublicKeySpec holds the modulus and public exponent of an RSA
// public key.
type RSAPublicKeySpec struct {
	N *big.Int
	E *big.Int
}

// PublicKey builds an rsa.PublicKey from the parameter set.
func (s *RSAPublicKeySpec) PublicKey() (*rsa.PublicKey, error) {
	if !s.E.IsInt64() {
		return nil, fmt.Errorf("%w: public exponent does not fit in an int", ErrInvalidKeySpec)
	}
	return &rsa.PublicKey{N: s.N, E: int(s.E.Int64())}, nil
}

// ECPrivateKeySpec holds an EC private scalar together with the
// parameters of its named curve.
type ECPrivateKeySpec struct {
	D     *big.Int
	Curve *CurveParams
}

// KeyType returns KeyTypeEC.
func (s *ECPrivateKeySpec) KeyType() KeyType {
	return KeyTypeEC
}

// Key builds an ecdsa.PrivateKey from the parameter set.
func (s *ECPrivateKeySpec) Key() (crypto.PrivateKey, error) {
	return s.PrivateKey()
}

// PrivateKey builds an ecdsa.PrivateKey from the scalar and curve.
func (s *ECPrivateKeySpec) PrivateKey() (*ecdsa.PrivateKey, error) {
	curve := s.Curve.curve
	if curve == nil {
		return nil, fmt.Errorf("%w: %s has no backing implementation", ErrUnsupportedCurve, s.Curve.Name)
	}
	x, y := curve.ScalarBaseMult(s.D.Bytes())
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         s.D,
	}, nil
}
