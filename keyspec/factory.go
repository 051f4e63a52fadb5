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

package keyspec

import (
	"fmt"
	"math/big"

	"github.com/vaultkit/vaultkit/internal/der"
)

// ParsePrivateKey decodes DER-encoded private key material of the
// given type.
func ParsePrivateKey(derBytes []byte, keyType KeyType) (PrivateKeySpec, error) {
	switch keyType {
	case KeyTypeRSA:
		return ParseRSAPrivateKey(derBytes)
	case KeyTypeEC:
		return ParseECPrivateKey(derBytes)
	}
	return nil, fmt.Errorf("%w: %q (supported types: rsa, ec)", ErrUnsupportedKeyType, keyType)
}

// ParseRSAPrivateKey decodes a PKCS#1 RSA private key. A single layer
// of PKCS#8 wrapping is detected and unwrapped after verifying the RSA
// algorithm identifier.
func ParseRSAPrivateKey(derBytes []byte) (*RSAPrivateKeySpec, error) {
	fields, err := openSequence(derBytes)
	if err != nil {
		return nil, err
	}

	// Version field, present in both PKCS#1 and PKCS#8.
	if _, err := fields.Read(); err != nil {
		return nil, err
	}

	next, err := fields.Read()
	if err != nil {
		return nil, err
	}
	if next.Type == der.TypeSequence {
		// PKCS#8 wrapping: an AlgorithmIdentifier followed by an OCTET
		// STRING holding the actual PKCS#1 structure.
		if err := expectAlgorithm(next, OIDRSAEncryption); err != nil {
			return nil, err
		}
		payload, err := fields.Read()
		if err != nil {
			return nil, err
		}
		if payload.Type != der.TypeOctetString {
			return nil, fmt.Errorf("%w: expected octet string with PKCS#1 key data", ErrInvalidKeySpec)
		}
		return ParseRSAPrivateKey(payload.Value)
	}

	spec := &RSAPrivateKeySpec{}
	if spec.N, err = next.Integer(); err != nil {
		return nil, err
	}
	remaining := []**big.Int{&spec.E, &spec.D, &spec.P, &spec.Q, &spec.Dp, &spec.Dq, &spec.Qinv}
	for _, field := range remaining {
		if *field, err = readInteger(fields); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// ParseRSAPublicKey decodes an RSA public key, either as a bare PKCS#1
// modulus/exponent sequence or wrapped in an X.509
// SubjectPublicKeyInfo structure.
func ParseRSAPublicKey(derBytes []byte) (*RSAPublicKeySpec, error) {
	fields, err := openSequence(derBytes)
	if err != nil {
		return nil, err
	}

	first, err := fields.Read()
	if err != nil {
		return nil, err
	}
	if first.Type == der.TypeSequence {
		// SubjectPublicKeyInfo: AlgorithmIdentifier followed by a BIT
		// STRING whose content is the PKCS#1 sequence.
		if err := expectAlgorithm(first, OIDRSAEncryption); err != nil {
			return nil, err
		}
		bits, err := fields.Read()
		if err != nil {
			return nil, err
		}
		if bits.Type != der.TypeBitString {
			return nil, fmt.Errorf("%w: expected bit string with PKCS#1 key data", ErrInvalidKeySpec)
		}
		return ParseRSAPublicKey(bits.Value)
	}

	spec := &RSAPublicKeySpec{}
	if spec.N, err = first.Integer(); err != nil {
		return nil, err
	}
	if spec.E, err = readInteger(fields); err != nil {
		return nil, err
	}
	return spec, nil
}

// ParseECPrivateKey decodes a SEC1 ECPrivateKey, either bare (with the
// named curve in a context-tagged parameters field) or wrapped in a
// PKCS#8 structure carrying the curve OID in its AlgorithmIdentifier.
func ParseECPrivateKey(derBytes []byte) (*ECPrivateKeySpec, error) {
	fields, err := openSequence(derBytes)
	if err != nil {
		return nil, err
	}

	// Version field.
	if _, err := fields.Read(); err != nil {
		return nil, err
	}

	next, err := fields.Read()
	if err != nil {
		return nil, err
	}
	if next.Type == der.TypeSequence {
		// PKCS#8 wrapping: the AlgorithmIdentifier carries the EC
		// public key OID and the named curve OID as its parameters.
		alg, err := next.NestedParser()
		if err != nil {
			return nil, err
		}
		oid, err := readOID(alg)
		if err != nil {
			return nil, err
		}
		if oid != OIDECPublicKey {
			return nil, fmt.Errorf("%w: unexpected algorithm OID %s (want %s)", ErrInvalidKeySpec, oid, OIDECPublicKey)
		}
		curveOID, err := readOID(alg)
		if err != nil {
			return nil, err
		}
		curve, err := CurveByOID(curveOID)
		if err != nil {
			return nil, err
		}

		payload, err := fields.Read()
		if err != nil {
			return nil, err
		}
		if payload.Type != der.TypeOctetString {
			return nil, fmt.Errorf("%w: expected octet string with SEC1 key data", ErrInvalidKeySpec)
		}
		scalar, err := readSEC1Scalar(payload.Value)
		if err != nil {
			return nil, err
		}
		return &ECPrivateKeySpec{D: scalar, Curve: curve}, nil
	}

	// Bare SEC1: private key octets follow the version directly.
	if next.Type != der.TypeOctetString {
		return nil, fmt.Errorf("%w: expected octet string with private key", ErrInvalidKeySpec)
	}
	scalar := new(big.Int).SetBytes(next.Value)

	// The named curve hides in a context-tagged [0] parameters field.
	var curve *CurveParams
	for fields.More() {
		obj, err := fields.Read()
		if err != nil {
			return nil, err
		}
		if obj.Class() != der.ClassContextSpecific || obj.TagNumber != 0 {
			continue
		}
		nested, err := obj.NestedParser()
		if err != nil {
			return nil, err
		}
		curveOID, err := readOID(nested)
		if err != nil {
			return nil, err
		}
		if curve, err = CurveByOID(curveOID); err != nil {
			return nil, err
		}
	}
	if curve == nil {
		return nil, fmt.Errorf("%w: missing curve parameters", ErrInvalidKeySpec)
	}
	return &ECPrivateKeySpec{D: scalar, Curve: curve}, nil
}

// readSEC1Scalar extracts the private scalar from a SEC1 ECPrivateKey
// structure whose curve is already known from an outer wrapper.
func readSEC1Scalar(derBytes []byte) (*big.Int, error) {
	fields, err := openSequence(derBytes)
	if err != nil {
		return nil, err
	}
	if _, err := fields.Read(); err != nil { // version
		return nil, err
	}
	keyObj, err := fields.Read()
	if err != nil {
		return nil, err
	}
	if keyObj.Type != der.TypeOctetString {
		return nil, fmt.Errorf("%w: expected octet string with private key", ErrInvalidKeySpec)
	}
	return new(big.Int).SetBytes(keyObj.Value), nil
}

// openSequence reads the outer SEQUENCE of a DER structure and returns
// a parser over its fields.
func openSequence(derBytes []byte) (*der.Parser, error) {
	seq, err := der.NewParser(derBytes).Read()
	if err != nil {
		return nil, err
	}
	if seq.Type != der.TypeSequence {
		return nil, fmt.Errorf("%w: not a sequence", ErrInvalidKeySpec)
	}
	return seq.NestedParser()
}

// expectAlgorithm verifies that the first element of an
// AlgorithmIdentifier sequence is the given OID.
func expectAlgorithm(seq *der.Object, want string) error {
	alg, err := seq.NestedParser()
	if err != nil {
		return err
	}
	oid, err := readOID(alg)
	if err != nil {
		return err
	}
	if oid != want {
		return fmt.Errorf("%w: unexpected algorithm OID %s (want %s)", ErrInvalidKeySpec, oid, want)
	}
	return nil
}

func readOID(parser *der.Parser) (string, error) {
	obj, err := parser.Read()
	if err != nil {
		return "", err
	}
	return obj.ObjectIdentifier()
}

func readInteger(parser *der.Parser) (*big.Int, error) {
	obj, err := parser.Read()
	if err != nil {
		return nil, err
	}
	return obj.Integer()
}
