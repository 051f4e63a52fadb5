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
	"crypto/elliptic"
	"fmt"
	"math/big"
)

// CurveParams describes a named elliptic curve over a prime field:
// y^2 = x^3 + ax + b mod p, with generator (Gx, Gy) of order N.
type CurveParams struct {
	Name     string
	OID      string
	P        *big.Int // field prime
	A        *big.Int // curve coefficient a
	B        *big.Int // curve coefficient b
	Gx       *big.Int // generator x
	Gy       *big.Int // generator y
	N        *big.Int // generator order
	Cofactor int

	curve elliptic.Curve
}

// Named curve OIDs per SEC2 and X9.62.
const (
	oidSecp224r1 = "1.3.132.0.33"
	oidSecp256r1 = "1.2.840.10045.3.1.7"
	oidSecp384r1 = "1.3.132.0.34"
	oidSecp521r1 = "1.3.132.0.35"
	oidSecp256k1 = "1.3.132.0.10"
)

var namedCurves = map[string]*CurveParams{}

func registerCurve(oid string, curve elliptic.Curve) {
	params := curve.Params()
	namedCurves[oid] = &CurveParams{
		Name: params.Name,
		OID:  oid,
		P:    params.P,
		// All registered curves use a = p - 3.
		A:        new(big.Int).Sub(params.P, big.NewInt(3)),
		B:        params.B,
		Gx:       params.Gx,
		Gy:       params.Gy,
		N:        params.N,
		Cofactor: 1,
		curve:    curve,
	}
}

func hexInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("keyspec: bad curve constant " + s)
	}
	return n
}

func init() {
	registerCurve(oidSecp224r1, elliptic.P224())
	registerCurve(oidSecp256r1, elliptic.P256())
	registerCurve(oidSecp384r1, elliptic.P384())
	registerCurve(oidSecp521r1, elliptic.P521())

	// secp256k1 has no stdlib implementation; its parameters resolve by
	// OID but materializing a key on it fails.
	namedCurves[oidSecp256k1] = &CurveParams{
		Name:     "secp256k1",
		OID:      oidSecp256k1,
		P:        hexInt("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f"),
		A:        big.NewInt(0),
		B:        big.NewInt(7),
		Gx:       hexInt("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"),
		Gy:       hexInt("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"),
		N:        hexInt("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"),
		Cofactor: 1,
	}
}

// CurveByOID resolves named curve parameters from a dotted OID.
func CurveByOID(oid string) (*CurveParams, error) {
	curve, ok := namedCurves[oid]
	if !ok {
		return nil, fmt.Errorf("%w: OID %s", ErrUnsupportedCurve, oid)
	}
	return curve, nil
}
