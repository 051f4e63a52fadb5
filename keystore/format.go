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

// Package keystore assembles decoded key material and X.509
// certificates into alias-keyed entries that can be exported as
// PKCS#12 bundles. It also detects how certificate and key content is
// encoded (raw base64 DER, a single PEM block, or a PEM bundle) and
// provides the certificate/private key parsing entry points built on
// that detection.
package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vaultkit/vaultkit/pemutil"
)

var ErrUnknownFormat = errors.New("unknown format")

// Format describes how certificate or key content is encoded.
type Format int

const (
	FormatUnknown Format = iota
	FormatDER
	FormatPEM
	FormatPEMBundle
)

func (f Format) String() string {
	switch f {
	case FormatDER:
		return "DER"
	case FormatPEM:
		return "PEM"
	case FormatPEMBundle:
		return "PEM bundle"
	}
	return "unknown"
}

// DetectFormat classifies content as base64 DER, a single PEM block or
// a bundle of multiple PEM blocks. Empty content yields FormatUnknown
// without error; content matching neither heuristic fails.
func DetectFormat(content string) (Format, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return FormatUnknown, nil
	}
	if pemutil.IsPEMEncoded(content) {
		if pemutil.BlockCount(content) > 1 {
			return FormatPEMBundle, nil
		}
		return FormatPEM, nil
	}
	if _, err := decodeBase64(trimmed); err == nil {
		return FormatDER, nil
	}
	return FormatUnknown, fmt.Errorf("%w: content is neither DER nor PEM encoded", ErrUnknownFormat)
}

// decodeBase64 decodes a base64 string, tolerating embedded whitespace.
func decodeBase64(content string) ([]byte, error) {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, content)
	return base64.StdEncoding.DecodeString(stripped)
}
