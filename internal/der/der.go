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

// Package der implements a minimal BER/DER tag-length-value decoder.
// It parses one ASN.1 object at a time from a byte slice and exposes
// typed accessors for the universal types needed to take apart
// certificate and private key structures (INTEGER, BIT STRING, OBJECT
// IDENTIFIER and the various string types).
package der

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"unicode/utf16"
)

var (
	ErrInvalidDER     = errors.New("invalid DER data")
	ErrUnexpectedType = errors.New("unexpected ASN.1 type")
)

// Universal ASN.1 type numbers (the low five bits of the tag octet).
const (
	TypeInteger          = 0x02
	TypeBitString        = 0x03
	TypeOctetString      = 0x04
	TypeNull             = 0x05
	TypeObjectIdentifier = 0x06
	TypeUTF8String       = 0x0c
	TypeSequence         = 0x10
	TypeSet              = 0x11
	TypeNumericString    = 0x12
	TypePrintableString  = 0x13
	TypeTeletexString    = 0x14
	TypeVideotexString   = 0x15
	TypeIA5String        = 0x16
	TypeGraphicString    = 0x19
	TypeVisibleString    = 0x1a
	TypeGeneralString    = 0x1b
	TypeUniversalString  = 0x1c
	TypeBMPString        = 0x1e
)

// Tag class values, as returned by Object.Class.
const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContextSpecific = 0x80
	ClassPrivate         = 0xc0
)

const (
	classMask       = 0xc0
	constructedMask = 0x20
	typeMask        = 0x1f
	highTagNumber   = 0x1f

	// Past this value, accumulating another base-128 group into an int64
	// would overflow, so OID decoding switches to big.Int arithmetic.
	oidOverflowThreshold = (math.MaxInt64 >> 7) - 0x7f
)

// Object is a single decoded TLV unit. Length always equals len(Value);
// for BIT STRING objects the leading pad-count octet has already been
// stripped from Value.
type Object struct {
	// Tag is the raw first octet, with class and constructed bits intact.
	Tag byte
	// TagNumber is the resolved tag number, supporting the
	// high-tag-number form.
	TagNumber int
	// Type is the low five bits of the tag octet.
	Type int
	// Length of the content octets.
	Length int
	// Value holds the raw content octets.
	Value []byte
}

// Constructed reports whether the object is constructed (bit 0x20 set).
func (o *Object) Constructed() bool {
	return o.Tag&constructedMask != 0
}

// Class returns the tag class bits of the object.
func (o *Object) Class() int {
	return int(o.Tag & classMask)
}

// NestedParser returns a parser over the object's content octets. It is
// only valid for constructed objects.
func (o *Object) NestedParser() (*Parser, error) {
	if !o.Constructed() {
		return nil, fmt.Errorf("%w: cannot create nested parser on a primitive object", ErrUnexpectedType)
	}
	return NewParser(o.Value), nil
}

// Integer interprets the content octets as a signed, big-endian
// two's-complement integer.
func (o *Object) Integer() (*big.Int, error) {
	if o.Type != TypeInteger {
		return nil, fmt.Errorf("%w: object is not an integer (type 0x%02x)", ErrUnexpectedType, o.Type)
	}
	n := new(big.Int).SetBytes(o.Value)
	if len(o.Value) > 0 && o.Value[0]&0x80 != 0 {
		shift := new(big.Int).Lsh(big.NewInt(1), uint(len(o.Value))*8)
		n.Sub(n, shift)
	}
	return n, nil
}

// String decodes the content octets using the character encoding
// implied by the object's type. Object identifiers decode to their
// dotted representation.
func (o *Object) String() (string, error) {
	switch o.Type {
	case TypeNumericString, TypePrintableString, TypeVideotexString,
		TypeIA5String, TypeGraphicString, TypeVisibleString, TypeGeneralString:
		// Single-byte types map directly to Latin-1 code points.
		runes := make([]rune, len(o.Value))
		for i, b := range o.Value {
			runes[i] = rune(b)
		}
		return string(runes), nil
	case TypeUTF8String:
		return string(o.Value), nil
	case TypeBMPString:
		if len(o.Value)%2 != 0 {
			return "", fmt.Errorf("%w: BMPString with odd byte count", ErrInvalidDER)
		}
		units := make([]uint16, len(o.Value)/2)
		for i := range units {
			units[i] = uint16(o.Value[2*i])<<8 | uint16(o.Value[2*i+1])
		}
		return string(utf16.Decode(units)), nil
	case TypeObjectIdentifier:
		return o.ObjectIdentifier()
	}
	return "", fmt.Errorf("%w: object is not a string (type 0x%02x)", ErrUnexpectedType, o.Type)
}

// ObjectIdentifier decodes the content octets as a dotted object
// identifier per X.690 section 8.19, with the first two arcs packed
// into the leading sub-identifier.
func (o *Object) ObjectIdentifier() (string, error) {
	if o.Type != TypeObjectIdentifier {
		return "", fmt.Errorf("%w: object is not an object identifier (type 0x%02x)", ErrUnexpectedType, o.Type)
	}
	if len(o.Value) == 0 {
		return "", fmt.Errorf("%w: empty object identifier", ErrInvalidDER)
	}

	var sb strings.Builder
	var acc int64
	var accBig *big.Int
	first := true
	pending := false

	for _, b := range o.Value {
		group := int64(b & 0x7f)
		if accBig == nil && acc > oidOverflowThreshold {
			accBig = big.NewInt(acc)
		}
		if accBig != nil {
			accBig.Lsh(accBig, 7)
			accBig.Or(accBig, big.NewInt(group))
		} else {
			acc = acc<<7 | group
		}
		if b&0x80 != 0 {
			pending = true
			continue
		}
		pending = false

		if first {
			writeFirstComponents(&sb, acc, accBig)
			first = false
		} else {
			sb.WriteByte('.')
			if accBig != nil {
				sb.WriteString(accBig.String())
			} else {
				sb.WriteString(fmt.Sprintf("%d", acc))
			}
		}
		acc, accBig = 0, nil
	}
	if pending {
		return "", fmt.Errorf("%w: truncated object identifier component", ErrInvalidDER)
	}
	return sb.String(), nil
}

// writeFirstComponents splits the leading sub-identifier into the first
// two arcs: value<40 is arc 0, value<80 is arc 1, anything else arc 2.
func writeFirstComponents(sb *strings.Builder, acc int64, accBig *big.Int) {
	if accBig != nil {
		// Anything needing big arithmetic is far past 80, so it is
		// always on the 2.x arc.
		sb.WriteString("2.")
		sb.WriteString(new(big.Int).Sub(accBig, big.NewInt(80)).String())
		return
	}
	switch {
	case acc < 40:
		fmt.Fprintf(sb, "0.%d", acc)
	case acc < 80:
		fmt.Fprintf(sb, "1.%d", acc-40)
	default:
		fmt.Fprintf(sb, "2.%d", acc-80)
	}
}

// Parser is a cursor over a DER byte stream. Each call to Read consumes
// exactly one TLV and advances the cursor past it. A Parser must not be
// shared across goroutines.
type Parser struct {
	buf []byte
	pos int
}

// NewParser returns a parser positioned at the start of buf.
func NewParser(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// More reports whether unread bytes remain.
func (p *Parser) More() bool {
	return p.pos < len(p.buf)
}

// Remaining returns the number of unread bytes.
func (p *Parser) Remaining() int {
	return len(p.buf) - p.pos
}

func (p *Parser) readByte(what string) (byte, error) {
	if p.pos >= len(p.buf) {
		return 0, fmt.Errorf("%w: missing %s (unexpected end of stream)", ErrInvalidDER, what)
	}
	b := p.buf[p.pos]
	p.pos++
	return b, nil
}

// Read consumes one TLV from the current position.
func (p *Parser) Read() (*Object, error) {
	tag, err := p.readByte("tag")
	if err != nil {
		return nil, err
	}

	tagNumber := int(tag & typeMask)
	if tagNumber == highTagNumber {
		tagNumber, err = p.readHighTagNumber()
		if err != nil {
			return nil, err
		}
	}

	length, err := p.readLength()
	if err != nil {
		return nil, err
	}
	if length > uint64(p.Remaining()) {
		return nil, fmt.Errorf("%w: value truncated (want %d bytes, have %d)", ErrInvalidDER, length, p.Remaining())
	}

	value := p.buf[p.pos : p.pos+int(length)]
	p.pos += int(length)

	obj := &Object{
		Tag:       tag,
		TagNumber: tagNumber,
		Type:      int(tag & typeMask),
		Length:    int(length),
		Value:     value,
	}

	// The first content octet of a BIT STRING is the unused-bits pad
	// count and is not part of the payload.
	if tag == TypeBitString && obj.Length > 0 {
		obj.Value = obj.Value[1:]
		obj.Length--
	}

	return obj, nil
}

// readHighTagNumber decodes a base-128 continuation sequence following
// a tag octet whose low five bits are all set.
func (p *Parser) readHighTagNumber() (int, error) {
	n := 0
	for i := 0; ; i++ {
		b, err := p.readByte("high tag number octet")
		if err != nil {
			return 0, err
		}
		if i == 0 && b&0x7f == 0 {
			return 0, fmt.Errorf("%w: malformed high tag number (leading zero octet)", ErrInvalidDER)
		}
		if i >= 4 {
			return 0, fmt.Errorf("%w: high tag number too large", ErrInvalidDER)
		}
		n = n<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			return n, nil
		}
	}
}

// readLength decodes a short-form or long-form length field. Long-form
// lengths are limited to four octets.
func (p *Parser) readLength() (uint64, error) {
	b, err := p.readByte("length")
	if err != nil {
		return 0, err
	}
	if b&0x80 == 0 {
		return uint64(b), nil
	}
	if b == 0xff {
		return 0, fmt.Errorf("%w: invalid length marker 0xff", ErrInvalidDER)
	}
	count := int(b & 0x7f)
	if count > 4 {
		return 0, fmt.Errorf("%w: length field too large (%d octets)", ErrInvalidDER, count)
	}
	var length uint64
	for i := 0; i < count; i++ {
		b, err := p.readByte("length octet")
		if err != nil {
			return 0, err
		}
		length = length<<8 | uint64(b)
	}
	return length, nil
}
