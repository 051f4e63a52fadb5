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

package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPolicyJSON = errors.New("invalid policy document")

// Wire shape: {"path": {"<path>": {rule body}, ...}} — the path is the
// JSON object key, not a rule body field. Marshaling is done by hand
// to keep rule and parameter order stable; encoding/json maps would
// reorder keys.

// MarshalJSON encodes the policy in the Vault sys/policy wire format.
func (p *Policy) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"path":{`)
	for i, rule := range p.rules {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(rule.path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeRuleBody(&buf, rule); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeRuleBody(buf *bytes.Buffer, rule *Rule) error {
	buf.WriteByte('{')

	buf.WriteString(`"capabilities":`)
	caps := make([]string, len(rule.capabilities))
	for i, c := range rule.capabilities {
		caps[i] = strings.ToLower(string(c))
	}
	encoded, err := json.Marshal(caps)
	if err != nil {
		return err
	}
	buf.Write(encoded)

	if rule.hasMinWrappingTTL {
		buf.WriteString(`,"min_wrapping_ttl":`)
		buf.WriteString(strconv.Quote(formatTTL(rule.minWrappingTTL)))
	}
	if rule.hasMaxWrappingTTL {
		buf.WriteString(`,"max_wrapping_ttl":`)
		buf.WriteString(strconv.Quote(formatTTL(rule.maxWrappingTTL)))
	}
	if err := writeParameters(buf, "allowed_parameters", rule.allowedParameters); err != nil {
		return err
	}
	if err := writeParameters(buf, "denied_parameters", rule.deniedParameters); err != nil {
		return err
	}

	buf.WriteByte('}')
	return nil
}

func writeParameters(buf *bytes.Buffer, field string, params []Parameter) error {
	if len(params) == 0 {
		return nil
	}
	buf.WriteString(`,"` + field + `":{`)
	for i, p := range params {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		values := p.Values
		if values == nil {
			values = []string{}
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON decodes the Vault sys/policy wire format, preserving
// rule and parameter order.
func (p *Policy) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	var rules []*Rule
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		if key != "path" {
			return fmt.Errorf("%w: unexpected top-level field %q", ErrInvalidPolicyJSON, key)
		}
		rules, err = decodeRules(dec)
		if err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	p.rules = nil
	for _, rule := range rules {
		p.rules = insertRule(p.rules, rule)
	}
	return nil
}

func decodeRules(dec *json.Decoder) ([]*Rule, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var rules []*Rule
	for dec.More() {
		path, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		rule, err := decodeRuleBody(dec)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", path, err)
		}
		rules = append(rules, rule.withPath(path))
	}
	return rules, expectDelim(dec, '}')
}

func decodeRuleBody(dec *json.Decoder) (*Rule, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	rule := &Rule{}
	for dec.More() {
		field, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		switch field {
		case "capabilities":
			var names []string
			if err := dec.Decode(&names); err != nil {
				return nil, err
			}
			for _, name := range names {
				// Open set at the wire level: unknown names pass
				// through as custom capabilities.
				c := Capability(name)
				if !rule.HasCapability(c) {
					rule.capabilities = append(rule.capabilities, c)
				}
			}
		case "min_wrapping_ttl":
			d, err := decodeTTL(dec)
			if err != nil {
				return nil, err
			}
			rule.minWrappingTTL = d
			rule.hasMinWrappingTTL = true
		case "max_wrapping_ttl":
			d, err := decodeTTL(dec)
			if err != nil {
				return nil, err
			}
			rule.maxWrappingTTL = d
			rule.hasMaxWrappingTTL = true
		case "allowed_parameters":
			params, err := decodeParameters(dec)
			if err != nil {
				return nil, err
			}
			rule.allowedParameters = params
		case "denied_parameters":
			params, err := decodeParameters(dec)
			if err != nil {
				return nil, err
			}
			rule.deniedParameters = params
		default:
			var skipped json.RawMessage
			if err := dec.Decode(&skipped); err != nil {
				return nil, err
			}
		}
	}
	return rule, expectDelim(dec, '}')
}

func decodeParameters(dec *json.Decoder) ([]Parameter, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var params []Parameter
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return nil, err
		}
		params = setParameter(params, name, values)
	}
	return params, expectDelim(dec, '}')
}

// TTLs travel as strings of bare seconds or with an s/m/h suffix.
var ttlPattern = regexp.MustCompile(`^([0-9]+)([smh]?)$`)

func formatTTL(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}

func decodeTTL(dec *json.Decoder) (time.Duration, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return 0, err
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		// Tolerate a bare JSON number of seconds.
		var seconds int64
		if err := json.Unmarshal(raw, &seconds); err != nil {
			return 0, fmt.Errorf("%w: unsupported duration value %s", ErrInvalidPolicyJSON, raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	m := ttlPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, fmt.Errorf("%w: unsupported duration value %q", ErrInvalidPolicyJSON, text)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unsupported duration value %q", ErrInvalidPolicyJSON, text)
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * time.Second, nil
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicyJSON, err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalidPolicyJSON, want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPolicyJSON, err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string key, got %v", ErrInvalidPolicyJSON, tok)
	}
	return s, nil
}
