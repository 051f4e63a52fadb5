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

// Package policy models Vault ACL policies: ordered sets of path rules
// carrying capability sets, wrapping TTL bounds and parameter
// allow/deny lists, with the JSON wire format Vault's sys/policy
// endpoints speak.
package policy

// Policy is an immutable, order-preserving set of rules, unique by
// path. Combining is copy-on-write via With; callers needing
// concurrency safety should rebuild and swap references.
type Policy struct {
	rules []*Rule
}

// NewPolicy builds a policy from the given rules. A later rule with a
// path already present replaces the earlier one in place.
func NewPolicy(rules ...*Rule) *Policy {
	p := &Policy{}
	for _, rule := range rules {
		p.rules = insertRule(p.rules, rule)
	}
	return p
}

func insertRule(rules []*Rule, rule *Rule) []*Rule {
	for i, existing := range rules {
		if existing.path == rule.path {
			out := make([]*Rule, len(rules))
			copy(out, rules)
			out[i] = rule
			return out
		}
	}
	return append(rules, rule)
}

// With returns a new policy containing the given rule. A rule whose
// path is already present replaces the old rule at its original
// position.
func (p *Policy) With(rule *Rule) *Policy {
	combined := make([]*Rule, len(p.rules))
	copy(combined, p.rules)
	return &Policy{rules: insertRule(combined, rule)}
}

// Rules returns the policy's rules in insertion order.
func (p *Policy) Rules() []*Rule {
	out := make([]*Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Rule returns the rule for the given path.
func (p *Policy) Rule(path string) (*Rule, bool) {
	for _, rule := range p.rules {
		if rule.path == path {
			return rule, true
		}
	}
	return nil, false
}

// Len returns the number of rules.
func (p *Policy) Len() int {
	return len(p.rules)
}
