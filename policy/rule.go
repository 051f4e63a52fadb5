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
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRule = errors.New("invalid policy rule")

// Parameter is a named parameter constraint. An empty Values list on an
// allowed parameter means the parameter may only appear without a
// specific value; an empty list on a denied parameter denies it
// regardless of value.
type Parameter struct {
	Name   string
	Values []string
}

// Rule grants a set of capabilities on a single path, optionally
// constrained by wrapping TTL bounds and parameter allow/deny lists.
// Rules are built once via RuleBuilder and never mutated.
type Rule struct {
	path              string
	capabilities      []Capability
	minWrappingTTL    time.Duration
	maxWrappingTTL    time.Duration
	hasMinWrappingTTL bool
	hasMaxWrappingTTL bool
	allowedParameters []Parameter
	deniedParameters  []Parameter
}

// Path returns the path the rule applies to.
func (r *Rule) Path() string {
	return r.path
}

// Capabilities returns the rule's capabilities in insertion order.
func (r *Rule) Capabilities() []Capability {
	out := make([]Capability, len(r.capabilities))
	copy(out, r.capabilities)
	return out
}

// HasCapability reports whether the rule grants the capability.
func (r *Rule) HasCapability(c Capability) bool {
	for _, have := range r.capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// MinWrappingTTL returns the minimum wrapping TTL bound, if set.
func (r *Rule) MinWrappingTTL() (time.Duration, bool) {
	return r.minWrappingTTL, r.hasMinWrappingTTL
}

// MaxWrappingTTL returns the maximum wrapping TTL bound, if set.
func (r *Rule) MaxWrappingTTL() (time.Duration, bool) {
	return r.maxWrappingTTL, r.hasMaxWrappingTTL
}

// AllowedParameters returns the allowed parameter constraints in
// insertion order.
func (r *Rule) AllowedParameters() []Parameter {
	return copyParameters(r.allowedParameters)
}

// DeniedParameters returns the denied parameter constraints in
// insertion order.
func (r *Rule) DeniedParameters() []Parameter {
	return copyParameters(r.deniedParameters)
}

func copyParameters(params []Parameter) []Parameter {
	out := make([]Parameter, len(params))
	for i, p := range params {
		out[i] = Parameter{Name: p.Name, Values: append([]string(nil), p.Values...)}
	}
	return out
}

// withPath copies the rule onto a different path. Used by the policy
// decoder, where the path is the enclosing JSON key rather than a rule
// body field.
func (r *Rule) withPath(path string) *Rule {
	clone := *r
	clone.path = path
	return &clone
}

// RuleBuilder accumulates the parts of a Rule. Errors from individual
// calls are deferred and reported by Build.
type RuleBuilder struct {
	rule Rule
	err  error
}

// NewRule starts building a rule for the given path.
func NewRule(path string) *RuleBuilder {
	return &RuleBuilder{rule: Rule{path: strings.TrimSpace(path)}}
}

// Capability adds a capability, keeping the first occurrence's
// position on duplicates.
func (b *RuleBuilder) Capability(c Capability) *RuleBuilder {
	if !b.rule.HasCapability(c) {
		b.rule.capabilities = append(b.rule.capabilities, c)
	}
	return b
}

// CapabilityName resolves a capability name against the builtin
// vocabulary and adds it. An unresolvable name fails the build.
func (b *RuleBuilder) CapabilityName(name string) *RuleBuilder {
	c, err := FindCapability(name)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	return b.Capability(c)
}

// MinWrappingTTL sets the minimum wrapping TTL bound.
func (b *RuleBuilder) MinWrappingTTL(d time.Duration) *RuleBuilder {
	b.rule.minWrappingTTL = d
	b.rule.hasMinWrappingTTL = true
	return b
}

// MaxWrappingTTL sets the maximum wrapping TTL bound.
func (b *RuleBuilder) MaxWrappingTTL(d time.Duration) *RuleBuilder {
	b.rule.maxWrappingTTL = d
	b.rule.hasMaxWrappingTTL = true
	return b
}

// AllowedParameter adds an allowed parameter constraint. Repeating a
// name replaces the previously configured values.
func (b *RuleBuilder) AllowedParameter(name string, values ...string) *RuleBuilder {
	b.rule.allowedParameters = setParameter(b.rule.allowedParameters, name, values)
	return b
}

// DeniedParameter adds a denied parameter constraint. Repeating a name
// replaces the previously configured values.
func (b *RuleBuilder) DeniedParameter(name string, values ...string) *RuleBuilder {
	b.rule.deniedParameters = setParameter(b.rule.deniedParameters, name, values)
	return b
}

func setParameter(params []Parameter, name string, values []string) []Parameter {
	// Always a non-nil list, so empty survives a JSON round trip.
	copied := make([]string, len(values))
	copy(copied, values)
	entry := Parameter{Name: name, Values: copied}
	for i, p := range params {
		if p.Name == name {
			params[i] = entry
			return params
		}
	}
	return append(params, entry)
}

// Build finalizes the rule. A rule needs a non-empty path and at least
// one capability.
func (b *RuleBuilder) Build() (*Rule, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.rule.path == "" {
		return nil, fmt.Errorf("%w: path must not be empty", ErrInvalidRule)
	}
	if len(b.rule.capabilities) == 0 {
		return nil, fmt.Errorf("%w: at least one capability is required", ErrInvalidRule)
	}
	rule := b.rule
	return &rule, nil
}
