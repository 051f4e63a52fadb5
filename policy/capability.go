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
)

var ErrUnknownCapability = errors.New("unknown capability")

// Capability names a single ACL permission on a path. The builtin
// vocabulary is closed, but the wire format is open: unrecognized
// capability strings decode as custom capabilities rather than failing.
type Capability string

const (
	CapabilityCreate Capability = "create"
	CapabilityRead   Capability = "read"
	CapabilityUpdate Capability = "update"
	CapabilityDelete Capability = "delete"
	CapabilityList   Capability = "list"
	CapabilitySudo   Capability = "sudo"
	CapabilityDeny   Capability = "deny"
)

// BuiltinCapabilities lists the closed builtin vocabulary.
var BuiltinCapabilities = []Capability{
	CapabilityCreate,
	CapabilityRead,
	CapabilityUpdate,
	CapabilityDelete,
	CapabilityList,
	CapabilitySudo,
	CapabilityDeny,
}

// FindCapability resolves a capability name against the builtin
// vocabulary, case-insensitively. Unknown names fail; use
// CustomCapability to carry a non-builtin value.
func FindCapability(name string) (Capability, error) {
	lowered := Capability(strings.ToLower(strings.TrimSpace(name)))
	for _, c := range BuiltinCapabilities {
		if c == lowered {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// CustomCapability wraps an arbitrary capability string without
// validating it against the builtin vocabulary.
func CustomCapability(name string) Capability {
	return Capability(name)
}

// IsBuiltin reports whether the capability belongs to the builtin
// vocabulary.
func (c Capability) IsBuiltin() bool {
	for _, b := range BuiltinCapabilities {
		if b == c {
			return true
		}
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}
