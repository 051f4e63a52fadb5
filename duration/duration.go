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

// Package duration parses and formats Go-style duration strings as
// used for Vault TTL fields, extending the stdlib unit set with days
// and weeks.
package duration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration")

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var (
	verifyPattern = regexp.MustCompile(`(?i)^([0-9]+(ns|us|ms|s|m|h|d|w))+$`)
	termPattern   = regexp.MustCompile(`(?i)([0-9]+)(ns|us|ms|s|m|h|d|w)`)
)

var units = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  Day,
	"w":  Week,
}

// Parse reads a duration as one or more concatenated unit terms
// (e.g. "1h30m", "2w", "500ms"). Unit suffixes are case-insensitive.
// "0" parses to a zero duration; empty or blank input reports an
// absent duration (zero value, present == false) without error.
func Parse(s string) (d time.Duration, present bool, err error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false, nil
	}
	if trimmed == "0" {
		return 0, true, nil
	}
	if !verifyPattern.MatchString(trimmed) {
		return 0, false, fmt.Errorf("%w: cannot parse %q into a duration", ErrInvalidDuration, s)
	}

	var total time.Duration
	for _, term := range termPattern.FindAllStringSubmatch(trimmed, -1) {
		n, err := strconv.ParseInt(term[1], 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: cannot parse %q into a duration", ErrInvalidDuration, s)
		}
		total += time.Duration(n) * units[strings.ToLower(term[2])]
	}
	return total, true, nil
}

// Format renders a duration as concatenated unit terms, largest unit
// first, such that Parse(Format(d)) == d. The zero duration formats
// as "0".
func Format(d time.Duration) string {
	if d == 0 {
		return "0"
	}

	var sb strings.Builder
	emit := func(unit time.Duration, suffix string) {
		if n := d / unit; n > 0 {
			sb.WriteString(strconv.FormatInt(int64(n), 10))
			sb.WriteString(suffix)
			d -= n * unit
		}
	}
	emit(Week, "w")
	emit(Day, "d")
	emit(time.Hour, "h")
	emit(time.Minute, "m")
	emit(time.Second, "s")
	emit(time.Millisecond, "ms")
	emit(time.Microsecond, "us")
	emit(time.Nanosecond, "ns")
	return sb.String()
}
