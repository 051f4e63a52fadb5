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

package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"500ms", 500 * time.Millisecond},
		{"250us", 250 * time.Microsecond},
		{"10ns", 10 * time.Nanosecond},
		{"3d", 3 * Day},
		{"2w", 2 * Week},
		{"1w2d3h4m5s", Week + 2*Day + 3*time.Hour + 4*time.Minute + 5*time.Second},
		{"2H", 2 * time.Hour},
		{"1W", Week},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, present, err := Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, present)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestParseZero(t *testing.T) {
	d, present, err := Parse("0")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Zero(t, d)
}

func TestParseAbsent(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		d, present, err := Parse(in)
		require.NoError(t, err)
		assert.False(t, present)
		assert.Zero(t, d)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"abc", "12", "1x", "s", "1.5h", "-2m", "1h 30m"} {
		_, _, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidDuration, "input %q", in)
		assert.Contains(t, err.Error(), "cannot parse")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0"},
		{90 * time.Second, "1m30s"},
		{2 * time.Hour, "2h"},
		{Week + 2*Day, "1w2d"},
		{1500 * time.Millisecond, "1s500ms"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"90s", "2m", "3h", "1w", "1h30m", "0"} {
		want, present, err := Parse(in)
		require.NoError(t, err)
		require.True(t, present)

		got, present, err := Parse(Format(want))
		require.NoError(t, err)
		require.True(t, present)
		assert.Equal(t, want, got, "round trip of %q", in)
	}
}
