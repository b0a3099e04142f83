package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Starting site demo...", "Starting site demo..."},
		{"sgr colour", "\x1b[32m✔\x1b[0m appserver ready", "✔ appserver ready"},
		{"cursor movement", "\x1b[2K\x1b[1Gpulling 45%", "pulling 45%"},
		{"osc title", "\x1b]0;lando\x07done", "done"},
		{"bell and backspace", "a\x07b\x08c", "abc"},
		{"tab kept", "name\tvalue", "name\tvalue"},
		{"del removed", "x\x7fy", "xy"},
		{"utf8 kept", "café ✓ 日本", "café ✓ 日本"},
		{"8-bit csi", "x\u009b31mred", "xred"},
		{"8-bit osc", "\u009d0;lando\u0007done", "done"},
		{"stray c1", "a\u0085b", "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"already clean",
		"\x1b[1;31mERROR\x1b[0m: boom",
		"mixed\x1b[0m\ttab\x01\x02 ünïcødé",
		"x\u009b31mred\u0090",
		"ünï\u0090code\u009c tail \u0085",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}
