package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world this is long", 15, "hello world ..."},
		{"multi-byte runes kept whole", "héllo wörld", 8, "héllo..."},
		{"tiny max is raised", "abcdefgh", 1, "a..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "failed to create pod: quota exceeded", SingleLine("failed to create pod:\n  quota\texceeded\r\n"))
	assert.Equal(t, "", SingleLine(" \n "))
}
