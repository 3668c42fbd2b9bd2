package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommand(t *testing.T) {
	for _, tc := range []struct {
		text    string
		command string
		arg     string
	}{
		{"/start", "/start", ""},
		{"/start@newsgram_bot", "/start", ""},
		{"/keyword_add exam", "/keyword_add", "exam"},
		{"/keyword_add@newsgram_bot exam", "/keyword_add", "exam"},
		{"/mute  @campus ", "/mute", "@campus"},
		{"plain text", "plain", "text"},
	} {
		command, arg := splitCommand(tc.text)
		assert.Equal(t, tc.command, command, "text %q", tc.text)
		assert.Equal(t, tc.arg, arg, "text %q", tc.text)
	}
}
