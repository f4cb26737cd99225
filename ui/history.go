package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/talkbox/internal/chat"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
)

// historyView lists a conversation oldest first with relative timestamps.
func historyView(st styles, name string, messages []chat.Message, width int, now time.Time) string {
	if len(messages) == 0 {
		return st.subtle.Render(fmt.Sprintf("No conversation with %s yet.", name))
	}

	var b strings.Builder
	for i, msg := range messages {
		speaker := name
		if msg.Role == chat.RoleUser {
			speaker = "You"
		}
		when := humanize.RelTime(msg.Time, now, "ago", "from now")
		fmt.Fprintf(&b, "%s %s\n", st.personality.Render(speaker), st.subtle.Render(when))
		b.WriteString(wordwrap.String(msg.Content, max(10, width-2)))
		if i+1 < len(messages) {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
