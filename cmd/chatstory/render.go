package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/chat-story/pkg/progression"
	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/jwebster45206/chat-story/pkg/tutorial"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	receivedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("237")).
			Padding(0, 1)

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("39")). // teal
			Padding(0, 1)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	unreadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Bold(true)

	nextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var titleCaser = cases.Title(language.English)

func chatName(c script.Chat) string {
	return titleCaser.String(c.Name)
}

// renderProgress draws a bar like "████░░░░ 42%".
func renderProgress(percent, width int) string {
	if width < 10 {
		width = 10
	} else if width > 40 {
		width = 40
	}
	filled := percent * width / 100

	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String()) + fmt.Sprintf(" %d%%", percent)
}

// renderChatRow is one line of the chat list.
func renderChatRow(s progression.ChatSummary, selected bool, width int) string {
	name := chatName(s.Chat)
	if selected {
		name = selectedRowStyle.Render("▶ " + name)
	} else {
		name = "  " + speakerStyle.Render(name)
	}
	if s.Unread {
		name += " " + unreadStyle.Render("●")
	}
	if s.Next {
		name += nextStyle.Render("  ← next")
	}

	preview := promptStyle.Render("No messages yet")
	if s.Last != nil {
		text := s.Last.Author + ": " + s.Last.Text
		if s.Last.Timestamp != nil {
			text = s.Last.Timestamp.Time + "  " + text
		}
		if width > 8 {
			text = truncate.StringWithTail(text, uint(width-4), "…")
		}
		preview = promptStyle.Render(text)
	}
	return name + "\n    " + preview
}

func hintText(h tutorial.Hint) string {
	switch h.Step {
	case tutorial.StepOpenChat:
		if h.HasTarget {
			return fmt.Sprintf("Tip: open %s to read your new messages (↑/↓ then enter)", titleCaser.String(h.ChatName))
		}
		return "Tip: pick a chat with ↑/↓ and press enter"
	case tutorial.StepContinue:
		return "Tip: press enter to continue the conversation"
	default:
		return ""
	}
}

func isSent(it progression.Item, player string) bool {
	return it.Echo || it.Message.Author == player
}

// renderConversation lays out an open chat for the viewport.
func renderConversation(v progression.View, player string, width int, typing string, spin string) string {
	if width < 20 {
		width = 20
	}
	bubbleWidth := width * 2 / 3

	var content strings.Builder
	content.WriteString(titleStyle.Render(chatName(v.Chat)))
	if len(v.Chat.Members) > 0 {
		content.WriteString(promptStyle.Render("  " + strings.Join(v.Chat.Members, ", ")))
	}
	content.WriteString("\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	if v.Empty() {
		content.WriteString(promptStyle.Render("No messages yet") + "\n")
		return content.String()
	}

	lastDate := ""
	for _, it := range v.Items {
		msg := it.Message
		if msg.Timestamp != nil && msg.Timestamp.Date != lastDate {
			lastDate = msg.Timestamp.Date
			divider := separatorStyle.Render("── " + lastDate + " ──")
			content.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider) + "\n\n")
		}

		text := wordwrap.String(msg.Text, bubbleWidth-2)
		if isSent(it, player) {
			bubble := sentStyle.Render(text)
			if msg.Timestamp != nil {
				bubble = lipgloss.JoinVertical(lipgloss.Right, bubble, timeStyle.Render(msg.Timestamp.Time))
			}
			content.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble) + "\n\n")
			continue
		}

		header := speakerStyle.Render(msg.Author)
		if msg.Timestamp != nil {
			header += " " + timeStyle.Render(msg.Timestamp.Time)
		}
		content.WriteString(header + "\n" + receivedStyle.Render(text) + "\n\n")
	}

	if typing != "" {
		content.WriteString(loadingStyle.Render(spin+" "+typing+" is typing…") + "\n")
		return content.String()
	}

	switch v.Pending.Kind {
	case progression.PendingContinue:
		content.WriteString(promptStyle.Render("[enter] continue") + "\n")
	case progression.PendingChoices:
		for i, c := range v.Pending.Prompt.Choices {
			if i >= 9 {
				break
			}
			content.WriteString(choiceStyle.Render(fmt.Sprintf("%d. %s", i+1, wordwrap.String(c.Text, width-4))) + "\n")
		}
		content.WriteString("\n" + promptStyle.Render("Press a number to reply") + "\n")
	}
	return content.String()
}

// transcript is the plain-text form of a chat for the clipboard.
func transcript(v progression.View, player string) string {
	var out strings.Builder
	out.WriteString(v.Chat.Name + "\n")

	lastDate := ""
	for _, it := range v.Items {
		msg := it.Message
		if msg.Timestamp != nil && msg.Timestamp.Date != lastDate {
			lastDate = msg.Timestamp.Date
			out.WriteString("\n-- " + lastDate + " --\n")
		}
		author := msg.Author
		if isSent(it, player) {
			author = player
		}
		if msg.Timestamp != nil {
			fmt.Fprintf(&out, "[%s] ", msg.Timestamp.Time)
		}
		fmt.Fprintf(&out, "%s: %s\n", author, msg.Text)
	}
	return out.String()
}
