package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jwebster45206/chat-story/pkg/progression"
	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/jwebster45206/chat-story/pkg/tutorial"
)

type screen int

const (
	screenList screen = iota
	screenChat
)

// StoryUI is the BubbleTea model that runs the UI.
// Engine calls block on typing delays, so they always run inside tea.Cmds;
// Update only reads from the engine.
type StoryUI struct {
	engine *progression.Engine
	tut    *tutorial.Tutorial
	policy progression.Policy

	screen   screen
	chats    []progression.ChatSummary
	cursor   int
	open     script.ChatID
	view     progression.View
	typing   string
	notice   string
	progress int
	hint     tutorial.Hint

	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool
	started  bool
	busy     bool
	err      error

	showQuitModal bool
}

// Render stream and command results.
type (
	instructionMsg progression.Instruction
	hintMsg        tutorial.Hint
	noticeMsg      string

	initDoneMsg struct {
		res progression.InitResult
		err error
	}
	newGameMsg struct {
		res progression.InitResult
		err error
	}
	openedMsg struct {
		view progression.View
		err  error
	}
	opDoneMsg struct {
		chatID script.ChatID
		err    error
	}
	closedMsg struct{}
)

func NewStoryUI(engine *progression.Engine, tut *tutorial.Tutorial, policy progression.Policy) StoryUI {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	vp := viewport.New(50, 20)
	vp.MouseWheelEnabled = true

	return StoryUI{
		engine:   engine,
		tut:      tut,
		policy:   policy,
		viewport: vp,
		spinner:  sp,
		busy:     true,
	}
}

func (m StoryUI) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, initializeCmd(m.engine, m.tut))
}

func (m StoryUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width - 4
		m.viewport.Height = m.height - 6
		m.ready = true
		m.renderChat()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.typing != "" {
			m.renderChat()
		}
		return m, cmd

	case initDoneMsg:
		m.busy = false
		m.started = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.progress = msg.res.Progress
		m.refreshList()
		if msg.res.CurrentChat != nil {
			return m.openChat(*msg.res.CurrentChat)
		}
		if next, ok := m.engine.NextLocation(); ok {
			m.selectChat(next)
		}
		return m, nil

	case newGameMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.screen = screenList
		m.open = 0
		m.view = progression.View{}
		m.typing = ""
		m.progress = msg.res.Progress
		m.notice = "Started a new story"
		m.refreshList()
		m.cursor = 0
		return m, nil

	case openedMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = msg.err.Error()
			return m, nil
		}
		m.screen = screenChat
		m.open = msg.view.Chat.ID
		m.view = msg.view
		m.renderChat()
		m.viewport.GotoBottom()
		return m, nil

	case opDoneMsg:
		m.busy = false
		m.typing = ""
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		if m.screen == screenChat && m.open == msg.chatID {
			// Re-open so content that just arrived counts as read.
			return m.openChat(m.open)
		}
		m.refreshList()
		return m, nil

	case closedMsg:
		m.busy = false
		m.refreshList()
		return m, nil

	case instructionMsg:
		m.handleInstruction(progression.Instruction(msg))
		return m, nil

	case hintMsg:
		m.hint = tutorial.Hint(msg)
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case tea.KeyMsg:
		if m.err != nil {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.showQuitModal = true
			return m, nil
		}
		if m.screen == screenChat {
			return m.updateChat(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *StoryUI) handleInstruction(in progression.Instruction) {
	inOpenChat := m.screen == screenChat && in.ChatID == m.open

	switch in.Kind {
	case progression.KindTyping:
		if inOpenChat {
			m.typing = in.Author
			m.renderChat()
			m.viewport.GotoBottom()
		}
	case progression.KindMessageRevealed,
		progression.KindChoicesPresented,
		progression.KindChoiceRetracted,
		progression.KindContinueAvailable:
		if inOpenChat {
			m.typing = ""
			if v, ok := m.engine.View(m.open); ok {
				m.view = v
			}
			m.renderChat()
			m.viewport.GotoBottom()
		}
	case progression.KindChatTransition:
		if c, ok := m.engine.Script().Chat(in.ChatID); ok {
			m.notice = fmt.Sprintf("New message in %s", chatName(c))
		}
	case progression.KindChatListChanged:
		m.refreshList()
	case progression.KindProgressChanged:
		m.progress = in.Progress
	case progression.KindEndOfContent:
		if inOpenChat {
			m.notice = "That's all for now in this chat"
		}
	case progression.KindNotice:
		m.notice = in.Text
	}
}

func (m StoryUI) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.chats)-1 {
			m.cursor++
		}
	case "tab":
		if next, ok := m.engine.NextLocation(); ok {
			m.selectChat(next)
		}
	case "enter":
		if !m.busy && len(m.chats) > 0 {
			return m.openChat(m.chats[m.cursor].Chat.ID)
		}
	case "n":
		if !m.busy {
			m.busy = true
			m.notice = ""
			return m, newGameCmd(m.engine)
		}
	case "s":
		return m, saveCmd(m.engine)
	case "t":
		if m.tut.Active() {
			return m, skipTutorialCmd(m.tut)
		}
	}
	return m, nil
}

func (m StoryUI) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.screen = screenList
		m.typing = ""
		m.notice = ""
		m.refreshList()
		if !m.busy {
			m.busy = true
			return m, closeCmd(m.engine)
		}
		return m, nil

	case " ":
		m.engine.SkipTyping()
		return m, nil

	case "enter":
		if m.busy {
			m.engine.SkipTyping()
			return m, nil
		}
		m.busy = true
		m.notice = ""
		return m, continueCmd(m.engine, m.open)

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		p := m.view.Pending
		idx := int(msg.String()[0] - '1')
		if m.busy || p.Kind != progression.PendingChoices || idx >= len(p.Prompt.Choices) {
			return m, nil
		}
		m.busy = true
		m.notice = ""
		return m, selectCmd(m.engine, m.open, progression.ChoiceRef{PromptID: p.Prompt.ID, Index: idx})

	case "y":
		return m, copyCmd(transcript(m.view, m.policy.PlayerName))

	case "s":
		return m, saveCmd(m.engine)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m StoryUI) openChat(id script.ChatID) (tea.Model, tea.Cmd) {
	m.busy = true
	return m, openChatCmd(m.engine, id)
}

func (m *StoryUI) selectChat(id script.ChatID) {
	for i, s := range m.chats {
		if s.Chat.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m *StoryUI) refreshList() {
	m.chats = m.engine.ChatList()
	if m.cursor >= len(m.chats) {
		m.cursor = max(len(m.chats)-1, 0)
	}
}

func (m *StoryUI) renderChat() {
	if m.screen != screenChat {
		return
	}
	m.viewport.SetContent(renderConversation(m.view, m.policy.PlayerName, m.viewport.Width-2, m.typing, m.spinner.View()))
}

func (m StoryUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y", "q":
				return m, tea.Quit
			case "n", "N", "esc":
				m.showQuitModal = false
			}
		}
	}
	return m, nil
}

func (m StoryUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved after every message.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to keep reading"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m StoryUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.err != nil {
		return "\n  " + errorStyle.Render("Error: "+m.err.Error()) + "\n\n  " + promptStyle.Render("Press any key to exit")
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.started {
		return "\n  " + m.spinner.View() + " Loading story..."
	}

	var body string
	if m.screen == screenChat {
		body = m.viewport.View()
	} else {
		body = m.renderList()
	}

	var footer strings.Builder
	if h := hintText(m.hint); h != "" {
		footer.WriteString(nextStyle.Render(h) + "\n")
	}
	if m.notice != "" {
		footer.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.screen == screenChat {
		footer.WriteString(promptStyle.Render("enter continue • 1-9 reply • space skip • y copy • esc back • q quit"))
	} else {
		footer.WriteString(promptStyle.Render("↑/↓ select • enter open • tab next • n new game • s save • q quit"))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, body, "", footer.String()),
	)
}

func (m StoryUI) renderList() string {
	var content strings.Builder
	title := m.engine.Script().Title
	if title == "" {
		title = "Chat Story"
	}
	content.WriteString(titleStyle.Render(strings.ToUpper(title)))
	content.WriteString("  " + renderProgress(m.progress, m.width/3) + "\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(m.width-4, 10))) + "\n\n")

	for i, s := range m.chats {
		content.WriteString(renderChatRow(s, i == m.cursor, m.width-4) + "\n\n")
	}
	return content.String()
}

func initializeCmd(e *progression.Engine, tut *tutorial.Tutorial) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		res, err := e.Initialize(ctx)
		if err == nil {
			tut.Start(ctx)
		}
		return initDoneMsg{res, err}
	}
}

func newGameCmd(e *progression.Engine) tea.Cmd {
	return func() tea.Msg {
		res, err := e.NewGame(context.Background())
		return newGameMsg{res, err}
	}
}

func openChatCmd(e *progression.Engine, id script.ChatID) tea.Cmd {
	return func() tea.Msg {
		v, err := e.OpenChat(context.Background(), id)
		return openedMsg{v, err}
	}
}

func closeCmd(e *progression.Engine) tea.Cmd {
	return func() tea.Msg {
		e.CloseChat(context.Background())
		return closedMsg{}
	}
}

func continueCmd(e *progression.Engine, id script.ChatID) tea.Cmd {
	return func() tea.Msg {
		_, err := e.Continue(context.Background(), id)
		return opDoneMsg{id, err}
	}
}

func selectCmd(e *progression.Engine, id script.ChatID, ref progression.ChoiceRef) tea.Cmd {
	return func() tea.Msg {
		_, err := e.SelectChoice(context.Background(), ref)
		return opDoneMsg{id, err}
	}
}

func saveCmd(e *progression.Engine) tea.Cmd {
	return func() tea.Msg {
		if _, err := e.Save(context.Background()); err != nil {
			return noticeMsg("Failed to save progress")
		}
		return noticeMsg("Progress saved")
	}
}

func skipTutorialCmd(tut *tutorial.Tutorial) tea.Cmd {
	return func() tea.Msg {
		if err := tut.Skip(context.Background()); err != nil {
			return noticeMsg("Could not record tutorial completion")
		}
		return noticeMsg("Tutorial skipped")
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return noticeMsg("Clipboard unavailable: " + err.Error())
		}
		return noticeMsg("Conversation copied to clipboard")
	}
}
