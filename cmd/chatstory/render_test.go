package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chat-story/pkg/progression"
	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/jwebster45206/chat-story/pkg/tutorial"
)

func sampleView() progression.View {
	fri := &script.Timestamp{Date: "Fri, Jun 6", Time: "9:02 PM"}
	sat := &script.Timestamp{Date: "Sat, Jun 7", Time: "8:15 AM"}
	return progression.View{
		Chat: script.Chat{ID: 1, Name: "maya", Members: []string{"Maya"}},
		Items: []progression.Item{
			{Message: &script.Message{ID: 1, ChatID: 1, Author: "Maya", Text: "hey", Timestamp: fri}},
			{Message: &script.Message{ID: 2, ChatID: 1, Author: "Alana", Text: "I'm coming"}, Echo: true},
			{Message: &script.Message{ID: 3, ChatID: 1, Author: "Maya", Text: "morning!", Timestamp: sat}},
		},
		Pending: progression.Pending{Kind: progression.PendingContinue, NextID: 4},
	}
}

func TestTranscript(t *testing.T) {
	got := transcript(sampleView(), "Alana")

	want := strings.Join([]string{
		"maya",
		"",
		"-- Fri, Jun 6 --",
		"[9:02 PM] Maya: hey",
		"Alana: I'm coming",
		"",
		"-- Sat, Jun 7 --",
		"[8:15 AM] Maya: morning!",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderConversation(t *testing.T) {
	out := renderConversation(sampleView(), "Alana", 60, "", "")
	assert.Contains(t, out, "Maya")
	assert.Contains(t, out, "Fri, Jun 6")
	assert.Contains(t, out, "Sat, Jun 7")
	assert.Contains(t, out, "[enter] continue")

	typing := renderConversation(sampleView(), "Alana", 60, "Maya", "•")
	assert.Contains(t, typing, "Maya is typing")
	assert.NotContains(t, typing, "[enter] continue")

	empty := renderConversation(progression.View{Chat: script.Chat{ID: 3, Name: "dad"}}, "Alana", 60, "", "")
	assert.Contains(t, empty, "No messages yet")

	choices := sampleView()
	choices.Pending = progression.Pending{
		Kind:   progression.PendingChoices,
		Prompt: &script.PlayerChoice{ID: 4, ChatID: 1, Choices: []script.Choice{{Text: "Yes", NextID: 5}, {Text: "No", NextID: 6}}},
	}
	out = renderConversation(choices, "Alana", 60, "", "")
	assert.Contains(t, out, "1. Yes")
	assert.Contains(t, out, "2. No")
}

func TestHintText(t *testing.T) {
	assert.Contains(t, hintText(tutorial.Hint{Step: tutorial.StepOpenChat, HasTarget: true, ChatName: "party crew"}), "Party Crew")
	assert.Contains(t, hintText(tutorial.Hint{Step: tutorial.StepOpenChat}), "pick a chat")
	assert.Contains(t, hintText(tutorial.Hint{Step: tutorial.StepContinue}), "continue")
	assert.Empty(t, hintText(tutorial.Hint{Step: tutorial.StepDone}))
}

func TestRenderProgress(t *testing.T) {
	out := renderProgress(50, 20)
	assert.True(t, strings.HasSuffix(out, " 50%"))
	assert.Equal(t, 10, strings.Count(out, "█"))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
chats:
  - id: 1
    name: Sam
script:
  - id: 1
    type: message
    chatId: 1
    author: Sam
    text: hi
    timestamp: {date: "Mon", time: "9:00"}
`), 0o644))

	warn := filepath.Join(dir, "warn.json")
	require.NoError(t, os.WriteFile(warn, []byte(`{
		"chats": [{"id": 1, "name": "Sam"}],
		"script": [{"id": 1, "type": "message", "chatId": 1, "author": "Sam", "text": "hi", "nextId": 9}]
	}`), 0o644))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"chats": [], "script": []}`), 0o644))

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		output  string
	}{
		{"valid", []string{good}, false, "Script is valid: 1 events in 1 chats"},
		{"warnings pass", []string{warn}, false, "warning(s)"},
		{"warnings fail strict", []string{"--strict", warn}, true, "warning(s)"},
		{"invalid", []string{bad}, true, "Validating"},
		{"missing", []string{filepath.Join(dir, "nope.json")}, true, "Validating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := validateCmd()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.output)
		})
	}
}
