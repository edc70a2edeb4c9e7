package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a script file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const (
	TypeMessage      = "message"
	TypePlayerChoice = "playerChoice"
)

type rawFile struct {
	Title   string     `json:"title,omitempty" yaml:"title,omitempty"`
	EntryID *EventID   `json:"entryId,omitempty" yaml:"entryId,omitempty"`
	Chats   []Chat     `json:"chats" yaml:"chats"`
	Script  []rawEvent `json:"script" yaml:"script"`
}

type rawEvent struct {
	ID        EventID    `json:"id" yaml:"id"`
	Type      string     `json:"type" yaml:"type"`
	ChatID    ChatID     `json:"chatId" yaml:"chatId"`
	Author    string     `json:"author,omitempty" yaml:"author,omitempty"`
	Text      string     `json:"text,omitempty" yaml:"text,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	NextID    *EventID   `json:"nextId,omitempty" yaml:"nextId,omitempty"`
	Choices   []Choice   `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// FormatFromPath picks the script format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported script extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script and checks its structural invariants. Problems that
// only affect how far a branch can go are left to Lint.
func Parse(data []byte, format Format) (*Script, error) {
	var raw rawFile
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal json: %v", ErrInvalidScript, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal yaml: %v", ErrInvalidScript, err)
		}
	default:
		return nil, fmt.Errorf("unknown script format %q", format)
	}
	return build(raw)
}

func build(raw rawFile) (*Script, error) {
	if len(raw.Chats) == 0 {
		return nil, fmt.Errorf("%w: no chats defined", ErrInvalidScript)
	}
	if len(raw.Script) == 0 {
		return nil, fmt.Errorf("%w: no script events defined", ErrInvalidScript)
	}

	chats := make(map[ChatID]bool, len(raw.Chats))
	for _, c := range raw.Chats {
		if c.ID <= NoChat {
			return nil, fmt.Errorf("%w: chat id %d must be positive", ErrInvalidScript, c.ID)
		}
		if chats[c.ID] {
			return nil, fmt.Errorf("%w: duplicate chat id %d", ErrInvalidScript, c.ID)
		}
		chats[c.ID] = true
	}

	seen := make(map[EventID]bool, len(raw.Script))
	events := make([]Event, 0, len(raw.Script))
	for _, r := range raw.Script {
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate event id %d", ErrInvalidScript, r.ID)
		}
		seen[r.ID] = true

		if !chats[r.ChatID] {
			return nil, fmt.Errorf("%w: event %d references unknown chat %d", ErrInvalidScript, r.ID, r.ChatID)
		}

		switch r.Type {
		case TypeMessage:
			events = append(events, &Message{
				ID:        r.ID,
				ChatID:    r.ChatID,
				Author:    r.Author,
				Text:      r.Text,
				Timestamp: r.Timestamp,
				NextID:    r.NextID,
			})
		case TypePlayerChoice:
			if len(r.Choices) == 0 {
				return nil, fmt.Errorf("%w: player choice %d has no options", ErrInvalidScript, r.ID)
			}
			events = append(events, &PlayerChoice{
				ID:      r.ID,
				ChatID:  r.ChatID,
				Choices: r.Choices,
			})
		default:
			return nil, fmt.Errorf("%w: event %d has unknown type %q", ErrInvalidScript, r.ID, r.Type)
		}
	}

	if raw.EntryID != nil && !seen[*raw.EntryID] {
		return nil, fmt.Errorf("%w: entry id %d does not exist", ErrInvalidScript, *raw.EntryID)
	}

	return newScript(raw.Title, raw.EntryID, raw.Chats, events), nil
}
