package script

import "fmt"

// Issue is a non-fatal problem found in a parsed script.
type Issue struct {
	EventID EventID
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("event %d: %s", i.EventID, i.Message)
}

// Lint reports problems that stop a branch early or make default successors
// ambiguous. None of them prevent a session from running.
func (s *Script) Lint() []Issue {
	var issues []Issue

	for i := 1; i < len(s.fileOrder); i++ {
		if s.fileOrder[i] <= s.fileOrder[i-1] {
			issues = append(issues, Issue{
				EventID: s.fileOrder[i],
				Message: fmt.Sprintf("id is not greater than the previous id %d in file order", s.fileOrder[i-1]),
			})
		}
	}

	var maxID EventID
	if len(s.events) > 0 {
		maxID = s.events[len(s.events)-1].EventID()
	}

	for _, e := range s.events {
		switch ev := e.(type) {
		case *Message:
			if ev.Timestamp == nil {
				issues = append(issues, Issue{EventID: ev.ID, Message: "message has no timestamp"})
			}
			if ev.NextID != nil {
				if _, ok := s.byID[*ev.NextID]; !ok {
					issues = append(issues, Issue{
						EventID: ev.ID,
						Message: fmt.Sprintf("nextId %d does not exist", *ev.NextID),
					})
				}
				continue
			}
			// Default successor skips over a hole in the id sequence.
			if _, ok := s.byID[ev.ID+1]; !ok && ev.ID < maxID {
				issues = append(issues, Issue{
					EventID: ev.ID,
					Message: fmt.Sprintf("implicit successor %d is missing but later ids exist; set nextId explicitly", ev.ID+1),
				})
			}
		case *PlayerChoice:
			for i, c := range ev.Choices {
				if _, ok := s.byID[c.NextID]; !ok {
					issues = append(issues, Issue{
						EventID: ev.ID,
						Message: fmt.Sprintf("choice %d (%q) targets missing event %d", i+1, c.Text, c.NextID),
					})
				}
			}
		}
	}

	return issues
}
