package internal

import "time"

// CreateTestTranscript creates a finished two-turn transcript with one tool
// call, for tests and examples
func CreateTestTranscript(key string) *Transcript {
	now := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)
	return &Transcript{
		Key:      key,
		Mode:     ModeAuthenticated,
		ThreadID: key,
		Messages: []Message{
			{ID: "m1", Role: RoleUser, Content: "Which chefs near me cook vegan?", Finalized: true, CreatedAt: now},
			{
				ID:        "m2",
				Role:      RoleAssistant,
				Content:   "Here are two options:\n\n| Chef | Price |\n| --- | --- |\n| Ana | $40 |\n| Ben | $55 |",
				Finalized: true,
				CreatedAt: now.Add(5 * time.Second),
			},
			{ID: "m3", Role: RoleUser, Content: "Book Ana for Friday", Finalized: true, CreatedAt: now.Add(time.Minute)},
			{ID: "m4", Role: RoleAssistant, Content: "Done! Ana is booked.", Finalized: true, CreatedAt: now.Add(65 * time.Second)},
		},
		Tools: []ToolEvent{
			{ID: "call_1", Name: "Searching chefs", RawName: "search_chefs", Status: ToolDone, TurnID: "m2"},
		},
		UpdatedAt: now.Add(65 * time.Second),
	}
}

// CreateTestTranscriptWithMessages creates a transcript holding messages
func CreateTestTranscriptWithMessages(key string, messages []Message) *Transcript {
	t := CreateTestTranscript(key)
	t.Messages = messages
	t.Tools = nil
	return t
}
