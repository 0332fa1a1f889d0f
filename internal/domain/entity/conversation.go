package entity

// Conversation is the derived view of every message between the active
// identity and one counterpart. It is rebuilt on each fetch, never mutated.
type Conversation struct {
	CounterpartID int64   `json:"counterpartId"`
	LastMessage   Message `json:"lastMessage"`
}

// ConversationSummary is what the message list pages render.
type ConversationSummary struct {
	CounterpartID   int64   `json:"counterpartId"`
	CounterpartName string  `json:"counterpartName"`
	LastMessage     Message `json:"lastMessage"`
	UnreadCount     int     `json:"unreadCount"`
}

// UnreadSnapshot is the observed state of the unread engine at one instant.
type UnreadSnapshot struct {
	ParticipantID int64         `json:"participantId"`
	Total         int           `json:"total"`
	ByCounterpart map[int64]int `json:"byCounterpart"`
	Adjusting     []int64       `json:"adjusting,omitempty"`
	Loading       bool          `json:"loading"`
}
