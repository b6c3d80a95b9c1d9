package stream

import (
	"github.com/google/uuid"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the transcript.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the transcript of a single chat view plus the gateway
// conversation id ("" until the first stream supplies one). It has exactly one
// owner and is not safe for concurrent use.
type Conversation struct {
	ConversationID string
	Messages       []Message

	// OnDelta is called after a delta was appended, e.g. to scroll the view.
	OnDelta func(messageID, delta string)
}

// AddUser appends a user message and returns it.
func (c *Conversation) AddUser(text string) Message {
	msg := Message{ID: "u-" + uuid.NewString(), Role: RoleUser, Content: text}
	c.Messages = append(c.Messages, msg)
	return msg
}

// BeginAssistant appends an empty assistant placeholder and returns its id.
func (c *Conversation) BeginAssistant() string {
	id := "a-" + uuid.NewString()
	c.Messages = append(c.Messages, Message{ID: id, Role: RoleAssistant})
	return id
}

// Apply merges a stream event into the assistant message identified by messageID.
func (c *Conversation) Apply(messageID string, ev Event) {
	if ev.ConversationID != "" {
		c.ConversationID = ev.ConversationID
	}
	if ev.Answer == "" {
		return
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			c.Messages[i].Content += ev.Answer
			if c.OnDelta != nil {
				c.OnDelta(messageID, ev.Answer)
			}
			return
		}
	}
}

// Remove drops the message with the given id.
func (c *Conversation) Remove(messageID string) {
	kept := c.Messages[:0]
	for _, m := range c.Messages {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	c.Messages = kept
}

// Find returns the message with the given id.
func (c *Conversation) Find(messageID string) (Message, bool) {
	for _, m := range c.Messages {
		if m.ID == messageID {
			return m, true
		}
	}
	return Message{}, false
}

// Reset clears the conversation id and replaces the transcript with seed.
func (c *Conversation) Reset(seed ...Message) {
	c.ConversationID = ""
	c.Messages = append([]Message(nil), seed...)
}

// Reassembler returns a Reassembler that applies events to messageID.
func (c *Conversation) Reassembler(messageID string) *Reassembler {
	return NewReassembler(func(ev Event) { c.Apply(messageID, ev) })
}
