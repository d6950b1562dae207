// Package conversation holds the append-only message log owned by a single
// question session. Nothing here is persisted; a Conversation lives exactly as
// long as the session that created it.
package conversation

import "slices"

// Conversation is an immutable ordered sequence of messages. Append returns a
// new value and never mutates the receiver, so earlier snapshots stay valid.
type Conversation struct {
	messages []Message
}

func New(msgs ...Message) Conversation {
	return Conversation{messages: slices.Clone(msgs)}
}

// Append returns a conversation with msgs added at the end.
func (c Conversation) Append(msgs ...Message) Conversation {
	// Clip forces a fresh backing array so siblings never share tails.
	return Conversation{messages: append(slices.Clip(c.messages), msgs...)}
}

func (c Conversation) Len() int { return len(c.messages) }

// Messages returns a copy of the full log, superseded entries included.
func (c Conversation) Messages() []Message {
	return slices.Clone(c.messages)
}

// Last returns the most recently appended message.
func (c Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Effective returns the log as the generator should see it: any message that a
// later message supersedes is left out, keeping call/result pairs consistent.
func (c Conversation) Effective() []Message {
	replaced := make(map[string]struct{})
	for _, m := range c.messages {
		if m.Supersedes != "" {
			replaced[m.Supersedes] = struct{}{}
		}
	}
	out := make([]Message, 0, len(c.messages))
	for _, m := range c.messages {
		if _, ok := replaced[m.ID]; ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ResultFor finds the tool result correlated with callID.
func (c Conversation) ResultFor(callID string) (ToolResult, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if r := c.messages[i].Result; r != nil && r.CallID == callID {
			return *r, true
		}
	}
	return ToolResult{}, false
}
