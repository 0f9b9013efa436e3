package conversation

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
)

// ExtraIsError marks a tool message whose content reports a failed execution.
const ExtraIsError = "is_error"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block is one unit of turn content: Text, ToolInvocation or ToolResult.
type Block interface {
	isBlock()
}

// Text is narrative text written by the user or the model.
type Text struct {
	Text string
}

// ToolInvocation is a tool call requested by the model.
type ToolInvocation struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult answers the ToolInvocation with the same ID.
type ToolResult struct {
	InvocationID string
	ToolName     string
	Content      string
	IsError      bool
}

func (Text) isBlock()           {}
func (ToolInvocation) isBlock() {}
func (ToolResult) isBlock()     {}

type Turn struct {
	Role   Role
	Blocks []Block
}

// Invocations returns the tool invocations of the turn in order.
func (t Turn) Invocations() []ToolInvocation {
	var out []ToolInvocation
	for _, b := range t.Blocks {
		if inv, ok := b.(ToolInvocation); ok {
			out = append(out, inv)
		}
	}
	return out
}

// Conversation is the ordered turn history of one planning session. Every tool invocation
// in an assistant turn must be answered in the next user turn before the model is called
// again; the append methods enforce that.
type Conversation struct {
	turns []Turn
	idSeq int
}

func New() *Conversation {
	return &Conversation{}
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Pending returns the invocations of the last assistant turn still waiting for results.
func (c *Conversation) Pending() []ToolInvocation {
	if len(c.turns) == 0 {
		return nil
	}
	last := c.turns[len(c.turns)-1]
	if last.Role != RoleAssistant {
		return nil
	}
	return last.Invocations()
}

// AddUserText appends a plain user turn.
func (c *Conversation) AddUserText(text string) error {
	if pending := c.Pending(); len(pending) > 0 {
		return fmt.Errorf("conversation: %d tool invocation(s) unanswered", len(pending))
	}
	c.turns = append(c.turns, Turn{Role: RoleUser, Blocks: []Block{Text{Text: text}}})
	return nil
}

// AddAssistant appends a model turn. Tool results are rejected: only the loop writes them.
func (c *Conversation) AddAssistant(blocks []Block) error {
	if pending := c.Pending(); len(pending) > 0 {
		return fmt.Errorf("conversation: %d tool invocation(s) unanswered", len(pending))
	}
	for _, b := range blocks {
		if _, ok := b.(ToolResult); ok {
			return fmt.Errorf("conversation: assistant turn cannot carry tool results")
		}
	}
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Blocks: blocks})
	return nil
}

// AddToolResults appends the user turn answering the pending invocations. Each pending
// invocation must be answered exactly once.
func (c *Conversation) AddToolResults(results []ToolResult) error {
	pending := c.Pending()
	if len(pending) == 0 {
		return fmt.Errorf("conversation: no tool invocations to answer")
	}
	if len(results) != len(pending) {
		return fmt.Errorf("conversation: %d result(s) for %d invocation(s)", len(results), len(pending))
	}
	ids := lo.Map(pending, func(inv ToolInvocation, _ int) string { return inv.ID })
	seen := make(map[string]bool, len(results))
	blocks := make([]Block, 0, len(results))
	for _, r := range results {
		if !lo.Contains(ids, r.InvocationID) {
			return fmt.Errorf("conversation: result for unknown invocation %q", r.InvocationID)
		}
		if seen[r.InvocationID] {
			return fmt.Errorf("conversation: invocation %q answered twice", r.InvocationID)
		}
		seen[r.InvocationID] = true
		blocks = append(blocks, r)
	}
	c.turns = append(c.turns, Turn{Role: RoleUser, Blocks: blocks})
	return nil
}

// BlocksFromMessage converts a model reply into ordered blocks: text first, then tool
// invocations in the order the model listed them. Missing invocation ids are filled with
// call_<n>, unique within the conversation.
func (c *Conversation) BlocksFromMessage(msg *schema.Message) []Block {
	if msg == nil {
		return nil
	}
	var blocks []Block
	if strings.TrimSpace(msg.Content) != "" {
		blocks = append(blocks, Text{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		id := strings.TrimSpace(tc.ID)
		if id == "" {
			c.idSeq++
			id = fmt.Sprintf("call_%d", c.idSeq)
		}
		blocks = append(blocks, ToolInvocation{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return blocks
}

// Messages renders the history as eino messages behind the given system instructions.
func (c *Conversation) Messages(system string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(c.turns)+1)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	for _, t := range c.turns {
		switch t.Role {
		case RoleAssistant:
			msgs = append(msgs, assistantMessage(t))
		default:
			msgs = append(msgs, userMessages(t)...)
		}
	}
	return msgs
}

func assistantMessage(t Turn) *schema.Message {
	var texts []string
	var calls []schema.ToolCall
	for _, b := range t.Blocks {
		switch v := b.(type) {
		case Text:
			texts = append(texts, v.Text)
		case ToolInvocation:
			calls = append(calls, schema.ToolCall{
				ID:   v.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      v.Name,
					Arguments: v.Arguments,
				},
			})
		}
	}
	return schema.AssistantMessage(strings.Join(texts, "\n"), calls)
}

// userMessages emits one tool message per result followed by any text of the turn.
func userMessages(t Turn) []*schema.Message {
	var out []*schema.Message
	var texts []string
	for _, b := range t.Blocks {
		switch v := b.(type) {
		case ToolResult:
			m := schema.ToolMessage(v.Content, v.InvocationID, schema.WithToolName(v.ToolName))
			if v.IsError {
				m.Extra = map[string]any{ExtraIsError: true}
			}
			out = append(out, m)
		case Text:
			texts = append(texts, v.Text)
		}
	}
	if len(texts) > 0 {
		out = append(out, schema.UserMessage(strings.Join(texts, "\n")))
	}
	return out
}

// IsErrorMessage reports whether a tool message was marked as a failed execution.
func IsErrorMessage(m *schema.Message) bool {
	if m == nil || m.Extra == nil {
		return false
	}
	v, _ := m.Extra[ExtraIsError].(bool)
	return v
}
