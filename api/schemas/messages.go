// File: api/schemas/messages.go
package schemas

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType enumerates the content block kinds exchanged with the reasoning
// collaborator.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// CacheControl marks a block as reusable by the collaborator's prompt cache,
// so static instructions are not re-billed every turn.
type CacheControl struct {
	Type string `json:"type"`
}

// EphemeralCache returns the standard cache marker for static instruction blocks.
func EphemeralCache() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// ImageSource carries an inline base64-encoded image payload.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is a single unit of message content. Only the fields relevant
// to its Type are populated; everything else marshals away via omitempty.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// BlockText.
	Text string `json:"text,omitempty"`

	// BlockThinking. The signature must round-trip untouched or the
	// collaborator rejects the history on the next turn.
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// BlockImage.
	Source *ImageSource `json:"source,omitempty"`

	// BlockToolUse.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult.
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// TextBlock builds a plain text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// PNGBlock builds an inline image block from base64-encoded PNG data.
func PNGBlock(b64 string) ContentBlock {
	return ContentBlock{
		Type: BlockImage,
		Source: &ImageSource{
			Type:      "base64",
			MediaType: "image/png",
			Data:      b64,
		},
	}
}

// ToolResultBlock wraps the result content for a completed tool invocation.
func ToolResultBlock(toolUseID string, isError bool, content ...ContentBlock) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: toolUseID,
		IsError:   isError,
		Content:   content,
	}
}

// Message is one ordered entry of the conversation history.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserMessage builds a user-role message from the given blocks.
func UserMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// UserText builds a user-role message holding a single text block. The loop
// uses this to feed error observations back to the collaborator.
func UserText(text string) Message {
	return UserMessage(TextBlock(text))
}
