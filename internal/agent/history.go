// File: internal/agent/history.go
package agent

import "github.com/trainingloop/coursepilot/api/schemas"

// ViewPlaceholder replaces pruned view images in history. The collaborator
// still sees that a view existed at that point in the conversation.
const ViewPlaceholder = "[Earlier view removed to conserve context. The most recent views below reflect the current screen state.]"

// Budgeter bounds conversation growth. Accumulated imagery is the dominant
// size driver of a long run; keeping only a trailing window of views bounds
// history to O(KeepRecent) regardless of run length.
type Budgeter struct {
	// KeepRecent is the number of most recent embedded views kept intact.
	KeepRecent int
}

// Trim returns a copy of messages in which every embedded view older than the
// KeepRecent most recent ones is replaced by the textual placeholder. The
// input is never mutated; the append log stays the record of what actually
// happened, and the trimmed copy is what the collaborator sees this turn.
func (b Budgeter) Trim(messages []schemas.Message) []schemas.Message {
	if b.KeepRecent < 1 {
		return messages
	}

	// First pass, newest to oldest: find the cutoff position of the Nth most
	// recent image block.
	remaining := b.KeepRecent
	cutMsg, cutBlock := -1, -1
scan:
	for i := len(messages) - 1; i >= 0; i-- {
		for j := len(messages[i].Content) - 1; j >= 0; j-- {
			if !holdsImage(messages[i].Content[j]) {
				continue
			}
			remaining--
			if remaining == 0 {
				cutMsg, cutBlock = i, j
				break scan
			}
		}
	}
	if cutMsg == -1 {
		// Fewer views than the budget; nothing to prune.
		return messages
	}

	out := make([]schemas.Message, len(messages))
	copy(out, messages)
	for i := 0; i <= cutMsg; i++ {
		limit := len(out[i].Content)
		if i == cutMsg {
			limit = cutBlock
		}
		if !anyImageBefore(out[i].Content, limit) {
			continue
		}
		content := make([]schemas.ContentBlock, len(out[i].Content))
		copy(content, out[i].Content)
		for j := 0; j < limit; j++ {
			content[j] = pruneBlock(content[j])
		}
		out[i] = schemas.Message{Role: out[i].Role, Content: content}
	}
	return out
}

// CountIntactViews reports how many image payloads remain reachable from the
// given history.
func CountIntactViews(messages []schemas.Message) int {
	n := 0
	for _, m := range messages {
		for _, block := range m.Content {
			n += countImages(block)
		}
	}
	return n
}

func countImages(block schemas.ContentBlock) int {
	if block.Type == schemas.BlockImage {
		return 1
	}
	n := 0
	for _, inner := range block.Content {
		n += countImages(inner)
	}
	return n
}

func holdsImage(block schemas.ContentBlock) bool {
	return countImages(block) > 0
}

func anyImageBefore(blocks []schemas.ContentBlock, limit int) bool {
	for j := 0; j < limit; j++ {
		if holdsImage(blocks[j]) {
			return true
		}
	}
	return false
}

// pruneBlock replaces image payloads with the placeholder, descending into
// tool results whose content carries the post-action views.
func pruneBlock(block schemas.ContentBlock) schemas.ContentBlock {
	switch {
	case block.Type == schemas.BlockImage:
		return schemas.TextBlock(ViewPlaceholder)
	case len(block.Content) > 0 && holdsImage(block):
		inner := make([]schemas.ContentBlock, len(block.Content))
		for i, c := range block.Content {
			inner[i] = pruneBlock(c)
		}
		block.Content = inner
		return block
	default:
		return block
	}
}
