// File: internal/agent/history_test.go
package agent

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainingloop/coursepilot/api/schemas"
)

// viewResult builds the batched user message carrying one tool result with an
// embedded view, the shape the loop appends after each UI action.
func viewResult(id string, data string) schemas.Message {
	return schemas.UserMessage(schemas.ToolResultBlock(id, false,
		schemas.TextBlock("Clicked at (10, 10)"),
		schemas.PNGBlock(data),
	))
}

func historyWithViews(n int) []schemas.Message {
	messages := []schemas.Message{
		schemas.UserMessage(schemas.TextBlock("start"), schemas.PNGBlock("view-0")),
	}
	for i := 1; i < n; i++ {
		messages = append(messages,
			schemas.Message{Role: schemas.RoleAssistant, Content: []schemas.ContentBlock{schemas.TextBlock("acting")}},
			viewResult(fmt.Sprintf("toolu_%d", i), fmt.Sprintf("view-%d", i)),
		)
	}
	return messages
}

func TestBudgeter_KeepsExactlyNRecentViews(t *testing.T) {
	for _, total := range []int{1, 3, 5, 10} {
		t.Run(fmt.Sprintf("views_%d", total), func(t *testing.T) {
			messages := historyWithViews(total)
			trimmed := Budgeter{KeepRecent: 3}.Trim(messages)

			want := total
			if want > 3 {
				want = 3
			}
			assert.Equal(t, want, CountIntactViews(trimmed))
		})
	}
}

func TestBudgeter_OlderViewsBecomePlaceholders(t *testing.T) {
	messages := historyWithViews(5)
	trimmed := Budgeter{KeepRecent: 2}.Trim(messages)

	// The seed view and the two oldest tool-result views are pruned.
	require.Equal(t, 2, CountIntactViews(trimmed))

	seed := trimmed[0].Content
	require.Len(t, seed, 2)
	assert.Equal(t, schemas.BlockText, seed[1].Type)
	assert.Equal(t, ViewPlaceholder, seed[1].Text)
	assert.Nil(t, seed[1].Source, "no binary payload may remain reachable")

	// The most recent views survive untouched.
	last := trimmed[len(trimmed)-1].Content[0]
	require.Equal(t, schemas.BlockToolResult, last.Type)
	assert.Equal(t, schemas.BlockImage, last.Content[1].Type)
	assert.Equal(t, "view-4", last.Content[1].Source.Data)
}

func TestBudgeter_DoesNotMutateInput(t *testing.T) {
	messages := historyWithViews(6)
	snapshot := historyWithViews(6)

	_ = Budgeter{KeepRecent: 1}.Trim(messages)

	if diff := cmp.Diff(snapshot, messages); diff != "" {
		t.Fatalf("Trim mutated its input (-want +got):\n%s", diff)
	}
}

func TestBudgeter_TextOnlyHistoryUntouched(t *testing.T) {
	messages := []schemas.Message{
		schemas.UserText("observation one"),
		schemas.UserText("observation two"),
	}
	trimmed := Budgeter{KeepRecent: 3}.Trim(messages)
	assert.Equal(t, messages, trimmed)
	assert.Equal(t, 0, CountIntactViews(trimmed))
}

func TestBudgeter_PreservesToolUseIDs(t *testing.T) {
	messages := historyWithViews(5)
	trimmed := Budgeter{KeepRecent: 1}.Trim(messages)

	// Pruning must not break the tool_use/tool_result pairing.
	pruned := trimmed[2].Content[0]
	require.Equal(t, schemas.BlockToolResult, pruned.Type)
	assert.Equal(t, "toolu_1", pruned.ToolUseID)
	assert.Equal(t, ViewPlaceholder, pruned.Content[1].Text)
}
