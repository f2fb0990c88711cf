// Package form turns submitted Slack view state back into domain records.
package form

import (
	"sort"

	"github.com/slack-go/slack"
)

// Entry holds the submitted values of one block, keyed by action id.
type Entry struct {
	BlockID string
	Values  map[string]slack.BlockAction
}

// State is the submitted view state in the order the user saw the blocks.
type State []Entry

// StateFromView orders the view state by block position. Block ids that are
// not part of the rendered blocks follow in lexical order.
func StateFromView(view slack.View) State {
	if view.State == nil || len(view.State.Values) == 0 {
		return nil
	}
	values := view.State.Values

	state := make(State, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, block := range view.Blocks.BlockSet {
		id := block.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		if actions, ok := values[id]; ok {
			state = append(state, Entry{BlockID: id, Values: actions})
			seen[id] = struct{}{}
		}
	}

	rest := make([]string, 0, len(values)-len(state))
	for id := range values {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		state = append(state, Entry{BlockID: id, Values: values[id]})
	}
	return state
}

// Value returns the submitted action for the block and action id.
func (s State) Value(blockID, actionID string) (slack.BlockAction, bool) {
	for _, entry := range s {
		if entry.BlockID == blockID {
			action, ok := entry.Values[actionID]
			return action, ok
		}
	}
	return slack.BlockAction{}, false
}
