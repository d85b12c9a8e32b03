package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/datesort/internal/models"
)

var (
	_ list.Item = resultItem{}
)

// resultItem wraps [models.RelocationResult] to implement [list.Item].
type resultItem struct {
	result models.RelocationResult
}

func (i resultItem) FilterValue() string { return i.result.Item.Path }
func (i resultItem) Title() string       { return i.result.Item.Path }
func (i resultItem) Description() string {
	desc := styles.Outcome(i.result.Outcome).Render(i.result.Outcome.String())
	if i.result.Kind != models.FailureNone {
		desc = fmt.Sprintf("%s • %s", desc, i.result.Kind)
	}
	if reason := i.result.Reason(); reason != "" {
		desc = fmt.Sprintf("%s • %s", desc, reason)
	}
	return desc
}

// problemItems lists every result that did not end in its bucket.
func problemItems(results []models.RelocationResult) []list.Item {
	var items []list.Item
	for _, r := range results {
		if r.Outcome != models.OutcomeSuccess {
			items = append(items, resultItem{result: r})
		}
	}
	return items
}
