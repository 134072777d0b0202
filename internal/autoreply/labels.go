package autoreply

import (
	"context"
	"fmt"

	"github.com/teemow/autoreply/internal/gmail"
)

// EnsureLabel returns the id of the label called name, creating it when no
// label has that exact name. Every call lists all labels; nothing is cached.
// created reports whether this call created the label.
func EnsureLabel(ctx context.Context, api gmail.API, name string) (id string, created bool, err error) {
	labels, err := api.ListLabels(ctx)
	if err != nil {
		return "", false, err
	}
	for _, l := range labels {
		if l.Name == name {
			return l.Id, false, nil
		}
	}

	label, err := api.CreateLabel(ctx, name)
	if err != nil {
		return "", false, err
	}
	if label.Id == "" {
		return "", true, fmt.Errorf("created label %q has no id", name)
	}
	return label.Id, true, nil
}

// LabelThread adds labelID to the thread.
func LabelThread(ctx context.Context, api gmail.API, threadID, labelID string) error {
	return api.AddThreadLabels(ctx, threadID, labelID)
}
