package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var (
	// ErrNoMatch is returned when no item matches the query
	ErrNoMatch = errors.New("no debug session matches")
	// ErrAmbiguous is returned when the query matches several labels
	ErrAmbiguous = errors.New("several debug sessions match")
)

// LabelChooser picks non-interactively by session id or label. An empty
// query dismisses the choice.
type LabelChooser struct {
	Query string
}

func (c LabelChooser) Choose(_ context.Context, _ string, items []Item) (int, bool, error) {
	if c.Query == "" {
		return -1, false, nil
	}

	// ids are unique, so an id match wins over any label match
	if _, idx, ok := lo.FindIndexOf(items, func(it Item) bool {
		return it.ID == c.Query
	}); ok {
		return idx, true, nil
	}

	var matches []int
	for i, it := range items {
		if it.Label == c.Query {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return -1, false, fmt.Errorf("%w %q", ErrNoMatch, c.Query)
	case 1:
		return matches[0], true, nil
	default:
		return -1, false, fmt.Errorf("%w %q (%d sessions); select by id", ErrAmbiguous, c.Query, len(matches))
	}
}
