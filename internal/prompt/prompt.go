// Package prompt picks the target session an operation applies to.
package prompt

import (
	"context"
	"fmt"
	"io"

	"github.com/blaugold/explo/internal/output"
	"github.com/blaugold/explo/internal/session"
	"github.com/samber/lo"
)

// Messages shown to the operator
const (
	NoSessionsMessage = "Explo: No appropriate debug sessions available"
	SelectTitle       = "Select debug session"
)

// Item is one entry of a pick list
type Item struct {
	ID          string
	Label       string
	Description string
}

// Chooser asks the operator to pick one of items. ok is false when the choice
// was dismissed.
type Chooser interface {
	Choose(ctx context.Context, title string, items []Item) (index int, ok bool, err error)
}

// Notifier shows an informational message
type Notifier interface {
	Info(message string) error
}

// Selector resolves the target of an operation.
type Selector struct {
	Chooser  Chooser
	Notifier Notifier
	// AskAlways sends a single target through the Chooser too, for choosers
	// that answer a fixed query.
	AskAlways bool
}

// Select returns the chosen target. With no targets the operator is told so
// and nothing is selected; a single target is returned without asking unless
// AskAlways is set.
func (s *Selector) Select(ctx context.Context, targets []*session.Record) (*session.Record, bool, error) {
	switch len(targets) {
	case 0:
		if s.Notifier != nil {
			if err := s.Notifier.Info(NoSessionsMessage); err != nil {
				return nil, false, fmt.Errorf("notify: %w", err)
			}
		}
		return nil, false, nil
	case 1:
		if !s.AskAlways {
			return targets[0], true, nil
		}
	}

	if s.Chooser == nil {
		return nil, false, nil
	}
	items := lo.Map(targets, func(rec *session.Record, _ int) Item {
		return Item{ID: rec.ID(), Label: rec.Label(), Description: rec.ID() + " (" + rec.Phase().String() + ")"}
	})
	idx, ok, err := s.Chooser.Choose(ctx, SelectTitle, items)
	if err != nil {
		return nil, false, err
	}
	if !ok || idx < 0 || idx >= len(targets) {
		return nil, false, nil
	}
	return targets[idx], true, nil
}

// NDJSONNotifier writes info records
type NDJSONNotifier struct {
	Writer *output.NDJSONWriter
}

func (n NDJSONNotifier) Info(message string) error {
	return n.Writer.WriteInfo(message)
}

// TextNotifier writes the message as a plain line
type TextNotifier struct {
	Out io.Writer
}

func (n TextNotifier) Info(message string) error {
	_, err := fmt.Fprintln(n.Out, message)
	return err
}
