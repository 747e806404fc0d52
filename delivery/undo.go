/*
undo.go - Customer-scope undo replay

PURPOSE:
  Pops the customer's pending ledger entry and applies its exact inverse:

    create -> delete the created row by id
    update -> restore every mutable field from the pre-update snapshot
    delete -> re-insert the snapshot verbatim (original id and timestamps,
              so foreign references stay intact)

  The pop and the inverse share one store transaction. If the inverse
  cannot be applied - say the product a deleted change referenced has since
  been removed - the whole transaction rolls back and the entry stays on
  the ledger rather than leaving state half-reverted.
*/
package delivery

import (
	"context"

	"github.com/JETKIDS/trae-milk2-sub002/schedule"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// UndoResult reports what was reverted and which months were resynced.
type UndoResult struct {
	Entry  undo.Entry
	Months []schedule.YearMonth
}

// Undo pops and replays the most recent temporary-change mutation for the
// customer. An empty ledger returns undo.ErrNothingToUndo.
func (s *Service) Undo(ctx context.Context, id schedule.CustomerID) (*UndoResult, error) {
	if _, err := s.customer(ctx, id); err != nil {
		return nil, err
	}

	var result UndoResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.ledger.Pop(ctx, undo.CustomerScope(string(id)))
		if err != nil {
			return err
		}
		result.Entry = *entry

		months, err := s.applyInverse(ctx, *entry)
		if err != nil {
			return err
		}
		result.Months = months
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, s.resyncMonths(ctx, id, result.Months)
}

// applyInverse is the single dispatch point for customer-scope entries.
func (s *Service) applyInverse(ctx context.Context, entry undo.Entry) ([]schedule.YearMonth, error) {
	switch entry.Action {
	case undo.ActionChangeCreate:
		var created schedule.TemporaryChange
		if err := entry.Decode(&created); err != nil {
			return nil, err
		}
		current, err := s.store.GetChange(ctx, created.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, &undo.IntegrityError{Action: entry.Action, Cause: &NotFoundError{Kind: "temporary change", ID: created.ID}}
		}
		if err := s.store.DeleteChange(ctx, created.ID); err != nil {
			return nil, &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return monthsOf(current.Date), nil

	case undo.ActionChangeUpdate:
		var snapshot schedule.TemporaryChange
		if err := entry.Decode(&snapshot); err != nil {
			return nil, err
		}
		current, err := s.store.GetChange(ctx, snapshot.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, &undo.IntegrityError{Action: entry.Action, Cause: &NotFoundError{Kind: "temporary change", ID: snapshot.ID}}
		}
		if err := s.store.UpdateChange(ctx, snapshot); err != nil {
			return nil, &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		// Both the month the row sat in and the month it returns to.
		return monthsOf(current.Date, snapshot.Date), nil

	case undo.ActionChangeDelete:
		var snapshot schedule.TemporaryChange
		if err := entry.Decode(&snapshot); err != nil {
			return nil, err
		}
		if err := s.store.InsertChange(ctx, snapshot); err != nil {
			return nil, &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return monthsOf(snapshot.Date), nil

	default:
		return nil, &undo.UnsupportedActionError{Action: entry.Action}
	}
}
