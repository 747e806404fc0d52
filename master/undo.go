/*
undo.go - Entity-scope undo replay

The master-data twin of delivery/undo.go: pops the entity type's pending
entry and applies the inverse inside one transaction. course_delete is the
special case - the row returns at its original internal id AND the display
codes are recompacted, so they stay contiguous and correctly ordered.
*/
package master

import (
	"context"

	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// UndoResult reports what was reverted for which entity type.
type UndoResult struct {
	Entity string
	Entry  undo.Entry
}

// Undo pops and replays the most recent mutation for an entity type.
// An empty scope returns undo.ErrNothingToUndo.
func (s *Service) Undo(ctx context.Context, entity string) (*UndoResult, error) {
	if !ValidEntity(entity) {
		return nil, validationf("unknown entity type %q", entity)
	}

	var result UndoResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.ledger.Pop(ctx, undo.EntityScope(entity))
		if err != nil {
			return err
		}
		result = UndoResult{Entity: entity, Entry: *entry}
		return s.applyInverse(ctx, *entry)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyInverse dispatches on the action. Unknown actions fail loudly; a
// silent no-op here would leave the admin UI's undo affordance lying about
// actual state.
func (s *Service) applyInverse(ctx context.Context, entry undo.Entry) error {
	switch entry.Action {
	case undo.ActionCourseCreate:
		var created Course
		if err := entry.Decode(&created); err != nil {
			return err
		}
		if err := s.requireCourse(ctx, entry, created.ID); err != nil {
			return err
		}
		if err := s.store.DeleteCourse(ctx, created.ID); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return s.store.RenumberCourses(ctx)

	case undo.ActionCourseUpdate:
		var snapshot Course
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.requireCourse(ctx, entry, snapshot.ID); err != nil {
			return err
		}
		if err := s.store.UpdateCourse(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionCourseDelete:
		var snapshot Course
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		// Original internal id back in place, then recompact display codes.
		if err := s.store.InsertCourse(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return s.store.RenumberCourses(ctx)

	case undo.ActionStaffCreate:
		var created Staff
		if err := entry.Decode(&created); err != nil {
			return err
		}
		if err := s.store.DeleteStaff(ctx, created.ID); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionStaffUpdate:
		var snapshot Staff
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.store.UpdateStaff(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionStaffDelete:
		var snapshot Staff
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.store.InsertStaff(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionManufacturerCreate:
		var created Manufacturer
		if err := entry.Decode(&created); err != nil {
			return err
		}
		if err := s.store.DeleteManufacturer(ctx, created.ID); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionManufacturerUpdate:
		var snapshot Manufacturer
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.store.UpdateManufacturer(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionManufacturerDelete:
		var snapshot Manufacturer
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.store.InsertManufacturer(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionCompanyUpdate:
		var snapshot Company
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.store.SaveCompany(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	case undo.ActionInstitutionUpdate:
		var snapshot Institution
		if err := entry.Decode(&snapshot); err != nil {
			return err
		}
		if err := s.store.SaveInstitution(ctx, snapshot); err != nil {
			return &undo.IntegrityError{Action: entry.Action, Cause: err}
		}
		return nil

	default:
		return &undo.UnsupportedActionError{Action: entry.Action}
	}
}

func (s *Service) requireCourse(ctx context.Context, entry undo.Entry, id string) error {
	course, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if course == nil {
		return &undo.IntegrityError{Action: entry.Action, Cause: &NotFoundError{Entity: EntityCourse, ID: id}}
	}
	return nil
}
