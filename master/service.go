/*
service.go - Master-data mutations with per-entity undo

Every mutation records its inverse on the entity-type scope before the
transaction commits, mirroring the customer-side temporary-change flow.
*/
package master

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  Store
	ledger undo.Ledger
}

func NewService(store Store, ledger undo.Ledger) *Service {
	return &Service{store: store, ledger: ledger}
}

func (s *Service) push(ctx context.Context, entity string, action undo.Action, payload any) error {
	entry, err := undo.NewEntry(undo.EntityScope(entity), action, payload)
	if err != nil {
		return err
	}
	return s.ledger.Push(ctx, entry)
}

// =============================================================================
// COURSES
// =============================================================================

func (s *Service) ListCourses(ctx context.Context) ([]Course, error) {
	return s.store.ListCourses(ctx)
}

// CreateCourse appends a course at the next display code.
func (s *Service) CreateCourse(ctx context.Context, name string) (*Course, error) {
	if name == "" {
		return nil, validationf("course name is required")
	}

	course := Course{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.ListCourses(ctx)
		if err != nil {
			return err
		}
		course.Code = nextCode(existing)
		if err := s.store.InsertCourse(ctx, course); err != nil {
			return err
		}
		return s.push(ctx, EntityCourse, undo.ActionCourseCreate, course)
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (s *Service) UpdateCourse(ctx context.Context, id, name string) (*Course, error) {
	if name == "" {
		return nil, validationf("course name is required")
	}
	old, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, &NotFoundError{Entity: EntityCourse, ID: id}
	}

	updated := *old
	updated.Name = name
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityCourse, undo.ActionCourseUpdate, old); err != nil {
			return err
		}
		return s.store.UpdateCourse(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCourse removes the course and compacts the remaining display codes
// so they stay contiguous.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	old, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return &NotFoundError{Entity: EntityCourse, ID: id}
	}

	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityCourse, undo.ActionCourseDelete, old); err != nil {
			return err
		}
		if err := s.store.DeleteCourse(ctx, id); err != nil {
			return err
		}
		return s.store.RenumberCourses(ctx)
	})
}

func nextCode(courses []Course) int {
	max := 0
	for _, c := range courses {
		if c.Code > max {
			max = c.Code
		}
	}
	return max + 1
}

// =============================================================================
// STAFF
// =============================================================================

func (s *Service) ListStaff(ctx context.Context) ([]Staff, error) {
	return s.store.ListStaff(ctx)
}

func (s *Service) CreateStaff(ctx context.Context, st Staff) (*Staff, error) {
	if st.Name == "" {
		return nil, validationf("staff name is required")
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertStaff(ctx, st); err != nil {
			return err
		}
		return s.push(ctx, EntityStaff, undo.ActionStaffCreate, st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) UpdateStaff(ctx context.Context, st Staff) (*Staff, error) {
	if st.Name == "" {
		return nil, validationf("staff name is required")
	}
	old, err := s.store.GetStaff(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, &NotFoundError{Entity: EntityStaff, ID: st.ID}
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityStaff, undo.ActionStaffUpdate, old); err != nil {
			return err
		}
		return s.store.UpdateStaff(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	old, err := s.store.GetStaff(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return &NotFoundError{Entity: EntityStaff, ID: id}
	}
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityStaff, undo.ActionStaffDelete, old); err != nil {
			return err
		}
		return s.store.DeleteStaff(ctx, id)
	})
}

// =============================================================================
// MANUFACTURERS
// =============================================================================

func (s *Service) ListManufacturers(ctx context.Context) ([]Manufacturer, error) {
	return s.store.ListManufacturers(ctx)
}

func (s *Service) CreateManufacturer(ctx context.Context, m Manufacturer) (*Manufacturer, error) {
	if m.Name == "" {
		return nil, validationf("manufacturer name is required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertManufacturer(ctx, m); err != nil {
			return err
		}
		return s.push(ctx, EntityManufacturer, undo.ActionManufacturerCreate, m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) UpdateManufacturer(ctx context.Context, m Manufacturer) (*Manufacturer, error) {
	if m.Name == "" {
		return nil, validationf("manufacturer name is required")
	}
	old, err := s.store.GetManufacturer(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, &NotFoundError{Entity: EntityManufacturer, ID: m.ID}
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityManufacturer, undo.ActionManufacturerUpdate, old); err != nil {
			return err
		}
		return s.store.UpdateManufacturer(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) DeleteManufacturer(ctx context.Context, id string) error {
	old, err := s.store.GetManufacturer(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return &NotFoundError{Entity: EntityManufacturer, ID: id}
	}
	return s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityManufacturer, undo.ActionManufacturerDelete, old); err != nil {
			return err
		}
		return s.store.DeleteManufacturer(ctx, id)
	})
}

// =============================================================================
// SINGLETONS
// =============================================================================

func (s *Service) GetCompany(ctx context.Context) (*Company, error) {
	return s.store.GetCompany(ctx)
}

func (s *Service) UpdateCompany(ctx context.Context, c Company) (*Company, error) {
	if c.Name == "" {
		return nil, validationf("company name is required")
	}
	old, err := s.store.GetCompany(ctx)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityCompany, undo.ActionCompanyUpdate, old); err != nil {
			return err
		}
		return s.store.SaveCompany(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) GetInstitution(ctx context.Context) (*Institution, error) {
	return s.store.GetInstitution(ctx)
}

func (s *Service) UpdateInstitution(ctx context.Context, inst Institution) (*Institution, error) {
	if inst.Name == "" {
		return nil, validationf("institution name is required")
	}
	old, err := s.store.GetInstitution(ctx)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.push(ctx, EntityInstitution, undo.ActionInstitutionUpdate, old); err != nil {
			return err
		}
		return s.store.SaveInstitution(ctx, inst)
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}
