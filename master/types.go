/*
Package master manages administrative master data: delivery courses, staff
members, manufacturers, and the company/institution singletons.

Each mutation pushes its inverse to a per-entity-type undo scope, so the
admin UI offers one level of undo per entity type independently of the
customer-side ledger.

Courses carry a dense, user-facing sequential display code. Deleting a
course compacts the remaining codes; the compaction lives behind a single
store operation (RenumberCourses) invoked by both the delete path and its
undo.
*/
package master

import (
	"context"
	"time"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Course is a delivery route. Code is the display code shown to users:
// dense, sequential, reassigned by renumbering - never used as a foreign
// key (ID is).
type Course struct {
	ID        string    `json:"id"`
	Code      int       `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Staff struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Manufacturer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Company is a singleton: the dairy shop's own identity, printed on
// invoices. Only update is supported; there is exactly one row.
type Company struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Institution is a singleton: the collecting financial institution used by
// payment-batch exports.
type Institution struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Entity names, used as undo scope keys and API path segments.
const (
	EntityCourse       = "course"
	EntityStaff        = "staff"
	EntityManufacturer = "manufacturer"
	EntityCompany      = "company"
	EntityInstitution  = "institution"
)

func ValidEntity(entity string) bool {
	switch entity {
	case EntityCourse, EntityStaff, EntityManufacturer, EntityCompany, EntityInstitution:
		return true
	}
	return false
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is implemented by store/sqlite. Insert methods write rows verbatim
// (id, code, timestamps included) so undo can restore exact state.
type Store interface {
	GetCourse(ctx context.Context, id string) (*Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	InsertCourse(ctx context.Context, c Course) error
	UpdateCourse(ctx context.Context, c Course) error
	DeleteCourse(ctx context.Context, id string) error

	// RenumberCourses compacts display codes to 1..N, preserving order.
	RenumberCourses(ctx context.Context) error

	GetStaff(ctx context.Context, id string) (*Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)
	InsertStaff(ctx context.Context, st Staff) error
	UpdateStaff(ctx context.Context, st Staff) error
	DeleteStaff(ctx context.Context, id string) error

	GetManufacturer(ctx context.Context, id string) (*Manufacturer, error)
	ListManufacturers(ctx context.Context) ([]Manufacturer, error)
	InsertManufacturer(ctx context.Context, m Manufacturer) error
	UpdateManufacturer(ctx context.Context, m Manufacturer) error
	DeleteManufacturer(ctx context.Context, id string) error

	// Singletons always exist; migration seeds an empty row.
	GetCompany(ctx context.Context) (*Company, error)
	SaveCompany(ctx context.Context, c Company) error
	GetInstitution(ctx context.Context) (*Institution, error)
	SaveInstitution(ctx context.Context, inst Institution) error

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
