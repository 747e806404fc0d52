package master_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JETKIDS/trae-milk2-sub002/master"
	"github.com/JETKIDS/trae-milk2-sub002/store/sqlite"
	"github.com/JETKIDS/trae-milk2-sub002/undo"
)

func newService(t *testing.T) *master.Service {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return master.NewService(store, store)
}

func courseNames(courses []master.Course) []string {
	names := make([]string, len(courses))
	for i, c := range courses {
		names[i] = c.Name
	}
	return names
}

// =============================================================================
// COURSES - Dense display codes
// =============================================================================

func TestCreateCourse_AssignsSequentialCodes(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.CreateCourse(ctx, "North route")
	require.NoError(t, err)
	second, err := svc.CreateCourse(ctx, "South route")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Code)
	assert.Equal(t, 2, second.Code)
}

func TestDeleteCourse_CompactsCodes(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCourse(ctx, "North route")
	require.NoError(t, err)
	middle, err := svc.CreateCourse(ctx, "Mid route")
	require.NoError(t, err)
	_, err = svc.CreateCourse(ctx, "South route")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCourse(ctx, middle.ID))

	courses, err := svc.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, []string{"North route", "South route"}, courseNames(courses))
	assert.Equal(t, 1, courses[0].Code)
	assert.Equal(t, 2, courses[1].Code)
}

func TestUndoCourseDelete_RestoresRowAndRecompacts(t *testing.T) {
	// GIVEN: Three courses with the middle one deleted
	// WHEN: Undoing the delete
	// THEN: The row returns at its original id and codes run 1..3 in order

	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCourse(ctx, "North route")
	require.NoError(t, err)
	middle, err := svc.CreateCourse(ctx, "Mid route")
	require.NoError(t, err)
	_, err = svc.CreateCourse(ctx, "South route")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCourse(ctx, middle.ID))

	result, err := svc.Undo(ctx, master.EntityCourse)
	require.NoError(t, err)
	assert.Equal(t, undo.ActionCourseDelete, result.Entry.Action)

	courses, err := svc.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, []string{"North route", "Mid route", "South route"}, courseNames(courses))
	assert.Equal(t, middle.ID, courses[1].ID)
	assert.Equal(t, 2, courses[1].Code)
}

func TestUndoCourseCreate_RemovesRow(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCourse(ctx, "North route")
	require.NoError(t, err)
	_, err = svc.CreateCourse(ctx, "South route")
	require.NoError(t, err)

	_, err = svc.Undo(ctx, master.EntityCourse)
	require.NoError(t, err)

	courses, err := svc.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "North route", courses[0].Name)
}

func TestUndoCourseUpdate_RestoresName(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateCourse(ctx, "North route")
	require.NoError(t, err)
	_, err = svc.UpdateCourse(ctx, created.ID, "Renamed route")
	require.NoError(t, err)

	_, err = svc.Undo(ctx, master.EntityCourse)
	require.NoError(t, err)

	courses, err := svc.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "North route", courses[0].Name)
}

// =============================================================================
// STAFF / MANUFACTURERS
// =============================================================================

func TestStaff_UpdateAndUndo(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateStaff(ctx, master.Staff{Name: "Sato", Phone: "03-1111-2222"})
	require.NoError(t, err)

	updated := *created
	updated.Phone = "03-9999-0000"
	_, err = svc.UpdateStaff(ctx, updated)
	require.NoError(t, err)

	result, err := svc.Undo(ctx, master.EntityStaff)
	require.NoError(t, err)
	assert.Equal(t, undo.ActionStaffUpdate, result.Entry.Action)

	staff, err := svc.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "03-1111-2222", staff[0].Phone)
}

func TestManufacturer_DeleteAndUndo(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateManufacturer(ctx, master.Manufacturer{Name: "Hillside Dairy"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteManufacturer(ctx, created.ID))

	manufacturers, err := svc.ListManufacturers(ctx)
	require.NoError(t, err)
	assert.Empty(t, manufacturers)

	_, err = svc.Undo(ctx, master.EntityManufacturer)
	require.NoError(t, err)

	manufacturers, err = svc.ListManufacturers(ctx)
	require.NoError(t, err)
	require.Len(t, manufacturers, 1)
	assert.Equal(t, created.ID, manufacturers[0].ID)
}

// =============================================================================
// SCOPE ISOLATION
// =============================================================================

func TestUndo_ScopesAreIndependent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCourse(ctx, "North route")
	require.NoError(t, err)
	_, err = svc.CreateStaff(ctx, master.Staff{Name: "Sato"})
	require.NoError(t, err)

	// Undoing staff leaves the course entry untouched.
	_, err = svc.Undo(ctx, master.EntityStaff)
	require.NoError(t, err)

	result, err := svc.Undo(ctx, master.EntityCourse)
	require.NoError(t, err)
	assert.Equal(t, undo.ActionCourseCreate, result.Entry.Action)
}

// =============================================================================
// SINGLETONS
// =============================================================================

func TestCompany_UpdateAndUndo(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// Migration seeds an empty row.
	initial, err := svc.GetCompany(ctx)
	require.NoError(t, err)
	require.NotNil(t, initial)
	assert.Empty(t, initial.Name)

	_, err = svc.UpdateCompany(ctx, master.Company{Name: "Hillside Dairy", Phone: "03-1234-5678"})
	require.NoError(t, err)

	_, err = svc.UpdateCompany(ctx, master.Company{Name: "Hillside Dairy KK"})
	require.NoError(t, err)

	_, err = svc.Undo(ctx, master.EntityCompany)
	require.NoError(t, err)

	company, err := svc.GetCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hillside Dairy", company.Name)
	assert.Equal(t, "03-1234-5678", company.Phone)
}

func TestInstitution_UpdateAndUndo(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.UpdateInstitution(ctx, master.Institution{Name: "Daiichi Bank"})
	require.NoError(t, err)

	_, err = svc.Undo(ctx, master.EntityInstitution)
	require.NoError(t, err)

	inst, err := svc.GetInstitution(ctx)
	require.NoError(t, err)
	assert.Empty(t, inst.Name)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestValidationAndNotFound(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCourse(ctx, "")
	assert.True(t, errors.Is(err, master.ErrValidation))

	_, err = svc.UpdateCourse(ctx, "missing", "name")
	assert.True(t, errors.Is(err, master.ErrNotFound))

	err = svc.DeleteStaff(ctx, "missing")
	assert.True(t, errors.Is(err, master.ErrNotFound))

	_, err = svc.Undo(ctx, "warehouse")
	assert.True(t, errors.Is(err, master.ErrValidation))
}

func TestUndo_EmptyScope(t *testing.T) {
	svc := newService(t)

	_, err := svc.Undo(context.Background(), master.EntityCourse)
	assert.True(t, errors.Is(err, undo.ErrNothingToUndo))
}
