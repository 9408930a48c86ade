package authz

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmorales/aulalink/internal/rostergraph"
)

func newTestResolver(t *testing.T) (*Resolver, *rostergraph.Store) {
	t.Helper()

	store, err := rostergraph.Open(filepath.Join(t.TempDir(), "graph.db"), slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })

	return NewResolver(store, slog.Default()), store
}

func relate(t *testing.T, store *rostergraph.Store, edgeType string, from, to rostergraph.Ref) {
	t.Helper()
	require.NoError(t, store.Relate(context.Background(), rostergraph.Edge{Type: edgeType, From: from, To: to}))
}

func TestResolveNoRoles(t *testing.T) {
	r, _ := newTestResolver(t)

	role, err := r.Resolve(context.Background(), "stranger", "c1")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role.Primary)
	assert.False(t, role.IsOwner)
	assert.False(t, role.IsTeacher)
	assert.False(t, role.IsCoord)
	assert.False(t, role.IsStudent)
	assert.Nil(t, role.OwnedCell)
}

func TestResolvePrimaryRolePriority(t *testing.T) {
	r, store := newTestResolver(t)

	user := rostergraph.NewRef(rostergraph.KindUser, "u1")
	course := rostergraph.NewRef(rostergraph.KindCourse, "c1")

	relate(t, store, rostergraph.EdgeStudent, user, course)

	role, err := r.Resolve(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, role.Primary)

	relate(t, store, rostergraph.EdgeTeacher, user, course)

	role, err = r.Resolve(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, role.Primary)

	relate(t, store, rostergraph.EdgeOwner, user, course)

	role, err = r.Resolve(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role.Primary)

	// Primary never suppresses the individual flags.
	assert.True(t, role.IsOwner)
	assert.True(t, role.IsTeacher)
	assert.True(t, role.IsStudent)
	assert.False(t, role.IsCoord)
}

func TestResolveOwnedCell(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	teacher := rostergraph.NewRef(rostergraph.KindUser, "t1")
	course := rostergraph.NewRef(rostergraph.KindCourse, "c1")
	cell := rostergraph.NewRef(rostergraph.KindCell, "cell-1")
	student := rostergraph.NewRef(rostergraph.KindUser, "s1")

	require.NoError(t, store.UpsertEntity(ctx, cell, rostergraph.Attrs{"name": "Group A"}))
	require.NoError(t, store.UpsertEntity(ctx, student, rostergraph.Attrs{"name": "Ana"}))

	relate(t, store, rostergraph.EdgeTeacher, teacher, course)
	relate(t, store, rostergraph.EdgeBelongsTo, cell, teacher)
	relate(t, store, rostergraph.EdgeFrom, cell, course)
	relate(t, store, rostergraph.EdgeIn, student, cell)

	role, err := r.Resolve(ctx, "t1", "c1")
	require.NoError(t, err)
	require.NotNil(t, role.OwnedCell)
	assert.Equal(t, "cell-1", role.OwnedCell.ID)
	assert.Equal(t, "Group A", role.OwnedCell.Name)
	require.Len(t, role.OwnedCell.Students, 1)
	assert.Equal(t, "Ana", role.OwnedCell.Students[0].Attrs.String("name"))
}

func TestResolveOwnedCellScopedToCourse(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	teacher := rostergraph.NewRef(rostergraph.KindUser, "t1")
	course := rostergraph.NewRef(rostergraph.KindCourse, "c1")
	otherCourse := rostergraph.NewRef(rostergraph.KindCourse, "c2")
	cell := rostergraph.NewRef(rostergraph.KindCell, "cell-other")

	require.NoError(t, store.UpsertEntity(ctx, cell, rostergraph.Attrs{"name": "Other"}))

	// The teacher's only cell belongs to a different course.
	relate(t, store, rostergraph.EdgeTeacher, teacher, course)
	relate(t, store, rostergraph.EdgeBelongsTo, cell, teacher)
	relate(t, store, rostergraph.EdgeFrom, cell, otherCourse)

	role, err := r.Resolve(ctx, "t1", "c1")
	require.NoError(t, err)
	assert.True(t, role.IsTeacher)
	assert.Nil(t, role.OwnedCell)
}

func TestResolveCellNotLoadedForNonTeachers(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	owner := rostergraph.NewRef(rostergraph.KindUser, "o1")
	course := rostergraph.NewRef(rostergraph.KindCourse, "c1")
	cell := rostergraph.NewRef(rostergraph.KindCell, "cell-1")

	relate(t, store, rostergraph.EdgeOwner, owner, course)

	// A stray belongs_to edge to a non-teacher is ignored.
	relate(t, store, rostergraph.EdgeBelongsTo, cell, owner)
	relate(t, store, rostergraph.EdgeFrom, cell, course)

	role, err := r.Resolve(ctx, "o1", "c1")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role.Primary)
	assert.Nil(t, role.OwnedCell)
}
