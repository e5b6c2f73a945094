package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/protocol"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCourseGroup(t *testing.T, env *testEnv) *domain.ChatGroup {
	t.Helper()
	group, err := env.groupSvc.CreateGroup(context.Background(), admin, protocol.CreateGroup{
		Name:      "Math 101",
		Type:      domain.GroupTypeCourse,
		CourseID:  int64Ptr(42),
		MemberIDs: []int64{},
	})
	require.NoError(t, err)
	return group
}

func TestCreateCourseGroupDerivesRoster(t *testing.T) {
	env := newTestEnv(t)
	adminConn := env.connect("admin-1", admin.ID)
	studentConn := env.connect("s3-1", student3.ID)
	adminConn.reset()
	studentConn.reset()

	group := createCourseGroup(t, env)

	assert.Equal(t, []int64{1, 3, 4}, sortedIDs(group.MemberIDs()))
	assert.Equal(t, []int64{1, 3, 4}, env.groups.rosterOf(group.ID))
	assert.Equal(t, admin.ID, group.CreatedBy)
	assert.Equal(t, domain.GroupRoleOwner, group.Members[0].Role)
	assert.Equal(t, "Student Three", group.Members[1].UserName)

	assert.Equal(t, []string{protocol.EventGroupCreated}, adminConn.types(t))
	assert.Equal(t, []string{protocol.EventGroupJoined}, studentConn.types(t))

	require.Len(t, env.audit.logs, 1)
	assert.Equal(t, domain.EventTypeGroupCreated, env.audit.logs[0].EventType)
}

func TestCreateCustomGroupRoster(t *testing.T) {
	env := newTestEnv(t)

	group, err := env.groupSvc.CreateGroup(context.Background(), alice, protocol.CreateGroup{
		Name:      "Study buddies",
		Type:      domain.GroupTypeCustom,
		MemberIDs: []int64{9, 9, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7, 9}, sortedIDs(group.MemberIDs()))
	assert.Nil(t, group.CourseID)
}

func TestCreateGroupRejectsInvalidSpec(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		creator *domain.User
		req     protocol.CreateGroup
		wantErr error
	}{
		{"course without courseId", admin, protocol.CreateGroup{Name: "Math", Type: domain.GroupTypeCourse}, apperrors.ErrValidation},
		{"section without courseId", teacher, protocol.CreateGroup{Name: "Math A", Type: domain.GroupTypeSection}, apperrors.ErrValidation},
		{"student creating course group", student3, protocol.CreateGroup{Name: "Math", Type: domain.GroupTypeCourse, CourseID: int64Ptr(42)}, apperrors.ErrForbidden},
		{"unknown member", alice, protocol.CreateGroup{Name: "Club", Type: domain.GroupTypeCustom, MemberIDs: []int64{404}}, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.groupSvc.CreateGroup(context.Background(), tt.creator, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, env.groups.groups)
}

func TestRemoveMembersIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)
	studentConn := env.connect("s3-1", student3.ID)
	otherConn := env.connect("s4-1", student4.ID)
	studentConn.reset()
	otherConn.reset()

	_, err := env.groupSvc.RemoveMembers(context.Background(), admin, group.ID, []int64{3})
	require.NoError(t, err)
	first := env.groups.rosterOf(group.ID)

	_, err = env.groupSvc.RemoveMembers(context.Background(), admin, group.ID, []int64{3})
	require.NoError(t, err)
	assert.Equal(t, first, env.groups.rosterOf(group.ID))
	assert.Equal(t, []int64{1, 4}, first)

	assert.Equal(t, []protocol.Event{protocol.GroupLeft{GroupID: group.ID}}, studentConn.events(t))
	assert.Equal(t, []string{protocol.EventGroupUpdated}, otherConn.types(t))
}

func TestRemovedMemberCannotPost(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)

	_, err := env.groupSvc.RemoveMembers(context.Background(), admin, group.ID, []int64{3})
	require.NoError(t, err)

	_, err = env.chatSvc.Send(context.Background(), student3, protocol.Target{GroupID: &group.ID}, "still here?")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 0, env.chat.count())
}

func TestMembershipChangesRequireCreatorOrAdmin(t *testing.T) {
	env := newTestEnv(t)

	group, err := env.groupSvc.CreateGroup(context.Background(), teacher, protocol.CreateGroup{
		Name:     "Algebra",
		Type:     domain.GroupTypeClass,
		CourseID: int64Ptr(42),
	})
	require.NoError(t, err)

	_, err = env.groupSvc.AddMembers(context.Background(), student3, group.ID, []int64{5})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = env.groupSvc.RemoveMembers(context.Background(), student3, group.ID, []int64{4})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = env.groupSvc.SyncCourseRoster(context.Background(), student3, group.ID, 42)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, []int64{2, 3, 4}, env.groups.rosterOf(group.ID))

	_, err = env.groupSvc.AddMembers(context.Background(), admin, group.ID, []int64{5})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5}, env.groups.rosterOf(group.ID))
}

func TestAddMembersUnknownUserLeavesRosterUnchanged(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)

	_, err := env.groupSvc.AddMembers(context.Background(), admin, group.ID, []int64{5, 404})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, []int64{1, 3, 4}, env.groups.rosterOf(group.ID))

	_, err = env.groupSvc.AddMembers(context.Background(), admin, 999, []int64{5})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSyncCourseRosterOnlyAdds(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)
	newcomer := env.connect("s5-1", student5.ID)
	newcomer.reset()

	env.enrollments.courses[42] = []int64{3, 5}

	synced, err := env.groupSvc.SyncCourseRoster(context.Background(), admin, group.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, sortedIDs(synced.MemberIDs()))
	assert.Equal(t, []string{protocol.EventGroupJoined}, newcomer.types(t))

	_, err = env.groupSvc.SyncCourseRoster(context.Background(), admin, group.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, env.groups.rosterOf(group.ID))
	assert.Len(t, newcomer.events(t), 1)
}

func TestSyncCourseRosterTimeout(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)

	env.enrollments.delay = time.Second
	svc := NewGroupService(env.groups, env.users, env.enrollments, NewAuditService(env.audit, logger.Nop()),
		env.presence, NewKeyedMutex(), 20*time.Millisecond, logger.Nop())

	_, err := svc.SyncCourseRoster(context.Background(), admin, group.ID, 42)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.True(t, apperrors.Retryable(err))
	assert.Equal(t, []int64{1, 3, 4}, env.groups.rosterOf(group.ID))
}

func TestConcurrentMembershipEdits(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)

	var wg sync.WaitGroup
	for _, id := range []int64{5, 7, 9} {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			_, err := env.groupSvc.AddMembers(context.Background(), admin, group.ID, []int64{id})
			assert.NoError(t, err)
		}(id)
		go func() {
			defer wg.Done()
			_, err := env.groupSvc.RemoveMembers(context.Background(), admin, group.ID, []int64{4})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []int64{1, 3, 5, 7, 9}, env.groups.rosterOf(group.ID))
}

func TestGetUserGroups(t *testing.T) {
	env := newTestEnv(t)
	group := createCourseGroup(t, env)

	groups, err := env.groupSvc.GetUserGroups(context.Background(), student4.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, group.ID, groups[0].ID)

	groups, err = env.groupSvc.GetUserGroups(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
