package service

import (
	"context"
	"strings"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/protocol"
	"classroom_chat/internal/repository"
	"classroom_chat/pkg/logger"
)

// GroupService - каталог групп: создание, состав, синхронизация с зачислениями курса
type GroupService interface {
	CreateGroup(ctx context.Context, creator *domain.User, req protocol.CreateGroup) (*domain.ChatGroup, error)
	AddMembers(ctx context.Context, actor *domain.User, groupID int64, memberIDs []int64) (*domain.ChatGroup, error)
	RemoveMembers(ctx context.Context, actor *domain.User, groupID int64, memberIDs []int64) (*domain.ChatGroup, error)
	SyncCourseRoster(ctx context.Context, actor *domain.User, groupID, courseID int64) (*domain.ChatGroup, error)
	GetUserGroups(ctx context.Context, userID int64) ([]*domain.ChatGroup, error)
	GetGroup(ctx context.Context, groupID int64) (*domain.ChatGroup, error)
}

type groupService struct {
	groupRepo      repository.GroupRepository
	userRepo       repository.UserRepository
	enrollmentRepo repository.EnrollmentRepository
	audit          AuditService
	notifier       Notifier
	locks          *KeyedMutex
	lookupTimeout  time.Duration
	log            logger.Logger
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	enrollmentRepo repository.EnrollmentRepository,
	audit AuditService,
	notifier Notifier,
	locks *KeyedMutex,
	lookupTimeout time.Duration,
	log logger.Logger,
) GroupService {
	return &groupService{
		groupRepo:      groupRepo,
		userRepo:       userRepo,
		enrollmentRepo: enrollmentRepo,
		audit:          audit,
		notifier:       notifier,
		locks:          locks,
		lookupTimeout:  lookupTimeout,
		log:            log,
	}
}

func (s *groupService) CreateGroup(ctx context.Context, creator *domain.User, req protocol.CreateGroup) (*domain.ChatGroup, error) {
	name := strings.TrimSpace(req.Name)

	var courseID *int64
	var students []int64
	if domain.RosterDerived(req.Type) {
		if req.CourseID == nil {
			return nil, validationError("courseId is required for %s groups", req.Type)
		}
		if !creator.CanCreateCourseGroups() {
			return nil, forbiddenError("only teachers and admins can create %s groups", req.Type)
		}
		id := *req.CourseID
		courseID = &id

		var err error
		students, err = s.courseStudents(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	rosterIDs := uniqueIDs([]int64{creator.ID}, students, req.MemberIDs)
	users, err := s.loadUsers(ctx, rosterIDs)
	if err != nil {
		return nil, err
	}

	group := &domain.ChatGroup{
		Name:      name,
		Type:      req.Type,
		CourseID:  courseID,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC(),
		Members:   make([]domain.GroupMember, 0, len(rosterIDs)),
	}
	for _, id := range rosterIDs {
		role := domain.GroupRoleMember
		if id == creator.ID {
			role = domain.GroupRoleOwner
		}
		group.Members = append(group.Members, domain.GroupMember{UserID: id, Role: role, UserName: users[id].Name})
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, internalError("create group", err)
	}

	s.log.Info("Group created", "group_id", group.ID, "type", group.Type, "created_by", creator.ID, "members", len(group.Members))
	s.logAudit(ctx, creator, group.ID, domain.EventTypeGroupCreated, map[string]interface{}{
		"name":       group.Name,
		"type":       group.Type,
		"member_ids": rosterIDs,
	})

	s.notifier.Notify([]int64{creator.ID}, protocol.GroupCreated{ChatGroup: *group})
	s.notifier.Notify(without(rosterIDs, creator.ID), protocol.GroupJoined{ChatGroup: *group})

	return group, nil
}

func (s *groupService) AddMembers(ctx context.Context, actor *domain.User, groupID int64, memberIDs []int64) (*domain.ChatGroup, error) {
	unlock := s.locks.Lock(groupKey(groupID))
	defer unlock()

	group, err := s.manageableGroup(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	added, err := s.addMembersLocked(ctx, group, memberIDs)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return group, nil
	}

	s.log.Info("Group members added", "group_id", group.ID, "actor_id", actor.ID, "added", added)
	s.logAudit(ctx, actor, group.ID, domain.EventTypeMembersAdded, map[string]interface{}{"member_ids": added})
	s.announceAdded(group, actor, added)

	return group, nil
}

func (s *groupService) RemoveMembers(ctx context.Context, actor *domain.User, groupID int64, memberIDs []int64) (*domain.ChatGroup, error) {
	unlock := s.locks.Lock(groupKey(groupID))
	defer unlock()

	group, err := s.manageableGroup(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	var removed []int64
	for _, id := range uniqueIDs(memberIDs) {
		if group.HasMember(id) {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return group, nil
	}

	if err := s.groupRepo.RemoveMembers(ctx, group.ID, removed); err != nil {
		return nil, internalError("remove group members", err)
	}

	gone := make(map[int64]struct{}, len(removed))
	for _, id := range removed {
		gone[id] = struct{}{}
	}
	kept := group.Members[:0:0]
	for _, m := range group.Members {
		if _, ok := gone[m.UserID]; !ok {
			kept = append(kept, m)
		}
	}
	group.Members = kept

	s.log.Info("Group members removed", "group_id", group.ID, "actor_id", actor.ID, "removed", removed)
	s.logAudit(ctx, actor, group.ID, domain.EventTypeMembersRemoved, map[string]interface{}{"member_ids": removed})

	s.notifier.Notify(removed, protocol.GroupLeft{GroupID: group.ID})
	s.notifier.Notify(uniqueIDs(group.MemberIDs(), []int64{actor.ID}), protocol.GroupUpdated{ChatGroup: *group})

	return group, nil
}

// SyncCourseRoster только добавляет: отчисленные студенты остаются в группе до явного удаления
func (s *groupService) SyncCourseRoster(ctx context.Context, actor *domain.User, groupID, courseID int64) (*domain.ChatGroup, error) {
	unlock := s.locks.Lock(groupKey(groupID))
	defer unlock()

	group, err := s.manageableGroup(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}

	students, err := s.courseStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}

	added, err := s.addMembersLocked(ctx, group, students)
	if err != nil {
		return nil, err
	}

	s.log.Info("Course roster synced", "group_id", group.ID, "course_id", courseID, "added", len(added))
	s.logAudit(ctx, actor, group.ID, domain.EventTypeRosterSynced, map[string]interface{}{
		"course_id":  courseID,
		"member_ids": added,
	})
	if len(added) > 0 {
		s.announceAdded(group, actor, added)
	}

	return group, nil
}

func (s *groupService) GetUserGroups(ctx context.Context, userID int64) ([]*domain.ChatGroup, error) {
	groups, err := s.groupRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError("list user groups", err)
	}
	if groups == nil {
		groups = []*domain.ChatGroup{}
	}
	return groups, nil
}

func (s *groupService) GetGroup(ctx context.Context, groupID int64) (*domain.ChatGroup, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, internalError("load group", err)
	}
	return group, nil
}

func (s *groupService) manageableGroup(ctx context.Context, actor *domain.User, groupID int64) (*domain.ChatGroup, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.CanManage(actor) {
		return nil, forbiddenError("only the group creator or an admin can change group %d", groupID)
	}
	return group, nil
}

// addMembersLocked сохраняет новых участников и дописывает их в group. Вызывать под блокировкой группы
func (s *groupService) addMembersLocked(ctx context.Context, group *domain.ChatGroup, memberIDs []int64) ([]int64, error) {
	var newIDs []int64
	for _, id := range uniqueIDs(memberIDs) {
		if !group.HasMember(id) {
			newIDs = append(newIDs, id)
		}
	}
	if len(newIDs) == 0 {
		return nil, nil
	}

	users, err := s.loadUsers(ctx, newIDs)
	if err != nil {
		return nil, err
	}

	members := make([]domain.GroupMember, 0, len(newIDs))
	for _, id := range newIDs {
		members = append(members, domain.GroupMember{UserID: id, Role: domain.GroupRoleMember, UserName: users[id].Name})
	}

	if err := s.groupRepo.AddMembers(ctx, group.ID, members); err != nil {
		return nil, internalError("add group members", err)
	}
	group.Members = append(group.Members, members...)

	return newIDs, nil
}

func (s *groupService) announceAdded(group *domain.ChatGroup, actor *domain.User, added []int64) {
	s.notifier.Notify(added, protocol.GroupJoined{ChatGroup: *group})

	others := uniqueIDs(group.MemberIDs(), []int64{actor.ID})
	isNew := make(map[int64]struct{}, len(added))
	for _, id := range added {
		isNew[id] = struct{}{}
	}
	existing := others[:0:0]
	for _, id := range others {
		if _, ok := isNew[id]; !ok {
			existing = append(existing, id)
		}
	}
	s.notifier.Notify(existing, protocol.GroupUpdated{ChatGroup: *group})
}

func (s *groupService) courseStudents(ctx context.Context, courseID int64) ([]int64, error) {
	lookupCtx, cancel := withLookupTimeout(ctx, s.lookupTimeout)
	defer cancel()

	students, err := s.enrollmentRepo.ListCourseStudents(lookupCtx, courseID)
	if err != nil {
		err = lookupError(lookupCtx, "enrollment lookup", err)
		s.log.Warn("Failed to load course roster", "course_id", courseID, "error", err)
		return nil, internalError("load course roster", err)
	}
	return students, nil
}

// loadUsers проверяет, что все пользователи существуют
func (s *groupService) loadUsers(ctx context.Context, ids []int64) (map[int64]*domain.User, error) {
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, internalError("load users", err)
	}

	byID := make(map[int64]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, notFoundError("users %v do not exist", missing)
	}
	return byID, nil
}

func (s *groupService) logAudit(ctx context.Context, actor *domain.User, groupID int64, eventType string, payload map[string]interface{}) {
	if err := s.audit.LogEvent(ctx, actor, &groupID, eventType, payload); err != nil {
		s.log.Warn("Failed to write audit log", "event_type", eventType, "group_id", groupID, "error", err)
	}
}
