package repository

import (
	"context"
	"errors"
	"fmt"

	"classroom_chat/internal/domain"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRepository interface {
	// Create сохраняет группу вместе с участниками в одной транзакции
	Create(ctx context.Context, group *domain.ChatGroup) error
	GetByID(ctx context.Context, id int64) (*domain.ChatGroup, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.ChatGroup, error)
	AddMembers(ctx context.Context, groupID int64, members []domain.GroupMember) error
	RemoveMembers(ctx context.Context, groupID int64, userIDs []int64) error
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
}

type groupRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewGroupRepository(db *pgxpool.Pool, log logger.Logger) GroupRepository {
	return &groupRepository{db: db, log: log}
}

const insertMemberQuery = `
	INSERT INTO chat_group_members (group_id, user_id, role, joined_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (group_id, user_id) DO NOTHING
`

func (r *groupRepository) Create(ctx context.Context, group *domain.ChatGroup) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chat_groups (name, type, course_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query, group.Name, group.Type, group.CourseID, group.CreatedBy).
		Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		r.log.Error("Failed to create group", "error", err)
		return err
	}

	if err := r.insertMembers(ctx, tx, group.ID, group.Members); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit group creation", "error", err, "group_id", group.ID)
		return err
	}

	return nil
}

func (r *groupRepository) insertMembers(ctx context.Context, tx pgx.Tx, groupID int64, members []domain.GroupMember) error {
	if len(members) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range members {
		batch.Queue(insertMemberQuery, groupID, m.UserID, m.Role)
	}

	results := tx.SendBatch(ctx, batch)
	for range members {
		if _, err := results.Exec(); err != nil {
			results.Close()
			r.log.Error("Failed to insert group member", "error", err, "group_id", groupID)
			return err
		}
	}
	return results.Close()
}

func (r *groupRepository) GetByID(ctx context.Context, id int64) (*domain.ChatGroup, error) {
	query := `
		SELECT id, name, type, course_id, created_by, created_at
		FROM chat_groups
		WHERE id = $1
	`

	group := &domain.ChatGroup{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.Type, &group.CourseID, &group.CreatedBy, &group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("group %d: %w", id, apperrors.ErrNotFound)
		}
		r.log.Error("Failed to get group by ID", "error", err, "group_id", id)
		return nil, err
	}

	members, err := r.loadMembers(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	group.Members = members[id]
	if group.Members == nil {
		group.Members = []domain.GroupMember{}
	}

	return group, nil
}

func (r *groupRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.ChatGroup, error) {
	query := `
		SELECT g.id, g.name, g.type, g.course_id, g.created_by, g.created_at
		FROM chat_groups g
		JOIN chat_group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list user groups", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	groups := []*domain.ChatGroup{}
	ids := []int64{}
	for rows.Next() {
		group := &domain.ChatGroup{}
		if err := rows.Scan(&group.ID, &group.Name, &group.Type, &group.CourseID, &group.CreatedBy, &group.CreatedAt); err != nil {
			r.log.Error("Failed to scan group", "error", err)
			return nil, err
		}
		groups = append(groups, group)
		ids = append(ids, group.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := r.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		g.Members = members[g.ID]
		if g.Members == nil {
			g.Members = []domain.GroupMember{}
		}
	}

	return groups, nil
}

func (r *groupRepository) loadMembers(ctx context.Context, groupIDs []int64) (map[int64][]domain.GroupMember, error) {
	out := make(map[int64][]domain.GroupMember, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT m.group_id, m.user_id, m.role, u.name
		FROM chat_group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ANY($1)
		ORDER BY m.group_id, m.joined_at, m.user_id
	`

	rows, err := r.db.Query(ctx, query, groupIDs)
	if err != nil {
		r.log.Error("Failed to load group members", "error", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var groupID int64
		var m domain.GroupMember
		if err := rows.Scan(&groupID, &m.UserID, &m.Role, &m.UserName); err != nil {
			r.log.Error("Failed to scan group member", "error", err)
			return nil, err
		}
		out[groupID] = append(out[groupID], m)
	}

	return out, rows.Err()
}

func (r *groupRepository) AddMembers(ctx context.Context, groupID int64, members []domain.GroupMember) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.insertMembers(ctx, tx, groupID, members); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *groupRepository) RemoveMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `
		DELETE FROM chat_group_members
		WHERE group_id = $1 AND user_id = ANY($2)
	`

	if _, err := r.db.Exec(ctx, query, groupID, userIDs); err != nil {
		r.log.Error("Failed to remove group members", "error", err, "group_id", groupID)
		return err
	}

	return nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_group_members WHERE group_id = $1 AND user_id = $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, groupID, userID).Scan(&exists); err != nil {
		r.log.Error("Failed to check group membership", "error", err, "group_id", groupID)
		return false, err
	}

	return exists, nil
}
