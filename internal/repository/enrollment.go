package repository

import (
	"context"

	"classroom_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository - источник составов групп курса/секции/класса
type EnrollmentRepository interface {
	ListCourseStudents(ctx context.Context, courseID int64) ([]int64, error)
}

type enrollmentRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewEnrollmentRepository(db *pgxpool.Pool, log logger.Logger) EnrollmentRepository {
	return &enrollmentRepository{db: db, log: log}
}

func (r *enrollmentRepository) ListCourseStudents(ctx context.Context, courseID int64) ([]int64, error) {
	query := `
		SELECT e.student_id
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1 AND e.status = 'active' AND u.is_active
		ORDER BY e.student_id
	`

	rows, err := r.db.Query(ctx, query, courseID)
	if err != nil {
		r.log.Error("Failed to list course students", "error", err, "course_id", courseID)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			r.log.Error("Failed to scan enrollment", "error", err)
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
