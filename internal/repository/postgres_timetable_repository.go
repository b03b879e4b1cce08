package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// PostgresTimetableRepository stores timetable collections in PostgreSQL.
type PostgresTimetableRepository struct {
	db *sqlx.DB
}

// NewPostgresTimetableRepository constructs the repository.
func NewPostgresTimetableRepository(db *sqlx.DB) *PostgresTimetableRepository {
	return &PostgresTimetableRepository{db: db}
}

type scheduleCellRow struct {
	Day         string  `db:"day"`
	ClassKey    string  `db:"class_key"`
	Period      string  `db:"period"`
	IsBreak     bool    `db:"is_break"`
	Subject     *string `db:"subject"`
	TeacherID   *string `db:"teacher_id"`
	TeacherName *string `db:"teacher_name"`
}

type directoryRow struct {
	TeacherID string `db:"teacher_id"`
	Name      string `db:"name"`
}

type courseTeacherRow struct {
	CourseID  string `db:"course_id"`
	TeacherID string `db:"teacher_id"`
}

// ListCourses returns every course ordered by id.
func (r *PostgresTimetableRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, grade, section, subject FROM courses ORDER BY id`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// TeacherDirectory resolves teacher display names through their user record.
func (r *PostgresTimetableRepository) TeacherDirectory(ctx context.Context) (models.TeacherDirectory, error) {
	const query = `SELECT t.id AS teacher_id, u.name FROM teachers t JOIN users u ON u.id = t.user_id`
	var rows []directoryRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teacher directory: %w", err)
	}
	directory := make(models.TeacherDirectory, len(rows))
	for _, row := range rows {
		directory[row.TeacherID] = row.Name
	}
	return directory, nil
}

// CourseTeachers builds the course -> teacher map; later assignments win.
func (r *PostgresTimetableRepository) CourseTeachers(ctx context.Context) (models.CourseTeacherMap, error) {
	const query = `SELECT course_id, teacher_id FROM teacher_assignments ORDER BY created_at ASC, id ASC`
	var rows []courseTeacherRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	result := make(models.CourseTeacherMap, len(rows))
	for _, row := range rows {
		result[row.CourseID] = row.TeacherID
	}
	return result, nil
}

// LoadSchedule rebuilds the grid from its cell rows.
func (r *PostgresTimetableRepository) LoadSchedule(ctx context.Context) (models.Schedule, error) {
	const query = `SELECT day, class_key, period, is_break, subject, teacher_id, teacher_name FROM schedule_cells`
	var rows []scheduleCellRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load schedule cells: %w", err)
	}
	schedule := models.Schedule{}
	for _, row := range rows {
		cell := models.BreakCell()
		if !row.IsBreak {
			cell = models.Cell{TeacherID: row.TeacherID}
			if row.Subject != nil {
				cell.Subject = *row.Subject
			}
			if row.TeacherName != nil {
				cell.TeacherName = *row.TeacherName
			}
		}
		schedule.SetCell(models.Day(row.Day), models.ClassKey(row.ClassKey), models.Period(row.Period), cell)
	}
	return schedule, nil
}

// SaveSchedule replaces every stored cell inside one transaction.
func (r *PostgresTimetableRepository) SaveSchedule(ctx context.Context, schedule models.Schedule) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_cells`); err != nil {
		return fmt.Errorf("clear schedule cells: %w", err)
	}

	const insert = `INSERT INTO schedule_cells (day, class_key, period, is_break, subject, teacher_id, teacher_name)
		VALUES (:day, :class_key, :period, :is_break, :subject, :teacher_id, :teacher_name)`
	for _, row := range flattenSchedule(schedule) {
		if _, err = tx.NamedExecContext(ctx, insert, row); err != nil {
			return fmt.Errorf("insert schedule cell %s/%s/%s: %w", row.Day, row.ClassKey, row.Period, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save schedule: %w", err)
	}
	return nil
}

// flattenSchedule emits rows in day, class, period order.
func flattenSchedule(schedule models.Schedule) []scheduleCellRow {
	rows := make([]scheduleCellRow, 0)
	for _, day := range sortedDays(schedule) {
		for _, key := range sortedClassKeys(schedule[day]) {
			plan := schedule[day][key]
			for _, period := range sortedPeriods(plan) {
				cell := plan[period]
				row := scheduleCellRow{
					Day:      string(day),
					ClassKey: string(key),
					Period:   string(period),
					IsBreak:  cell.Break,
				}
				if !cell.Break {
					subject := cell.Subject
					name := cell.TeacherName
					row.Subject = &subject
					row.TeacherID = cell.TeacherID
					row.TeacherName = &name
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}
