package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newTimetableMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPostgresTimetableRepositoryReferenceData(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewPostgresTimetableRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, grade, section, subject FROM courses ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "grade", "section", "subject"}).
			AddRow("c1", "9", "A", "Math").
			AddRow("c2", "9", "A", "Science"))
	courses, err := repo.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, models.Label("9"), courses[0].Grade)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT t.id AS teacher_id, u.name FROM teachers t JOIN users u ON u.id = t.user_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "name"}).AddRow("t1", "Mr. Lee"))
	directory, err := repo.TeacherDirectory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mr. Lee", directory["t1"])

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT course_id, teacher_id FROM teacher_assignments`)).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "teacher_id"}).
			AddRow("c1", "t2").
			AddRow("c1", "t1"))
	courseTeachers, err := repo.CourseTeachers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", courseTeachers["c1"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTimetableRepositoryLoadSchedule(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewPostgresTimetableRepository(db)

	p1 := string(models.Periods[0])
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT day, class_key, period, is_break, subject, teacher_id, teacher_name FROM schedule_cells`)).
		WillReturnRows(sqlmock.NewRows([]string{"day", "class_key", "period", "is_break", "subject", "teacher_id", "teacher_name"}).
			AddRow("Monday", "Grade 9A", p1, false, "Math", "t1", "Mr. Lee").
			AddRow("Monday", "Grade 9A", string(models.PeriodLunch), true, nil, nil, nil).
			AddRow("Monday", "Grade 9A", string(models.Periods[1]), false, "Art", nil, "Unassigned"))

	schedule, err := repo.LoadSchedule(context.Background())
	require.NoError(t, err)

	cell, ok := schedule.Cell(models.DayMonday, "Grade 9A", models.Period(p1))
	require.True(t, ok)
	assert.Equal(t, "Math", cell.Subject)
	assert.Equal(t, "t1", cell.TeacherIDValue())

	lunch, ok := schedule.Cell(models.DayMonday, "Grade 9A", models.PeriodLunch)
	require.True(t, ok)
	assert.True(t, lunch.Break)

	art, _ := schedule.Cell(models.DayMonday, "Grade 9A", models.Periods[1])
	assert.Nil(t, art.TeacherID)
	assert.Equal(t, models.UnassignedTeacherName, art.TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTimetableRepositorySaveSchedule(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewPostgresTimetableRepository(db)

	teacherID := "t1"
	schedule := models.Schedule{}
	schedule.SetCell(models.DayMonday, "Grade 9A", models.Periods[0], models.Cell{Subject: "Math", TeacherID: &teacherID, TeacherName: "Mr. Lee"})
	schedule.SetCell(models.DayMonday, "Grade 9A", models.PeriodLunch, models.BreakCell())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM schedule_cells").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO schedule_cells").
		WithArgs("Monday", "Grade 9A", string(models.Periods[0]), false, "Math", "t1", "Mr. Lee").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schedule_cells").
		WithArgs("Monday", "Grade 9A", string(models.PeriodLunch), true, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveSchedule(context.Background(), schedule))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTimetableRepositorySaveScheduleRollsBack(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewPostgresTimetableRepository(db)

	schedule := models.Schedule{}
	schedule.SetCell(models.DayMonday, "Grade 9A", models.PeriodLunch, models.BreakCell())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM schedule_cells").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schedule_cells").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveSchedule(context.Background(), schedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert schedule cell")
	assert.NoError(t, mock.ExpectationsWereMet())
}
