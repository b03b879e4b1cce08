package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func newTimetableServiceForTest(t *testing.T) (*TimetableService, *sourceStub, *MetricsService) {
	t.Helper()
	source := newSourceStub(grade9AReference())
	metrics := NewMetricsService()
	store := NewScheduleStore(source, nil, metrics, zap.NewNop(), ScheduleStoreConfig{})
	store.Load(context.Background())
	svc := NewTimetableService(store, &sequenceRand{picks: []int{0}}, nil, metrics, zap.NewNop(), TimetableServiceConfig{})
	return svc, source, metrics
}

func selectGrade9A(t *testing.T, svc *TimetableService, session string) {
	t.Helper()
	view, err := svc.SelectClass(session, dto.SelectClassRequest{Grade: " 9 ", Section: "A"})
	require.NoError(t, err)
	require.True(t, view.Selected)
	require.Equal(t, models.NewClassKey("9", "A"), view.Selection.Key)
	require.Len(t, view.Selection.Courses, 3)
}

func requireCode(t *testing.T, err error, expected *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, expected.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceRequiresSelection(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)

	assert.False(t, svc.Selection("s1").Selected)

	_, err := svc.Generate(context.Background(), "s1")
	requireCode(t, err, appErrors.ErrPreconditionFailed)
	_, err = svc.Editor("s1")
	requireCode(t, err, appErrors.ErrPreconditionFailed)
	_, err = svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[0])})
	requireCode(t, err, appErrors.ErrPreconditionFailed)
	_, err = svc.Workload("s1")
	requireCode(t, err, appErrors.ErrPreconditionFailed)
	_, err = svc.CurrentSelection("s1")
	requireCode(t, err, appErrors.ErrPreconditionFailed)
}

func TestTimetableServiceSelectClassValidates(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)

	_, err := svc.SelectClass("s1", dto.SelectClassRequest{Grade: "  ", Section: "A"})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestTimetableServiceGenerateWithoutCourses(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	_, err := svc.SelectClass("s1", dto.SelectClassRequest{Grade: "12", Section: "Z"})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "s1")
	requireCode(t, err, appErrors.ErrPreconditionFailed)
	assert.Empty(t, svc.store.Snapshot())
}

func TestTimetableServiceGenerateEditSaveFlow(t *testing.T) {
	svc, source, metrics := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")

	generated, err := svc.Generate(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, generated.Week, len(models.Days))
	assert.Equal(t, "Math", generated.Week[models.DayMonday][models.Periods[0]].Subject)
	assert.Equal(t, len(models.Days)*len(models.AssignablePeriods()), generated.Stats.Periods)

	opened, err := svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[0])})
	require.NoError(t, err)
	assert.True(t, opened.Changed)
	assert.Equal(t, models.EditorDraft{CourseID: "c1", TeacherID: "T1"}, opened.Editor.Draft)
	assert.Equal(t, []models.TeacherOption{{ID: "T1", Name: "Alice"}}, opened.Candidates)

	edited, err := svc.EditSubject("s1", dto.EditSubjectRequest{CourseID: "c2"})
	require.NoError(t, err)
	assert.True(t, edited.Changed)
	assert.Equal(t, []models.TeacherOption{{ID: "T2", Name: "Bob"}}, edited.Candidates)

	_, err = svc.EditTeacher("s1", dto.EditTeacherRequest{TeacherID: "T1"})
	requireCode(t, err, appErrors.ErrValidation)

	saved, err := svc.SaveCell("s1")
	require.NoError(t, err)
	assert.False(t, saved.Editor.Open)
	require.NotNil(t, saved.Timetable)
	cell := saved.Timetable.Week[models.DayMonday][models.Periods[0]]
	assert.Equal(t, "English", cell.Subject)
	assert.Equal(t, "T2", cell.TeacherIDValue())
	assert.Equal(t, "Bob", cell.TeacherName)

	persisted, err := svc.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.Classes)
	require.Len(t, source.saved, 1)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.Generations)
	assert.Equal(t, uint64(2), snapshot.GridMutations)
}

func TestTimetableServiceOpenBreakIsIgnored(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")
	_, err := svc.Generate(context.Background(), "s1")
	require.NoError(t, err)

	resp, err := svc.OpenCell("s1", dto.OpenCellRequest{Day: "Tuesday", Period: string(models.PeriodLunch)})
	require.NoError(t, err)
	assert.False(t, resp.Changed)
	assert.False(t, resp.Editor.Open)

	_, err = svc.OpenCell("s1", dto.OpenCellRequest{Day: "Sunday", Period: string(models.Periods[0])})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: "P9"})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestTimetableServiceCancelEditIsIdempotent(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")
	_, err := svc.Generate(context.Background(), "s1")
	require.NoError(t, err)
	before := svc.store.Snapshot()

	_, err = svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[1])})
	require.NoError(t, err)
	_, err = svc.EditSubject("s1", dto.EditSubjectRequest{CourseID: "c3"})
	require.NoError(t, err)

	first, err := svc.CancelEdit("s1")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	second, err := svc.CancelEdit("s1")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, models.EditorState{}, second.Editor)
	assert.True(t, before.Equal(svc.store.Snapshot()))

	_, err = svc.SaveCell("s1")
	requireCode(t, err, appErrors.ErrPreconditionFailed)
}

func TestTimetableServiceOpeningAnotherCellReportsAbandonedDraft(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")

	_, err := svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[0])})
	require.NoError(t, err)
	_, err = svc.EditSubject("s1", dto.EditSubjectRequest{CourseID: "c2"})
	require.NoError(t, err)

	resp, err := svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[2])})
	require.NoError(t, err)
	assert.True(t, resp.Abandoned)
	assert.Equal(t, models.EditorDraft{}, resp.Editor.Draft)
	assert.Empty(t, svc.store.Snapshot(), "abandoned drafts are never written")
}

func TestTimetableServiceReopeningOpenCellKeepsDraft(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")
	open := dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[0])}

	first, err := svc.OpenCell("s1", open)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	_, err = svc.EditSubject("s1", dto.EditSubjectRequest{CourseID: "c2"})
	require.NoError(t, err)

	again, err := svc.OpenCell("s1", open)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.False(t, again.Abandoned)
	assert.Equal(t, models.EditorDraft{CourseID: "c2", TeacherID: "T2"}, again.Editor.Draft)
}

func TestTimetableServiceReorderWithoutPlanIsNoChange(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")

	source, destination := 0, 1
	resp, err := svc.Reorder("s1", dto.ReorderRequest{Day: "Monday", SourceIndex: &source, DestinationIndex: &destination})
	require.NoError(t, err)
	assert.False(t, resp.Changed)
	assert.Empty(t, svc.store.Snapshot())
}

func TestTimetableServiceSwitchingClassClosesEditor(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")
	_, err := svc.OpenCell("s1", dto.OpenCellRequest{Day: "Monday", Period: string(models.Periods[0])})
	require.NoError(t, err)

	selectGrade9A(t, svc, "s1")
	resp, err := svc.Editor("s1")
	require.NoError(t, err)
	assert.True(t, resp.Editor.Open, "reselecting the same class keeps the editor")

	_, err = svc.SelectClass("s1", dto.SelectClassRequest{Grade: "10", Section: "B"})
	require.NoError(t, err)
	resp, err = svc.Editor("s1")
	require.NoError(t, err)
	assert.False(t, resp.Editor.Open)
}

func TestTimetableServiceReorder(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")
	generated, err := svc.Generate(context.Background(), "s1")
	require.NoError(t, err)
	monday := generated.Week[models.DayMonday]

	source, destination := 0, 1
	resp, err := svc.Reorder("s1", dto.ReorderRequest{Day: "Monday", SourceIndex: &source, DestinationIndex: &destination})
	require.NoError(t, err)
	assert.True(t, resp.Changed)
	assert.Equal(t, monday[models.Periods[1]].Subject, resp.Week[models.DayMonday][models.Periods[0]].Subject)
	assert.Equal(t, monday[models.Periods[0]].Subject, resp.Week[models.DayMonday][models.Periods[1]].Subject)

	cancelled, err := svc.Reorder("s1", dto.ReorderRequest{Day: "Monday", SourceIndex: &source})
	require.NoError(t, err)
	assert.False(t, cancelled.Changed)

	outOfRange := len(models.AssignablePeriods())
	ignored, err := svc.Reorder("s1", dto.ReorderRequest{Day: "Monday", SourceIndex: &source, DestinationIndex: &outOfRange})
	require.NoError(t, err)
	assert.False(t, ignored.Changed)
	assert.Equal(t, resp.Week, ignored.Week)

	_, err = svc.Reorder("s1", dto.ReorderRequest{Day: "Caturday", SourceIndex: &source, DestinationIndex: &destination})
	requireCode(t, err, appErrors.ErrValidation)
	_, err = svc.Reorder("s1", dto.ReorderRequest{Day: "Monday"})
	requireCode(t, err, appErrors.ErrValidation)
}

func TestTimetableServiceSessionsAreIsolated(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "alice")

	_, err := svc.Editor("bob")
	requireCode(t, err, appErrors.ErrPreconditionFailed)

	_, err = svc.Generate(context.Background(), "alice")
	require.NoError(t, err)
	_, err = svc.SelectClass("bob", dto.SelectClassRequest{Grade: "9", Section: "A"})
	require.NoError(t, err)

	entries, err := svc.Workload("bob")
	require.NoError(t, err)
	total := 0
	for _, entry := range entries {
		total += entry.Periods
	}
	assert.Equal(t, len(models.Days)*len(models.AssignablePeriods()), total, "the grid itself is shared")
}

func TestTimetableServiceSaveFailureKeepsGrid(t *testing.T) {
	svc, source, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")
	_, err := svc.Generate(context.Background(), "s1")
	require.NoError(t, err)
	before := svc.store.Snapshot()
	source.failSave = true

	_, err = svc.Save(context.Background())

	requireCode(t, err, appErrors.ErrStoreUnavailable)
	assert.True(t, before.Equal(svc.store.Snapshot()))
	assert.Empty(t, source.saved)
}

func TestTimetableServiceReloadKeepsSessions(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest(t)
	selectGrade9A(t, svc, "s1")

	report := svc.Reload(context.Background())
	assert.Empty(t, report.Failures)
	assert.True(t, svc.Selection("s1").Selected)
	assert.Len(t, svc.Classes(), 2)
}
