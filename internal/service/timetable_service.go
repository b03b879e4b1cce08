package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// TimetableServiceConfig governs per-caller session state.
type TimetableServiceConfig struct {
	SessionTTL time.Duration
}

// TimetableService drives class selection, generation, cell editing, period
// reordering and persistence on top of the shared schedule store.
type TimetableService struct {
	store     *ScheduleStore
	rnd       RandomSource
	sessions  *sessionStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewTimetableService wires the timetable engine.
func NewTimetableService(store *ScheduleStore, rnd RandomSource, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg TimetableServiceConfig) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rnd == nil {
		rnd = NewRandomSource(0)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	return &TimetableService{
		store:     store,
		rnd:       rnd,
		sessions:  newSessionStore(cfg.SessionTTL),
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// StartSessionSweeper evicts idle sessions until ctx is done.
func (s *TimetableService) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	s.sessions.startSweeper(ctx, interval, func(removed int) {
		s.logger.Debug("idle timetable sessions evicted", zap.Int("count", removed))
	})
}

// Classes lists grades with their sections.
func (s *TimetableService) Classes() []models.ClassGroup {
	return s.store.Reference().Classes()
}

// Reload refetches reference data and the persisted grid. Unsaved changes to
// the shared grid are discarded for all sessions.
func (s *TimetableService) Reload(ctx context.Context) dto.LoadReport {
	return s.store.Reload(ctx)
}

// Selection returns the caller's current class view.
func (s *TimetableService) Selection(sessionID string) dto.TimetableView {
	var view dto.TimetableView
	_ = s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			view = dto.TimetableView{Workload: []models.WorkloadEntry{}}
			return nil
		}
		view = buildView(selection, s.store.Snapshot())
		return nil
	})
	return view
}

// CurrentSelection returns the caller's selected class.
func (s *TimetableService) CurrentSelection(sessionID string) (models.ClassSelection, error) {
	var selection models.ClassSelection
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		var ok bool
		selection, ok = s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		return nil
	})
	return selection, err
}

// SelectClass activates a grade+section. Switching class closes the editor.
func (s *TimetableService) SelectClass(sessionID string, req dto.SelectClassRequest) (dto.TimetableView, error) {
	req.Grade = strings.TrimSpace(req.Grade)
	req.Section = strings.TrimSpace(req.Section)
	if err := s.validator.Struct(req); err != nil {
		return dto.TimetableView{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class selection payload")
	}
	var view dto.TimetableView
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		choice := &classChoice{Grade: req.Grade, Section: req.Section}
		if session.Selection == nil || *session.Selection != *choice {
			session.Editor = models.EditorState{}
		}
		session.Selection = choice
		selection, _ := s.selection(session)
		view = buildView(selection, s.store.Snapshot())
		return nil
	})
	return view, err
}

// Generate fills the selected class's week from scratch.
func (s *TimetableService) Generate(ctx context.Context, sessionID string) (dto.GenerateResponse, error) {
	var resp dto.GenerateResponse
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		if len(selection.Courses) == 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no courses found for %s", selection.Key))
		}

		week, stats := GenerateClassWeek(s.store.Reference(), selection.Courses, s.rnd)
		committed, err := s.store.Update(func(schedule models.Schedule) error {
			schedule.SetWeek(selection.Key, week)
			return nil
		})
		if err != nil {
			return err
		}
		session.Editor = models.EditorState{}

		s.metrics.RecordGeneration(stats.Fallbacks)
		s.metrics.RecordMutation("generate")
		s.logger.Info("class week generated",
			zap.String("class", string(selection.Key)),
			zap.Int("periods", stats.Periods),
			zap.Int("fallbacks", stats.Fallbacks),
		)
		resp = dto.GenerateResponse{TimetableView: buildView(selection, committed), Stats: stats}
		return nil
	})
	return resp, err
}

// Editor returns the caller's editor state with the draft's candidate teachers.
func (s *TimetableService) Editor(sessionID string) (dto.EditorResponse, error) {
	var resp dto.EditorResponse
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		resp = s.editorResponse(selection, session.Editor)
		return nil
	})
	return resp, err
}

// OpenCell targets a cell of the selected class. Break cells are ignored.
// Opening a different cell abandons any unsaved draft; reopening the open
// cell keeps it.
func (s *TimetableService) OpenCell(sessionID string, req dto.OpenCellRequest) (dto.EditorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EditorResponse{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid open cell payload")
	}
	day, period, err := parseSlot(req.Day, req.Period)
	if err != nil {
		return dto.EditorResponse{}, err
	}
	var resp dto.EditorResponse
	err = s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		editor := newCellEditor(s.store.Reference(), selection)
		next, opened, abandoned := editor.open(session.Editor, s.store.Snapshot(), day, period)
		if abandoned {
			s.logger.Debug("unsaved cell draft abandoned",
				zap.String("class", string(selection.Key)),
				zap.String("day", string(session.Editor.Day)),
				zap.String("period", string(session.Editor.Period)),
			)
		}
		previous := session.Editor
		session.Editor = next
		resp = s.editorResponse(selection, next)
		resp.Changed = opened && next != previous
		resp.Abandoned = abandoned
		return nil
	})
	return resp, err
}

// EditSubject changes the draft subject and derives its teacher.
func (s *TimetableService) EditSubject(sessionID string, req dto.EditSubjectRequest) (dto.EditorResponse, error) {
	return s.editDraft(sessionID, func(editor cellEditor, state models.EditorState) (models.EditorState, error) {
		return editor.editSubject(state, strings.TrimSpace(req.CourseID))
	})
}

// EditTeacher changes the draft teacher among the subject's candidates.
func (s *TimetableService) EditTeacher(sessionID string, req dto.EditTeacherRequest) (dto.EditorResponse, error) {
	return s.editDraft(sessionID, func(editor cellEditor, state models.EditorState) (models.EditorState, error) {
		return editor.editTeacher(state, strings.TrimSpace(req.TeacherID))
	})
}

// SaveCell commits the draft into the grid and closes the editor. A draft
// without a valid subject keeps the editor open.
func (s *TimetableService) SaveCell(sessionID string) (dto.EditorResponse, error) {
	var resp dto.EditorResponse
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		editor := newCellEditor(s.store.Reference(), selection)
		cell, err := editor.save(session.Editor)
		if err != nil {
			return err
		}
		target := session.Editor
		committed, err := s.store.Update(func(schedule models.Schedule) error {
			schedule.SetCell(target.Day, selection.Key, target.Period, cell)
			return nil
		})
		if err != nil {
			return err
		}
		session.Editor = models.EditorState{}
		s.metrics.RecordMutation("edit")

		view := buildView(selection, committed)
		resp = s.editorResponse(selection, session.Editor)
		resp.Changed = true
		resp.Timetable = &view
		return nil
	})
	return resp, err
}

// CancelEdit discards the draft without touching the grid.
func (s *TimetableService) CancelEdit(sessionID string) (dto.EditorResponse, error) {
	var resp dto.EditorResponse
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		resp.Changed = session.Editor.Open
		session.Editor = models.EditorState{}
		resp.Editor = session.Editor
		resp.Candidates = s.editorResponse(selection, session.Editor).Candidates
		return nil
	})
	return resp, err
}

// Reorder swaps two assignable periods of one day for the selected class.
// Missing, equal or out-of-range indices leave the grid unchanged.
func (s *TimetableService) Reorder(sessionID string, req dto.ReorderRequest) (dto.ReorderResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReorderResponse{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload")
	}
	day := models.Day(strings.TrimSpace(req.Day))
	if !models.IsValidDay(day) {
		return dto.ReorderResponse{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	var resp dto.ReorderResponse
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		changed := false
		var committed models.Schedule
		if req.DestinationIndex != nil {
			var err error
			committed, err = s.store.Update(func(schedule models.Schedule) error {
				next, swapped := swapPeriods(schedule[day][selection.Key], *req.SourceIndex, *req.DestinationIndex)
				if !swapped {
					return nil
				}
				if schedule[day] == nil {
					schedule[day] = make(map[models.ClassKey]models.DayPlan)
				}
				schedule[day][selection.Key] = next
				changed = true
				return nil
			})
			if err != nil {
				return err
			}
		}
		if !changed {
			committed = s.store.Snapshot()
		} else {
			s.metrics.RecordMutation("reorder")
		}
		resp = dto.ReorderResponse{TimetableView: buildView(selection, committed), Changed: changed}
		return nil
	})
	return resp, err
}

// Workload counts periods per teacher for the selected class.
func (s *TimetableService) Workload(sessionID string) ([]models.WorkloadEntry, error) {
	var entries []models.WorkloadEntry
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		entries = ComputeWorkload(s.store.Snapshot(), selection.Key)
		return nil
	})
	return entries, err
}

// Save persists the whole grid.
func (s *TimetableService) Save(ctx context.Context) (dto.SaveResponse, error) {
	classes, err := s.store.Persist(ctx)
	if err != nil {
		return dto.SaveResponse{}, err
	}
	return dto.SaveResponse{Classes: classes, SavedAt: time.Now().UTC()}, nil
}

func (s *TimetableService) editDraft(sessionID string, fn func(cellEditor, models.EditorState) (models.EditorState, error)) (dto.EditorResponse, error) {
	var resp dto.EditorResponse
	err := s.sessions.With(sessionID, func(session *timetableSession) error {
		selection, ok := s.selection(session)
		if !ok {
			return errNoClassSelected()
		}
		next, err := fn(newCellEditor(s.store.Reference(), selection), session.Editor)
		if err != nil {
			return err
		}
		resp = s.editorResponse(selection, next)
		resp.Changed = next != session.Editor
		session.Editor = next
		return nil
	})
	return resp, err
}

func (s *TimetableService) editorResponse(selection models.ClassSelection, state models.EditorState) dto.EditorResponse {
	editor := newCellEditor(s.store.Reference(), selection)
	return dto.EditorResponse{
		Editor:     state,
		Candidates: editor.candidates(state.Draft.CourseID),
	}
}

func (s *TimetableService) selection(session *timetableSession) (models.ClassSelection, bool) {
	if session.Selection == nil {
		return models.ClassSelection{}, false
	}
	return s.store.SelectClass(session.Selection.Grade, session.Selection.Section), true
}

func buildView(selection models.ClassSelection, schedule models.Schedule) dto.TimetableView {
	sel := selection
	return dto.TimetableView{
		Selected:  true,
		Selection: &sel,
		Week:      schedule.Week(selection.Key),
		Workload:  ComputeWorkload(schedule, selection.Key),
	}
}

func parseSlot(rawDay, rawPeriod string) (models.Day, models.Period, error) {
	day := models.Day(strings.TrimSpace(rawDay))
	if !models.IsValidDay(day) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", rawDay))
	}
	period := models.Period(strings.TrimSpace(rawPeriod))
	if !models.IsValidPeriod(period) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown period %q", rawPeriod))
	}
	return day, period, nil
}

func errNoClassSelected() error {
	return appErrors.Clone(appErrors.ErrPreconditionFailed, "select a grade and section first")
}
