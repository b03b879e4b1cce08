package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Day is one of the five school days.
type Day string

const (
	DayMonday    Day = "Monday"
	DayTuesday   Day = "Tuesday"
	DayWednesday Day = "Wednesday"
	DayThursday  Day = "Thursday"
	DayFriday    Day = "Friday"
)

// Days lists school days in timetable order.
var Days = []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday}

// Period labels a timetable slot within a day.
type Period string

// PeriodLunch is the non-assignable break slot.
const PeriodLunch Period = "LUNCH"

// Periods lists every slot of a day in order, including lunch.
var Periods = []Period{
	"P1 (2:00–2:45)",
	"P2 (2:45–3:30)",
	"P3 (3:30–4:15)",
	"P4 (4:15–5:00)",
	"P5 (5:00–5:45)",
	PeriodLunch,
	"P6 (7:15–8:00)",
	"P7 (8:00–8:45)",
	"P8 (8:45–9:30)",
}

// AssignablePeriods returns the ordered periods excluding lunch.
func AssignablePeriods() []Period {
	result := make([]Period, 0, len(Periods)-1)
	for _, p := range Periods {
		if p == PeriodLunch {
			continue
		}
		result = append(result, p)
	}
	return result
}

// IsValidDay reports whether d is a school day.
func IsValidDay(d Day) bool {
	for _, day := range Days {
		if day == d {
			return true
		}
	}
	return false
}

// IsValidPeriod reports whether p is a known period label.
func IsValidPeriod(p Period) bool {
	for _, period := range Periods {
		if period == p {
			return true
		}
	}
	return false
}

// ClassKey identifies one grade+section timetable, e.g. "Grade 9A".
type ClassKey string

// NewClassKey builds the class key for a grade and section.
func NewClassKey(grade, section string) ClassKey {
	return ClassKey(fmt.Sprintf("Grade %s%s", grade, section))
}

// Label is a string that tolerates numeric JSON values.
type Label string

// UnmarshalJSON accepts both `"9"` and `9`.
func (l *Label) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*l = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("label must be string or number: %w", err)
	}
	*l = Label(n.String())
	return nil
}

// Course is a subject offered to one grade+section.
type Course struct {
	ID      string `db:"id" json:"id"`
	Grade   Label  `db:"grade" json:"grade"`
	Section string `db:"section" json:"section"`
	Subject string `db:"subject" json:"subject"`
}

// TeacherDirectory maps teacher IDs to display names.
type TeacherDirectory map[string]string

// CourseTeacherMap maps course IDs to the assigned teacher ID.
type CourseTeacherMap map[string]string

// UnassignedTeacherName is shown for courses without a mapped teacher.
const UnassignedTeacherName = "Unassigned"

// ReferenceData bundles the read-only inputs of the scheduling engine.
type ReferenceData struct {
	Courses        []Course         `json:"courses"`
	Teachers       TeacherDirectory `json:"teachers"`
	CourseTeachers CourseTeacherMap `json:"courseTeachers"`
}

// CoursesFor returns the courses offered to a grade+section, ordered by ID.
func (r ReferenceData) CoursesFor(grade, section string) []Course {
	result := make([]Course, 0)
	for _, c := range r.Courses {
		if string(c.Grade) == grade && c.Section == section {
			result = append(result, c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// TeacherFor resolves the mapped teacher of a course. ok is false when unmapped.
func (r ReferenceData) TeacherFor(courseID string) (teacherID string, ok bool) {
	teacherID, ok = r.CourseTeachers[courseID]
	if teacherID == "" {
		return "", false
	}
	return teacherID, ok
}

// TeacherName resolves a display name, falling back to the unassigned label.
func (r ReferenceData) TeacherName(teacherID string) string {
	if teacherID == "" {
		return UnassignedTeacherName
	}
	if name, ok := r.Teachers[teacherID]; ok && name != "" {
		return name
	}
	return UnassignedTeacherName
}

// Assignment builds the cell for a course, deriving teacher id and name from
// the reference data so the cached name always matches the id.
func (r ReferenceData) Assignment(course Course) Cell {
	cell := Cell{Subject: course.Subject, TeacherName: UnassignedTeacherName}
	if teacherID, ok := r.TeacherFor(course.ID); ok {
		id := teacherID
		cell.TeacherID = &id
		cell.TeacherName = r.TeacherName(teacherID)
	}
	return cell
}

// Classes groups section letters by grade.
func (r ReferenceData) Classes() []ClassGroup {
	sections := make(map[string]map[string]struct{})
	for _, c := range r.Courses {
		grade := string(c.Grade)
		if grade == "" || c.Section == "" {
			continue
		}
		if sections[grade] == nil {
			sections[grade] = make(map[string]struct{})
		}
		sections[grade][c.Section] = struct{}{}
	}
	groups := make([]ClassGroup, 0, len(sections))
	for grade, set := range sections {
		list := make([]string, 0, len(set))
		for s := range set {
			list = append(list, s)
		}
		sort.Strings(list)
		groups = append(groups, ClassGroup{Grade: grade, Sections: list})
	}
	sort.Slice(groups, func(i, j int) bool {
		a, errA := strconv.Atoi(groups[i].Grade)
		b, errB := strconv.Atoi(groups[j].Grade)
		if errA == nil && errB == nil {
			return a < b
		}
		return groups[i].Grade < groups[j].Grade
	})
	return groups
}

// ClassGroup lists the sections available for a grade.
type ClassGroup struct {
	Grade    string   `json:"grade"`
	Sections []string `json:"sections"`
}

// Cell is one timetable slot: either a break or a subject assignment.
type Cell struct {
	Break       bool    `json:"break,omitempty"`
	Subject     string  `json:"subject,omitempty"`
	TeacherID   *string `json:"teacherId,omitempty"`
	TeacherName string  `json:"teacherName,omitempty"`
}

// BreakCell returns the lunch marker cell.
func BreakCell() Cell {
	return Cell{Break: true}
}

// TeacherIDValue returns the teacher id or "" when unassigned.
func (c Cell) TeacherIDValue() string {
	if c.TeacherID == nil {
		return ""
	}
	return *c.TeacherID
}

// Equal compares two cells by value.
func (c Cell) Equal(other Cell) bool {
	return c.Break == other.Break &&
		c.Subject == other.Subject &&
		c.TeacherIDValue() == other.TeacherIDValue() &&
		(c.TeacherID == nil) == (other.TeacherID == nil) &&
		c.TeacherName == other.TeacherName
}

func (c Cell) clone() Cell {
	if c.TeacherID != nil {
		id := *c.TeacherID
		c.TeacherID = &id
	}
	return c
}

// DayPlan holds one class's cells for a single day.
type DayPlan map[Period]Cell

// ClassWeek holds one class's cells for every day.
type ClassWeek map[Day]DayPlan

// Schedule is the whole grid: Day -> ClassKey -> Period -> Cell.
type Schedule map[Day]map[ClassKey]DayPlan

// Clone returns a structural deep copy.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for day, classes := range s {
		dayCopy := make(map[ClassKey]DayPlan, len(classes))
		for key, plan := range classes {
			dayCopy[key] = plan.Clone()
		}
		out[day] = dayCopy
	}
	return out
}

// Clone returns a deep copy of the plan.
func (p DayPlan) Clone() DayPlan {
	if p == nil {
		return nil
	}
	out := make(DayPlan, len(p))
	for period, cell := range p {
		out[period] = cell.clone()
	}
	return out
}

// Cell looks up a single cell.
func (s Schedule) Cell(day Day, key ClassKey, period Period) (Cell, bool) {
	cell, ok := s[day][key][period]
	return cell, ok
}

// Week extracts a class's cells for every day that has any.
func (s Schedule) Week(key ClassKey) ClassWeek {
	week := make(ClassWeek)
	for day, classes := range s {
		if plan, ok := classes[key]; ok {
			week[day] = plan.Clone()
		}
	}
	return week
}

// SetWeek replaces a class's week in place. Callers operate on a clone.
func (s Schedule) SetWeek(key ClassKey, week ClassWeek) {
	for day, plan := range week {
		if s[day] == nil {
			s[day] = make(map[ClassKey]DayPlan)
		}
		s[day][key] = plan
	}
}

// SetCell writes one cell in place. Callers operate on a clone.
func (s Schedule) SetCell(day Day, key ClassKey, period Period, cell Cell) {
	if s[day] == nil {
		s[day] = make(map[ClassKey]DayPlan)
	}
	if s[day][key] == nil {
		s[day][key] = make(DayPlan)
	}
	s[day][key][period] = cell
}

// Equal compares two schedules by value, treating nil and empty maps alike.
func (s Schedule) Equal(other Schedule) bool {
	return s.contains(other) && other.contains(s)
}

func (s Schedule) contains(other Schedule) bool {
	for day, classes := range s {
		for key, plan := range classes {
			for period, cell := range plan {
				got, ok := other.Cell(day, key, period)
				if !ok || !got.Equal(cell) {
					return false
				}
			}
		}
	}
	return true
}

// WorkloadEntry counts the periods a teacher holds in one class week.
type WorkloadEntry struct {
	TeacherName string `json:"name"`
	Periods     int    `json:"classes"`
}

// ClassSelection is the active grade+section and its filtered courses.
type ClassSelection struct {
	Grade   string   `json:"grade"`
	Section string   `json:"section"`
	Key     ClassKey `json:"classKey"`
	Courses []Course `json:"courses"`
}

// TeacherOption is a selectable teacher for a course.
type TeacherOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EditorDraft holds the uncommitted subject and teacher of an open cell.
type EditorDraft struct {
	CourseID  string `json:"courseId"`
	TeacherID string `json:"teacherId"`
}

// EditorState is either closed, or open on one day+period with a draft.
type EditorState struct {
	Open   bool        `json:"open"`
	Day    Day         `json:"day,omitempty"`
	Period Period      `json:"period,omitempty"`
	Draft  EditorDraft `json:"draft"`
}
