package domain

import "time"

// PregnancyDays is the nominal length of a pregnancy counted from the last menstrual period.
const PregnancyDays = 280

const (
	PregnancyStatusPregnant = "pregnant"
	PregnancyStatusDue      = "due"
)

type PregnancyInfo struct {
	DueDate           string `json:"dueDate"`
	LastMenstrualDate string `json:"lastMenstrualDate"`
	CurrentWeek       int    `json:"currentWeek"`
	CurrentDay        int    `json:"currentDay"`
	DaysToDue         int    `json:"daysToDue"`
	Trimester         int    `json:"trimester"`
	PregnancyStatus   string `json:"pregnancyStatus"`
	BabyName          string `json:"babyName,omitempty"`
	BabyGender        string `json:"babyGender,omitempty"`
}

// CivilDate truncates t to midnight UTC of its calendar day in t's location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDueDate parses a YYYY-MM-DD date.
func ParseDueDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// Pregnancy derives the progress summary for a due date as of now.
func Pregnancy(due, now time.Time) PregnancyInfo {
	due = CivilDate(due)
	lmp := due.AddDate(0, 0, -PregnancyDays)
	completed := int(CivilDate(now).Sub(lmp).Hours() / 24)
	if completed < 0 {
		completed = 0
	}
	week := completed / 7
	info := PregnancyInfo{
		DueDate:           due.Format(time.DateOnly),
		LastMenstrualDate: lmp.Format(time.DateOnly),
		CurrentWeek:       week,
		CurrentDay:        completed % 7,
		DaysToDue:         max(0, PregnancyDays-completed),
		PregnancyStatus:   PregnancyStatusPregnant,
	}
	switch {
	case week <= 12:
		info.Trimester = 1
	case week <= 28:
		info.Trimester = 2
	default:
		info.Trimester = 3
	}
	if completed >= PregnancyDays {
		info.PregnancyStatus = PregnancyStatusDue
	}
	return info
}

// FamilyPregnancy returns the summary for f, or nil when no due date is recorded.
func FamilyPregnancy(f *Family, now time.Time) *PregnancyInfo {
	if f == nil || f.DueDate == "" {
		return nil
	}
	due, err := ParseDueDate(f.DueDate)
	if err != nil {
		return nil
	}
	info := Pregnancy(due, now)
	info.BabyName = f.BabyName
	info.BabyGender = GenderName(f.BabyGender)
	return &info
}
