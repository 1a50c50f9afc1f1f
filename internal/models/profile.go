package models

import "time"

const (
	LanguageEnglish = "english"
	LanguageHindi   = "hindi"
	LanguageOther   = "other"

	StudyTimeLessThanOne = "less-than-1"
	StudyTimeOneToTwo    = "1-2"
	StudyTimeMoreThanTwo = "more-than-2"

	StyleStepByStep       = "step-by-step"
	StyleQuickSummaries   = "quick-summaries"
	StyleRealLifeExamples = "real-life-examples"
	StyleInteractive      = "interactive-questions"
)

var (
	PreferredLanguages = []string{LanguageEnglish, LanguageHindi, LanguageOther}
	DailyStudyTimes    = []string{StudyTimeLessThanOne, StudyTimeOneToTwo, StudyTimeMoreThanTwo}
	ExplanationStyles  = []string{StyleStepByStep, StyleQuickSummaries, StyleRealLifeExamples, StyleInteractive}
)

// Profile is the application's view of a learner. ID always equals the owning user id.
type Profile struct {
	ID                        string    `json:"id"`
	FullName                  string    `json:"fullName"`
	Email                     string    `json:"email"`
	PreferredLanguage         string    `json:"preferredLanguage"`
	CurrentGrade              string    `json:"currentGrade"`
	Subjects                  []string  `json:"subjects"`
	IsPreparingForExam        bool      `json:"isPreparingForExam"`
	ExamName                  *string   `json:"examName,omitempty"`
	LearningGoals             []string  `json:"learningGoals"`
	DailyStudyTime            string    `json:"dailyStudyTime"`
	PreferredExplanationStyle string    `json:"preferredExplanationStyle"`
	LearningChallenge         string    `json:"learningChallenge"`
	StartingTopic             *string   `json:"startingTopic,omitempty"`
	YoutubeLink               *string   `json:"youtubeLink,omitempty"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

// ProfileRow mirrors the persisted profiles table.
type ProfileRow struct {
	ID                        string    `json:"id"`
	FullName                  *string   `json:"full_name"`
	Email                     *string   `json:"email"`
	PreferredLanguage         *string   `json:"preferred_language"`
	CurrentGrade              *string   `json:"current_grade"`
	Subjects                  []string  `json:"subjects"`
	IsPreparingForExam        *bool     `json:"is_preparing_for_exam"`
	ExamName                  *string   `json:"exam_name"`
	LearningGoals             []string  `json:"learning_goals"`
	DailyStudyTime            *string   `json:"daily_study_time"`
	PreferredExplanationStyle *string   `json:"preferred_explanation_style"`
	LearningChallenge         *string   `json:"learning_challenge"`
	StartingTopic             *string   `json:"starting_topic"`
	YoutubeLink               *string   `json:"youtube_link"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// ToProfile maps the stored row to the view model. Null columns become zero values.
func (r *ProfileRow) ToProfile() *Profile {
	p := &Profile{
		ID:                        r.ID,
		FullName:                  deref(r.FullName),
		Email:                     deref(r.Email),
		PreferredLanguage:         deref(r.PreferredLanguage),
		CurrentGrade:              deref(r.CurrentGrade),
		Subjects:                  nonNil(r.Subjects),
		ExamName:                  r.ExamName,
		LearningGoals:             nonNil(r.LearningGoals),
		DailyStudyTime:            deref(r.DailyStudyTime),
		PreferredExplanationStyle: deref(r.PreferredExplanationStyle),
		LearningChallenge:         deref(r.LearningChallenge),
		StartingTopic:             r.StartingTopic,
		YoutubeLink:               r.YoutubeLink,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}
	if r.IsPreparingForExam != nil {
		p.IsPreparingForExam = *r.IsPreparingForExam
	}
	return p
}

// ProfileUpdate is a partial profile. Nil fields are left untouched by an upsert.
type ProfileUpdate struct {
	FullName                  *string   `json:"fullName,omitempty"`
	Email                     *string   `json:"email,omitempty"`
	PreferredLanguage         *string   `json:"preferredLanguage,omitempty"`
	CurrentGrade              *string   `json:"currentGrade,omitempty"`
	Subjects                  *[]string `json:"subjects,omitempty"`
	IsPreparingForExam        *bool     `json:"isPreparingForExam,omitempty"`
	ExamName                  *string   `json:"examName,omitempty"`
	LearningGoals             *[]string `json:"learningGoals,omitempty"`
	DailyStudyTime            *string   `json:"dailyStudyTime,omitempty"`
	PreferredExplanationStyle *string   `json:"preferredExplanationStyle,omitempty"`
	LearningChallenge         *string   `json:"learningChallenge,omitempty"`
	StartingTopic             *string   `json:"startingTopic,omitempty"`
	YoutubeLink               *string   `json:"youtubeLink,omitempty"`
}

// Columns returns the set fields keyed by column name, in a stable order.
func (u *ProfileUpdate) Columns() ([]string, []any) {
	var cols []string
	var vals []any
	add := func(col string, set bool, v any) {
		if set {
			cols = append(cols, col)
			vals = append(vals, v)
		}
	}
	add("full_name", u.FullName != nil, u.FullName)
	add("email", u.Email != nil, u.Email)
	add("preferred_language", u.PreferredLanguage != nil, u.PreferredLanguage)
	add("current_grade", u.CurrentGrade != nil, u.CurrentGrade)
	if u.Subjects != nil {
		add("subjects", true, *u.Subjects)
	}
	add("is_preparing_for_exam", u.IsPreparingForExam != nil, u.IsPreparingForExam)
	add("exam_name", u.ExamName != nil, u.ExamName)
	if u.LearningGoals != nil {
		add("learning_goals", true, *u.LearningGoals)
	}
	add("daily_study_time", u.DailyStudyTime != nil, u.DailyStudyTime)
	add("preferred_explanation_style", u.PreferredExplanationStyle != nil, u.PreferredExplanationStyle)
	add("learning_challenge", u.LearningChallenge != nil, u.LearningChallenge)
	add("starting_topic", u.StartingTopic != nil, u.StartingTopic)
	add("youtube_link", u.YoutubeLink != nil, u.YoutubeLink)
	return cols, vals
}

func (u *ProfileUpdate) Empty() bool {
	cols, _ := u.Columns()
	return len(cols) == 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
