package profile

import (
	"errors"
	"slices"
	"strings"

	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

// ValidateUpdate checks only the fields that are set. A YouTube link is
// rewritten to its canonical watch URL.
func ValidateUpdate(u *models.ProfileUpdate) error {
	fields := make(map[string]string)

	if u.FullName != nil && strings.TrimSpace(*u.FullName) == "" {
		fields["fullName"] = "Full name cannot be blank"
	}
	if u.PreferredLanguage != nil && !slices.Contains(models.PreferredLanguages, *u.PreferredLanguage) {
		fields["preferredLanguage"] = "Must be one of: " + strings.Join(models.PreferredLanguages, ", ")
	}
	if u.DailyStudyTime != nil && !slices.Contains(models.DailyStudyTimes, *u.DailyStudyTime) {
		fields["dailyStudyTime"] = "Must be one of: " + strings.Join(models.DailyStudyTimes, ", ")
	}
	if u.PreferredExplanationStyle != nil && !slices.Contains(models.ExplanationStyles, *u.PreferredExplanationStyle) {
		fields["preferredExplanationStyle"] = "Must be one of: " + strings.Join(models.ExplanationStyles, ", ")
	}
	if u.YoutubeLink != nil && strings.TrimSpace(*u.YoutubeLink) != "" {
		link, err := services.NormalizeYouTubeLink(*u.YoutubeLink)
		if err != nil {
			fields["youtubeLink"] = "Not a valid YouTube video link"
		} else {
			u.YoutubeLink = &link
		}
	}

	if len(fields) > 0 {
		return &services.ValidationError{Fields: fields}
	}
	return nil
}

// ValidateOnboarding requires everything the onboarding form collects.
func ValidateOnboarding(u *models.ProfileUpdate) error {
	fields := make(map[string]string)
	required := map[string]*string{
		"fullName":                  u.FullName,
		"preferredLanguage":         u.PreferredLanguage,
		"currentGrade":              u.CurrentGrade,
		"dailyStudyTime":            u.DailyStudyTime,
		"preferredExplanationStyle": u.PreferredExplanationStyle,
	}
	for name, v := range required {
		if v == nil || strings.TrimSpace(*v) == "" {
			fields[name] = "This field is required"
		}
	}
	if u.Subjects == nil || len(*u.Subjects) == 0 {
		fields["subjects"] = "Select at least one subject"
	}
	if u.LearningGoals == nil || len(*u.LearningGoals) == 0 {
		fields["learningGoals"] = "Select at least one learning goal"
	}
	if u.IsPreparingForExam != nil && *u.IsPreparingForExam && (u.ExamName == nil || strings.TrimSpace(*u.ExamName) == "") {
		fields["examName"] = "Tell us which exam you are preparing for"
	}

	var ve *services.ValidationError
	if err := ValidateUpdate(u); errors.As(err, &ve) {
		for k, v := range ve.Fields {
			if _, exists := fields[k]; !exists {
				fields[k] = v
			}
		}
	}

	if len(fields) > 0 {
		return &services.ValidationError{Fields: fields}
	}
	return nil
}
