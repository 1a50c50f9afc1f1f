package models

type StudentRegistration struct {
	FirstName            string   `json:"firstName" validate:"notblank"`
	LastName             string   `json:"lastName" validate:"notblank"`
	Email                string   `json:"email" validate:"required,email"`
	Phone                string   `json:"phone,omitempty" validate:"omitempty,phone"`
	DateOfBirth          string   `json:"dateOfBirth,omitempty"`
	Grade                string   `json:"grade" validate:"notblank"`
	School               string   `json:"school" validate:"notblank"`
	Subjects             []string `json:"subjects" validate:"min=1,dive,notblank"`
	LearningGoals        string   `json:"learningGoals,omitempty"`
	PreviousAIExperience string   `json:"previousAIExperience,omitempty"`
	ReferralSource       string   `json:"referralSource,omitempty"`
}

type InstructorRegistration struct {
	FirstName          string   `json:"firstName" validate:"notblank"`
	LastName           string   `json:"lastName" validate:"notblank"`
	Email              string   `json:"email" validate:"required,email"`
	Phone              string   `json:"phone,omitempty" validate:"omitempty,phone"`
	Title              string   `json:"title" validate:"notblank"`
	Institution        string   `json:"institution" validate:"notblank"`
	Department         string   `json:"department,omitempty"`
	TeachingExperience string   `json:"teachingExperience" validate:"notblank"`
	Subjects           []string `json:"subjects" validate:"min=1,dive,notblank"`
	CurrentTools       []string `json:"currentTools,omitempty"`
	StudentCount       string   `json:"studentCount,omitempty"`
	AIExperience       string   `json:"aiExperience,omitempty"`
	TeachingChallenges string   `json:"teachingChallenges,omitempty"`
	EkaAIInterest      string   `json:"ekaaiInterest,omitempty"`
	ReferralSource     string   `json:"referralSource,omitempty"`
}

type UniversityRegistration struct {
	FirstName         string   `json:"firstName" validate:"notblank"`
	LastName          string   `json:"lastName" validate:"notblank"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone,omitempty" validate:"omitempty,phone"`
	Title             string   `json:"title" validate:"notblank"`
	UniversityName    string   `json:"universityName" validate:"notblank"`
	Department        string   `json:"department,omitempty"`
	UniversityType    string   `json:"universityType" validate:"notblank"`
	StudentPopulation string   `json:"studentPopulation" validate:"notblank"`
	Location          string   `json:"location,omitempty"`
	Website           string   `json:"website,omitempty" validate:"omitempty,url"`
	CurrentLMS        []string `json:"currentLMS,omitempty"`
	AIInitiatives     string   `json:"aiInitiatives,omitempty"`
	Timeline          string   `json:"timeline,omitempty"`
	Budget            string   `json:"budget,omitempty"`
	ReferralSource    string   `json:"referralSource,omitempty"`
}

// WaitlistResult is what every registration call resolves to.
type WaitlistResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OnboardingNotification is posted to the personalization endpoint after a profile write.
type OnboardingNotification struct {
	UserID      string         `json:"userId"`
	ProfileData *ProfileUpdate `json:"profileData"`
	Timestamp   string         `json:"timestamp"`
}
