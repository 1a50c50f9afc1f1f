package services

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"

	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/metrics"
	"ekaai-backend/internal/models"
)

const (
	WaitlistStudent    = "student"
	WaitlistInstructor = "instructor"
	WaitlistUniversity = "university"

	notBlankTag = "notblank"
	phoneTag    = "phone"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)

// WaitlistAPI is the registration backend.
type WaitlistAPI interface {
	RegisterStudent(ctx context.Context, r *models.StudentRegistration) (*models.WaitlistResult, error)
	RegisterInstructor(ctx context.Context, r *models.InstructorRegistration) (*models.WaitlistResult, error)
	RegisterUniversity(ctx context.Context, r *models.UniversityRegistration) (*models.WaitlistResult, error)
}

type WaitlistService struct {
	api        WaitlistAPI
	validate   *validator.Validate
	translator ut.Translator
	rec        metrics.Recorder
	log        *zap.Logger
}

func NewWaitlistService(api WaitlistAPI, rec metrics.Recorder) *WaitlistService {
	if rec == nil {
		rec = metrics.Noop{}
	}
	v, trans := newValidator()
	return &WaitlistService{
		api:        api,
		validate:   v,
		translator: trans,
		rec:        rec,
		log:        logger.Named("waitlist"),
	}
}

// RegisterStudent validates locally and only calls the backend when the form is complete.
func (s *WaitlistService) RegisterStudent(ctx context.Context, r *models.StudentRegistration) (*models.WaitlistResult, error) {
	return s.register(ctx, WaitlistStudent, r, func() (*models.WaitlistResult, error) {
		return s.api.RegisterStudent(ctx, r)
	})
}

func (s *WaitlistService) RegisterInstructor(ctx context.Context, r *models.InstructorRegistration) (*models.WaitlistResult, error) {
	return s.register(ctx, WaitlistInstructor, r, func() (*models.WaitlistResult, error) {
		return s.api.RegisterInstructor(ctx, r)
	})
}

func (s *WaitlistService) RegisterUniversity(ctx context.Context, r *models.UniversityRegistration) (*models.WaitlistResult, error) {
	return s.register(ctx, WaitlistUniversity, r, func() (*models.WaitlistResult, error) {
		return s.api.RegisterUniversity(ctx, r)
	})
}

func (s *WaitlistService) register(ctx context.Context, kind string, form any, call func() (*models.WaitlistResult, error)) (*models.WaitlistResult, error) {
	if err := s.Validate(form); err != nil {
		s.rec.RecordWaitlist(kind, "invalid")
		return nil, err
	}

	res, err := call()
	if err != nil {
		s.rec.RecordWaitlist(kind, "error")
		s.log.Warn("waitlist registration failed", zap.String("kind", kind), zap.Error(err))
		return nil, err
	}
	s.rec.RecordWaitlist(kind, "ok")
	return res, nil
}

// Validate returns a *ValidationError keyed by JSON field name, or nil.
func (s *WaitlistService) Validate(form any) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = fe.Translate(s.translator)
		}
	}
	return &ValidationError{Fields: fields}
}

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(phoneTag, validPhone)

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, phoneTag} {
		_ = v.RegisterTranslation(tag, trans, noop, translateCustom)
	}
	return v, trans
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " is required"
	case phoneTag:
		return "phone must be a valid phone number"
	}
	return ""
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// validPhone accepts an optional leading + and up to 16 digits, ignoring
// spaces, dashes and parentheses.
func validPhone(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(str)
	return phonePattern.MatchString(cleaned)
}
