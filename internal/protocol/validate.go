package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"classroom_chat/internal/domain"
	apperrors "classroom_chat/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxContentLength - лимит текста сообщения, если конфигурация не задала свой
const DefaultMaxContentLength = 4000

// Validator проверяет поля намерений по тегам validate и правилам на уровне структуры
type Validator struct {
	validate *validator.Validate
}

var defaultValidator = NewValidator(DefaultMaxContentLength)

func NewValidator(maxContentLength int) *Validator {
	if maxContentLength <= 0 {
		maxContentLength = DefaultMaxContentLength
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterAlias("content", fmt.Sprintf("notblank,max=%d", maxContentLength))

	v.RegisterStructValidation(targetRules, Target{})
	v.RegisterStructValidation(createGroupRules, CreateGroup{})
	v.RegisterStructValidation(getMessagesRules, GetMessages{})
	v.RegisterStructValidation(markReadRules, MarkRead{})

	return &Validator{validate: v}
}

// Struct возвращает ErrValidation с описанием первого нарушенного правила
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, describe(fieldErrs[0]))
	}
	return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
}

// Validate проверяет структуру валидатором по умолчанию
func Validate(s any) error {
	return defaultValidator.Struct(s)
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.ActualTag() {
	case "required", "notblank":
		return field + " is required"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "min":
		return field + " must contain at least " + fe.Param() + " item(s)"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "target":
		return "exactly one of recipientId or groupId is required"
	case "required_for_type":
		return field + " is required for " + fe.Param() + " groups"
	case "conversation":
		return fe.Param() + " history needs " + field + " only"
	case "scope":
		return "senderId and groupId are mutually exclusive"
	default:
		return field + " failed " + fe.ActualTag() + " check"
	}
}

func targetRules(sl validator.StructLevel) {
	t := sl.Current().Interface().(Target)
	if (t.RecipientID == nil) == (t.GroupID == nil) {
		sl.ReportError(t.RecipientID, "recipientId", "RecipientID", "target", "")
	}
}

func createGroupRules(sl validator.StructLevel) {
	g := sl.Current().Interface().(CreateGroup)
	if domain.RosterDerived(g.Type) && g.CourseID == nil {
		sl.ReportError(g.CourseID, "courseId", "CourseID", "required_for_type", g.Type)
	}
}

func getMessagesRules(sl validator.StructLevel) {
	m := sl.Current().Interface().(GetMessages)
	switch m.Type {
	case domain.MessageTypeDirect:
		if m.RecipientID == nil || m.GroupID != nil {
			sl.ReportError(m.RecipientID, "recipientId", "RecipientID", "conversation", m.Type)
		}
	case domain.MessageTypeGroup:
		if m.GroupID == nil || m.RecipientID != nil {
			sl.ReportError(m.GroupID, "groupId", "GroupID", "conversation", m.Type)
		}
	}
}

func markReadRules(sl validator.StructLevel) {
	m := sl.Current().Interface().(MarkRead)
	if m.SenderID != nil && m.GroupID != nil {
		sl.ReportError(m.SenderID, "senderId", "SenderID", "scope", "")
	}
}
