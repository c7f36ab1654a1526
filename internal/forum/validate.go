package forum

import (
	"strings"
	"unicode/utf8"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
)

const (
	maxTitleLen   = 100
	maxContentLen = 10000
	maxCommentLen = 1000
)

// EntryInput - поля поста, которые задаёт автор.
type EntryInput struct {
	Title        string            `json:"title"`
	Domain       string            `json:"domain"`
	Major        string            `json:"major"`
	WasteType    domain.WasteType  `json:"wasteType"`
	WasteSubType string            `json:"wasteSubType"`
	Cause        string            `json:"cause"`
	Content      string            `json:"content"`
	Visibility   domain.Visibility `json:"visibility"`
	Media        *domain.Media     `json:"media"`
	Tags         []string          `json:"tags"`
}

// normalize обрезает пробелы и проверяет поля. Ошибки копятся по всем полям.
func (in *EntryInput) normalize() error {
	var fe apperr.FieldErrors

	in.Title = strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(in.Title); n < 1 || n > maxTitleLen {
		fe = append(fe, apperr.FieldError{Field: "title", Message: "title must be 1-100 characters"})
	}
	in.Content = strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(in.Content) > maxContentLen {
		fe = append(fe, apperr.FieldError{Field: "content", Message: "content must be at most 10000 characters"})
	}
	switch in.Visibility {
	case domain.VisibilityPublic, domain.VisibilityPrivate:
	default:
		fe = append(fe, apperr.FieldError{Field: "visibility", Message: "visibility must be public or private"})
	}
	in.Domain = strings.TrimSpace(in.Domain)
	if in.Domain == "" {
		fe = append(fe, apperr.FieldError{Field: "domain", Message: "domain is required"})
	}
	switch in.WasteType {
	case domain.WasteRecyclable, domain.WasteUnrecyclable:
	default:
		fe = append(fe, apperr.FieldError{Field: "wasteType", Message: "invalid waste type"})
	}
	if in.Media != nil {
		switch in.Media.Type {
		case "image", "video":
		default:
			fe = append(fe, apperr.FieldError{Field: "media", Message: "media type must be image or video"})
		}
	}

	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags

	if len(fe) > 0 {
		return apperr.WrapValidation(fe, "request validation failed")
	}
	return nil
}

func (in *EntryInput) apply(e *domain.Entry) {
	e.Title = in.Title
	e.Domain = in.Domain
	e.Major = strings.TrimSpace(in.Major)
	e.WasteType = in.WasteType
	e.WasteSubType = strings.TrimSpace(in.WasteSubType)
	e.Cause = strings.TrimSpace(in.Cause)
	e.Content = in.Content
	e.Visibility = in.Visibility
	e.Media = in.Media
	e.Tags = in.Tags
}

func validateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < 1 || n > maxCommentLen {
		return "", apperr.WrapValidation(apperr.FieldErrors{
			{Field: "content", Message: "comment must be 1-1000 characters"},
		}, "request validation failed")
	}
	return content, nil
}
