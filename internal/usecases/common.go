package usecases

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotAvailable replaces absent customer fields in list views.
const NotAvailable = "N/A"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("no_xss", validateNoXSS)
	return v
}

func validateNoXSS(fl validator.FieldLevel) bool {
	value := strings.ToLower(fl.Field().String())
	for _, p := range []string{"<script", "javascript:", "onerror=", "onload=", "<iframe"} {
		if strings.Contains(value, p) {
			return false
		}
	}
	return true
}

// validateStruct maps the first validator failure to a ValidationError.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := "failed " + fe.Tag()
		switch fe.Tag() {
		case "required":
			reason = "is required"
		case "email":
			reason = "must be a valid email"
		case "oneof":
			reason = "must be one of: " + fe.Param()
		case "max":
			reason = "must be at most " + fe.Param() + " characters"
		case "min":
			reason = "must be at least " + fe.Param() + " characters"
		case "no_xss":
			reason = "contains forbidden markup"
		}
		return &entities.ValidationError{Field: fe.Field(), Reason: reason, Err: err}
	}
	return &entities.ValidationError{Reason: err.Error(), Err: err}
}

// recorder writes the audit row and change events that follow a mutation.
// Neither is retried: a failure is logged and the mutation stands.
type recorder struct {
	activities interfaces.ActivityStore
	feed       interfaces.ChangePublisher
	log        logrus.FieldLogger
}

func (r recorder) activity(ctx context.Context, entity entities.EntityType, id, action, description string, meta map[string]interface{}, at time.Time) {
	a := &entities.Activity{
		ID:          uuid.NewString(),
		EntityType:  entity,
		EntityID:    id,
		Action:      action,
		Description: description,
		Metadata:    meta,
		CreatedAt:   at,
	}
	if err := r.activities.AppendActivity(ctx, a); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{"entity": entity, "id": id}).Warn("Failed to append activity")
	}
}

func (r recorder) publish(ctx context.Context, typ entities.EventType, at time.Time, topics []string, fill func(*entities.ChangeEvent)) {
	if r.feed == nil {
		return
	}
	for _, topic := range topics {
		ev := entities.ChangeEvent{Type: typ, Topic: topic, At: at}
		fill(&ev)
		r.feed.Publish(ctx, ev)
	}
}

// PageInfo describes the slice returned by a paginated listing.
type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// paginate returns the [start, end) bounds for filter. A zero limit disables
// paging; a page past the end yields an empty slice.
func paginate(f entities.ListFilter, total int) (start, end int, info *PageInfo) {
	if f.Limit <= 0 {
		return 0, total, nil
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	pages := total / f.Limit
	if total%f.Limit != 0 {
		pages++
	}
	start = total
	if page-1 < pages {
		start = (page - 1) * f.Limit
	}
	end = total
	if f.Limit < total-start {
		end = start + f.Limit
	}
	return start, end, &PageInfo{Page: page, Limit: f.Limit, TotalPages: pages}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func change(field string, value interface{}) string {
	return fmt.Sprintf("%s para %v", field, value)
}

// describeChanges renders an activity line such as
// "Chat status alterado para closed, prioridade alterada para high".
func describeChanges(subject string, changes []string) string {
	if len(changes) == 0 {
		return subject + " atualizado"
	}
	return subject + " " + strings.Join(changes, ", ")
}
