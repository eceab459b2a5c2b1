package routes

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	msgEventNotFound = "The event doesn't exist!"
	msgNameRequired  = "The event name is required!"
	msgDateRequired  = "The event date with the correct format is required! The correct format is YYYY-MM-DD!"
	msgStartInvalid  = "The start_time must be a date in the format YYYY-MM-DD!"
	msgEndInvalid    = "The end_time must be a date in the format YYYY-MM-DD!"
	msgBadRequest    = "Could not parse request data."
)

// listEventsQuery is GET /event/. Both bounds must be present for a range query.
type listEventsQuery struct {
	StartTime string `form:"start_time" binding:"omitempty,datetime=2006-01-02"`
	EndTime   string `form:"end_time" binding:"omitempty,datetime=2006-01-02"`
}

// createEventInput is POST /event/, from a form or a JSON body.
type createEventInput struct {
	Event string `form:"event" json:"event" binding:"required"`
	Date  string `form:"date" json:"date" binding:"required,datetime=2006-01-02"`
}

// parseEventID accepts the same ids as an <int:event_id> route: plain
// non-negative decimal digits.
func parseEventID(raw string) (int64, bool) {
	if raw == "" || raw[0] == '+' || raw[0] == '-' {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// wire name and message per schema field
var fieldErrors = map[string][2]string{
	"Event":     {"event", msgNameRequired},
	"Date":      {"date", msgDateRequired},
	"StartTime": {"start_time", msgStartInvalid},
	"EndTime":   {"end_time", msgEndInvalid},
}

var jsonFieldErrors = map[string]string{
	"event": msgNameRequired,
	"date":  msgDateRequired,
}

// fieldMessages turns a binding error into {"field": "message"}. ok is false
// when the error does not point at a known field.
func fieldMessages(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := map[string]string{}
		for _, fe := range verrs {
			if fm, ok := fieldErrors[fe.StructField()]; ok {
				out[fm[0]] = fm[1]
			}
		}
		return out, len(out) > 0
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if msg, ok := jsonFieldErrors[typeErr.Field]; ok {
			return map[string]string{typeErr.Field: msg}, true
		}
	}
	return nil, false
}
