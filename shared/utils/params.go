package utils

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DateLayout is the format of date query parameters
const DateLayout = "2006-01-02"

// ParamUUID parses the path parameter name as a UUID
func ParamUUID(c *gin.Context, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, ValidationError("Invalid " + label + " ID")
	}
	return id, nil
}

// QueryDate parses the query parameter name as a calendar date in the server's
// time zone. An absent parameter yields nil.
func QueryDate(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(DateLayout, raw, time.Local)
	if err != nil {
		return nil, ValidationError("Invalid " + name + " date, expected YYYY-MM-DD")
	}
	return &day, nil
}

// StartOfDay returns midnight of t's day in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
