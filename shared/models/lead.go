package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LeadType classifies a form submission
type LeadType string

const (
	LeadTypeMain    LeadType = "MAIN"
	LeadTypePartial LeadType = "PARTIAL"
)

// Valid reports whether t is a known classification
func (t LeadType) Valid() bool {
	return t == LeadTypeMain || t == LeadTypePartial
}

// ParseLeadType converts client input into a LeadType. An empty string yields LeadTypeMain.
func ParseLeadType(s string) (LeadType, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LeadTypeMain, true
	}
	t := LeadType(s)
	return t, t.Valid()
}

// Limits applied to Lead.CustomFields
const (
	MaxCustomFields         = 50
	MaxCustomFieldKeyLength = 64
	MaxCustomFieldValueSize = 1024
)

// Attribution holds the marketing parameters captured from a landing page URL.
// Nil means the parameter was not present.
type Attribution struct {
	UTMSource   *string `json:"utm_source" gorm:"column:utm_source;index"`
	UTMMedium   *string `json:"utm_medium" gorm:"column:utm_medium"`
	UTMCampaign *string `json:"utm_campaign" gorm:"column:utm_campaign"`
	UTMTerm     *string `json:"utm_term" gorm:"column:utm_term"`
	UTMContent  *string `json:"utm_content" gorm:"column:utm_content"`
	AdGroupID   *string `json:"adgroupid" gorm:"column:adgroupid"`
	GCLID       *string `json:"gclid" gorm:"column:gclid"`
}

// Empty reports whether no attribution parameter is set
func (a Attribution) Empty() bool {
	return a.UTMSource == nil && a.UTMMedium == nil && a.UTMCampaign == nil &&
		a.UTMTerm == nil && a.UTMContent == nil && a.AdGroupID == nil && a.GCLID == nil
}

// Source returns the display source of a lead, "Direct" when none was captured
func (a Attribution) Source() string {
	if a.UTMSource == nil || *a.UTMSource == "" {
		return "Direct"
	}
	return *a.UTMSource
}

// Lead represents a contact form submission. Leads are never updated after creation.
type Lead struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name         string            `json:"name" gorm:"not null"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Message      string            `json:"message,omitempty"`
	LeadType     LeadType          `json:"lead_type" gorm:"type:varchar(16);not null;default:MAIN;index"`
	LPURL        string            `json:"lpurl,omitempty" gorm:"column:lpurl"`
	FormID       string            `json:"form_id,omitempty"`
	CustomFields datatypes.JSONMap `json:"custom_fields,omitempty" gorm:"type:jsonb"`
	TenantID     uuid.UUID         `json:"tenant_id" gorm:"type:uuid;not null;index"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time         `json:"updated_at"`

	Attribution `gorm:"embedded"`
}

// TableName returns the table name for the Lead model
func (Lead) TableName() string {
	return "leads"
}

// ValidateCustomFields enforces the size and type cap on caller supplied custom fields.
// Values must be scalars.
func ValidateCustomFields(fields map[string]interface{}) error {
	if len(fields) > MaxCustomFields {
		return fmt.Errorf("custom fields exceed %d keys", MaxCustomFields)
	}
	for key, value := range fields {
		if key == "" || utf8.RuneCountInString(key) > MaxCustomFieldKeyLength {
			return fmt.Errorf("custom field key %q must be 1-%d characters", key, MaxCustomFieldKeyLength)
		}
		switch v := value.(type) {
		case nil, bool, float64, float32, int, int64, json.Number:
		case string:
			if utf8.RuneCountInString(v) > MaxCustomFieldValueSize {
				return fmt.Errorf("custom field %q exceeds %d characters", key, MaxCustomFieldValueSize)
			}
		default:
			return fmt.Errorf("custom field %q must be a string, number, boolean or null", key)
		}
	}
	return nil
}
