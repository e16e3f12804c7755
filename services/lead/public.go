package lead

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/utils"
)

// FlexString accepts a JSON string or number. Web forms send phone numbers as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("must be a string or a number")
	}
	*f = FlexString(n.String())
	return nil
}

// SubmitLeadRequest is the body posted by a public website form
type SubmitLeadRequest struct {
	Name         string                 `json:"name" binding:"required"`
	Phone        FlexString             `json:"phone" binding:"required"`
	Email        string                 `json:"email"`
	Message      string                 `json:"message"`
	LeadType     string                 `json:"lead_type"`
	FormID       string                 `json:"form_id"`
	LPURL        string                 `json:"lpurl"`
	CustomFields map[string]interface{} `json:"custom_fields"`
}

// toLead validates the request and builds the lead for tenantID
func (r SubmitLeadRequest) toLead(tenantID uuid.UUID) (*models.Lead, error) {
	name := strings.TrimSpace(r.Name)
	phone := strings.TrimSpace(string(r.Phone))
	if name == "" || phone == "" {
		return nil, utils.ValidationError("Name and phone are required")
	}

	leadType, ok := models.ParseLeadType(r.LeadType)
	if !ok {
		return nil, utils.ValidationError("Invalid lead type")
	}
	if err := models.ValidateCustomFields(r.CustomFields); err != nil {
		return nil, utils.ValidationError("Invalid custom fields: " + err.Error())
	}

	lead := &models.Lead{
		ID:           uuid.New(),
		Name:         name,
		Email:        strings.TrimSpace(r.Email),
		Phone:        phone,
		Message:      strings.TrimSpace(r.Message),
		LeadType:     leadType,
		FormID:       strings.TrimSpace(r.FormID),
		LPURL:        strings.TrimSpace(r.LPURL),
		CustomFields: r.CustomFields,
		TenantID:     tenantID,
	}
	if lead.LPURL != "" {
		lead.Attribution = utils.ParseTrackingURL(lead.LPURL)
	}
	return lead, nil
}

// bindError maps a failed bind to the message a form author can act on.
// Only missing required fields come back from the validator; anything else
// is a body that did not decode.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return utils.ValidationError("Name and phone are required")
	}
	return utils.ValidationError("Invalid request format")
}

// handleSubmitLead stores a lead posted by a tenant's website form.
// The route is public; the tenant is resolved from the slug.
func handleSubmitLead(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := models.NormalizeSlug(c.Param("slug"))

		var req SubmitLeadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, bindError(err))
			return
		}

		ctx := c.Request.Context()
		tenant, err := d.Tenants.GetBySlug(ctx, slug)
		if err != nil {
			abortSubmit(c, slug, err)
			return
		}
		if !tenant.IsActive {
			utils.AbortWithError(c, utils.AuthorizationError("Tenant is disabled"))
			return
		}

		lead, err := req.toLead(tenant.ID)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := d.Leads.Create(ctx, lead); err != nil {
			abortSubmit(c, slug, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"lead_id":   lead.ID,
			"tenant_id": tenant.ID,
			"lead_type": lead.LeadType,
			"source":    lead.Source(),
		}).Info("Lead submitted")

		utils.OKResponse(c, "Lead submitted successfully", nil)
	}
}

// abortSubmit answers a failed submission. Server-side failures get a generic body.
func abortSubmit(c *gin.Context, slug string, err error) {
	if utils.StatusCode(err) < http.StatusInternalServerError {
		utils.AbortWithError(c, err)
		return
	}
	logrus.WithError(err).WithField("slug", slug).Error("Failed to store lead")
	c.AbortWithStatusJSON(http.StatusInternalServerError, utils.APIResponse{
		Success: false,
		Error:   "Server error",
	})
}
