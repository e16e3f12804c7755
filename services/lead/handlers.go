package lead

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// BulkDeleteRequest represents the bulk delete request
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// Stats summarises the leads visible to the caller
type Stats struct {
	Total   int64 `json:"total"`
	Today   int64 `json:"today"`
	Main    int64 `json:"main"`
	Partial int64 `json:"partial"`
}

// FilterFromQuery reads the type, source, from and to query parameters.
// Dates are calendar days; to is inclusive.
func FilterFromQuery(c *gin.Context) (repository.LeadFilter, error) {
	var filter repository.LeadFilter

	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		leadType, ok := models.ParseLeadType(raw)
		if !ok {
			return filter, utils.ValidationError("Invalid lead type")
		}
		filter.Type = leadType
	}
	filter.Source = strings.TrimSpace(c.Query("source"))

	from, err := utils.QueryDate(c, "from")
	if err != nil {
		return filter, err
	}
	to, err := utils.QueryDate(c, "to")
	if err != nil {
		return filter, err
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}
	if from != nil && to != nil && !from.Before(*to) {
		return filter, utils.ValidationError("from must not be after to")
	}
	filter.From, filter.To = from, to
	return filter, nil
}

// handleListLeads lists the leads visible to the caller, newest first
func handleListLeads(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := FilterFromQuery(c)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		leads, err := d.Leads.List(c.Request.Context(), middleware.GetScope(c), filter)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Leads retrieved successfully", leads)
	}
}

// handleGetLead returns one lead visible to the caller
func handleGetLead(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "lead")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		lead, err := d.Leads.Get(c.Request.Context(), middleware.GetScope(c), id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Lead retrieved successfully", lead)
	}
}

// handleDeleteLead deletes one lead visible to the caller
func handleDeleteLead(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "lead")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := d.Leads.Delete(c.Request.Context(), middleware.GetScope(c), id); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"lead_id":    id,
			"deleted_by": c.GetString(middleware.ContextUserID),
		}).Info("Lead deleted")

		utils.OKResponse(c, "Lead deleted successfully", nil)
	}
}

// handleBulkDelete deletes the listed leads that are visible to the caller.
// Leads outside the scope are skipped, not reported.
func handleBulkDelete(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BulkDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Invalid request format"))
			return
		}
		if len(req.IDs) == 0 {
			utils.AbortWithError(c, utils.ValidationError("No leads selected"))
			return
		}

		ids := make([]uuid.UUID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				utils.AbortWithError(c, utils.ValidationError("Invalid lead ID: "+raw))
				return
			}
			ids = append(ids, id)
		}

		deleted, err := d.Leads.DeleteMany(c.Request.Context(), middleware.GetScope(c), ids)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"requested":  len(ids),
			"deleted":    deleted,
			"deleted_by": c.GetString(middleware.ContextUserID),
		}).Info("Leads bulk deleted")

		utils.OKResponse(c, "Leads deleted successfully", gin.H{"deleted": deleted})
	}
}

// handleLeadStats counts the caller's leads in total, today and per type
func handleLeadStats(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := CountStats(c.Request.Context(), d.Leads, middleware.GetScope(c), d.now())
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Lead stats retrieved successfully", stats)
	}
}

// CountStats runs the stats counts concurrently. "Today" starts at local midnight of now.
func CountStats(ctx context.Context, leads repository.LeadStore, scope policy.Scope, now time.Time) (Stats, error) {
	var stats Stats
	today := utils.StartOfDay(now)

	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int64, filter repository.LeadFilter) {
		g.Go(func() error {
			n, err := leads.Count(ctx, scope, filter)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(&stats.Total, repository.LeadFilter{})
	count(&stats.Today, repository.LeadFilter{From: &today})
	count(&stats.Main, repository.LeadFilter{Type: models.LeadTypeMain})
	count(&stats.Partial, repository.LeadFilter{Type: models.LeadTypePartial})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
