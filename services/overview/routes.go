package overview

import (
	"github.com/gin-gonic/gin"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/utils"
)

// RegisterRoutes mounts the overview route under rg
func RegisterRoutes(rg *gin.RouterGroup, reporter *Reporter, auth *middleware.AuthMiddleware) {
	rg.GET("/overview",
		auth.RequireAuth(),
		auth.ResolveScope(),
		auth.RequireSuperAdmin(policy.ActionViewOverview),
		handleOverview(reporter),
	)
}

// handleOverview returns the platform-wide counts
func handleOverview(reporter *Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reporter.Report(c.Request.Context())
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Overview retrieved successfully", report)
	}
}
