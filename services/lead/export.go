package lead

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/utils"
)

const (
	exportSheet    = "Leads"
	exportMIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHeader lists the spreadsheet columns in order
var ExportHeader = []string{
	"Created At",
	"Name",
	"Email",
	"Phone",
	"Message",
	"Lead Type",
	"Source",
	"Medium",
	"Campaign",
	"Term",
	"Content",
	"Ad Group ID",
	"GCLID",
	"Landing Page",
	"Form ID",
	"Custom Fields",
	"Tenant ID",
}

var exportColumnWidths = []float64{20, 24, 28, 16, 40, 12, 16, 16, 20, 16, 16, 16, 24, 48, 16, 40, 38}

// handleExportLeads downloads the caller's leads matching the list filters as xlsx
func handleExportLeads(d Deps) gin.HandlerFunc {
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

		data, err := GenerateExport(leads)
		if err != nil {
			utils.AbortWithError(c, utils.PersistenceError(err))
			return
		}

		logrus.WithFields(logrus.Fields{
			"rows":    len(leads),
			"user_id": c.GetString(middleware.ContextUserID),
		}).Info("Leads exported")

		filename := fmt.Sprintf("leads-%s.xlsx", d.now().Format("20060102"))
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, exportMIMEType, data)
	}
}

// GenerateExport renders leads into an xlsx workbook with a styled header row
func GenerateExport(leads []models.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(ExportHeader))
	for i, title := range ExportHeader {
		header[i] = title
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(ExportHeader))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, lead := range leads {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := exportRow(lead)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(lead models.Lead) []interface{} {
	customFields := ""
	if len(lead.CustomFields) > 0 {
		if raw, err := json.Marshal(lead.CustomFields); err == nil {
			customFields = string(raw)
		}
	}
	return []interface{}{
		lead.CreatedAt.Local().Format(time.DateTime),
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Message,
		string(lead.LeadType),
		lead.Source(),
		deref(lead.UTMMedium),
		deref(lead.UTMCampaign),
		deref(lead.UTMTerm),
		deref(lead.UTMContent),
		deref(lead.AdGroupID),
		deref(lead.GCLID),
		lead.LPURL,
		lead.FormID,
		customFields,
		lead.TenantID.String(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
