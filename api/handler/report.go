package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/croscope/croscope/models"
	"github.com/croscope/croscope/report"
)

// GetCSV returns a handler for GET /api/v1/analyze/:id/csv.
// The batch must be finished; in-flight jobs return 409.
func GetCSV() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := loadJob(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.AnalyzeResponse{
				Status: models.JobFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "analysis job not found",
				},
			})
			return
		}
		if job.Status == models.JobProcessing {
			c.JSON(http.StatusConflict, models.AnalyzeResponse{
				Status: models.JobProcessing,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "analysis still in progress",
				},
			})
			return
		}

		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+job.ID+`.csv"`)
		table := report.BuildTable(job.Records)
		if err := table.WriteCSV(c.Writer); err != nil {
			// Header already sent; nothing left to do but log via gin's recovery.
			_ = c.Error(err)
		}
	}
}

// PostNarrative returns a handler for POST /api/v1/analyze/:id/narrative.
func PostNarrative(narrator *report.Narrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NarrativeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NarrativeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		job, ok := loadJob(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.NarrativeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "analysis job not found",
				},
			})
			return
		}
		if job.Status == models.JobProcessing {
			c.JSON(http.StatusConflict, models.NarrativeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "analysis still in progress",
				},
			})
			return
		}

		narrative, err := narrator.Narrate(c.Request.Context(), job.Records, req.Subject)
		if err != nil {
			ae, ok := err.(*models.AnalysisError)
			if !ok {
				ae = models.NewAnalysisError(models.ErrCodeInternal, err.Error(), err)
			}
			c.JSON(http.StatusBadGateway, models.NarrativeResponse{
				Success: false,
				Error:   ae.ToDetail(),
			})
			return
		}

		c.JSON(http.StatusOK, models.NarrativeResponse{
			Success:   true,
			Narrative: narrative,
		})
	}
}
