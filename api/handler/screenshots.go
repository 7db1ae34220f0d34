package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/croscope/croscope/capture"
	"github.com/croscope/croscope/models"
)

// maxUploadBytes caps one uploaded screenshot at 20 MB.
const maxUploadBytes = 20 << 20

// PostScreenshots returns a handler for POST /api/v1/screenshots.
//
// Accepts multipart form uploads under the "files" field. Each file is
// stored as <name>_manual.png; subsequent analyses of a URL whose derived
// name matches use the upload instead of a live capture.
func PostScreenshots(store *capture.ManualStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.UploadResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "expected multipart form upload",
				},
			})
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, models.UploadResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "no files provided under the 'files' field",
				},
			})
			return
		}

		saved := make([]string, 0, len(files))
		for _, fh := range files {
			if fh.Size > maxUploadBytes {
				c.JSON(http.StatusRequestEntityTooLarge, models.UploadResponse{
					Saved: saved,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: fh.Filename + " exceeds the 20MB upload limit",
					},
				})
				return
			}

			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusInternalServerError, models.UploadResponse{
					Saved: saved,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInternal,
						Message: "failed to read " + fh.Filename,
					},
				})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				c.JSON(http.StatusInternalServerError, models.UploadResponse{
					Saved: saved,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInternal,
						Message: "failed to read " + fh.Filename,
					},
				})
				return
			}

			name, err := store.Save(fh.Filename, data)
			if err != nil {
				c.JSON(http.StatusInternalServerError, models.UploadResponse{
					Saved: saved,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInternal,
						Message: "failed to store " + fh.Filename,
					},
				})
				return
			}
			saved = append(saved, name)
		}

		c.JSON(http.StatusOK, models.UploadResponse{Saved: saved})
	}
}
