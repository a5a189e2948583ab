package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maastricht-university/upsot-pipeline/orchestrator"
	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/params"
	"github.com/maastricht-university/upsot-pipeline/scoring"
	"github.com/maastricht-university/upsot-pipeline/storage"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound),
		errors.Is(err, orchestrator.ErrAudioNotFound):
		return http.StatusNotFound
	case errors.Is(err, scoring.ErrInvalidScript),
		errors.Is(err, params.ErrInvalidParameter),
		errors.Is(err, params.ErrNoParameters),
		errors.Is(err, output.ErrUnsupportedFormat),
		errors.Is(err, storage.ErrEmptyAudio),
		errors.Is(err, orchestrator.ErrNoUpSots),
		errors.Is(err, orchestrator.ErrNoOutputs),
		errors.Is(err, orchestrator.ErrFormatUnavailable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func failErr(c *gin.Context, err error) {
	fail(c, statusOf(err), err.Error())
}

// fieldErrors renders rejected parameter fields as field -> reason.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	for _, fe := range params.Fields(err) {
		out[fe.Field] = fe.Reason
	}
	return out
}
