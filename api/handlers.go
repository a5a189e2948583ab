package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/upsot-pipeline/orchestrator"
	"github.com/maastricht-university/upsot-pipeline/params"
)

const basePath = "/api/transcription"

type handler struct {
	p         *orchestrator.Pipeline
	maxUpload int64
}

// NewRouter builds the HTTP boundary around p.
func NewRouter(p *orchestrator.Pipeline, log logrus.FieldLogger, maxUpload int64) *gin.Engine {
	h := &handler{p: p, maxUpload: maxUpload}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(log))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })

	g := r.Group(basePath)
	g.POST("/upload-audio", h.upload("audio", false))
	g.POST("/record-audio", h.upload("audio_data", true))
	g.POST("/transcribe/:id", h.transcribe)
	g.POST("/set-parameters/:id", h.setParameters)
	g.POST("/set-script/:id", h.setScript)
	g.POST("/generate-output/:id", h.generateOutput)
	g.GET("/download/:id/:format", h.download)
	g.POST("/send-email/:id", h.sendEmail)
	g.GET("/session-info/:id", h.sessionInfo)
	return r
}

func (h *handler) upload(field string, recorded bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile(field)
		if err != nil {
			fail(c, http.StatusBadRequest, "No audio file provided")
			return
		}
		if !recorded && fh.Filename == "" {
			fail(c, http.StatusBadRequest, "Empty filename")
			return
		}
		if h.maxUpload > 0 && fh.Size > h.maxUpload {
			fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Audio exceeds %d bytes", h.maxUpload))
			return
		}
		f, err := fh.Open()
		if err != nil {
			failErr(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			failErr(c, err)
			return
		}

		id, err := h.p.Upload(data, fh.Filename, recorded)
		if err != nil {
			failErr(c, err)
			return
		}
		msg := "Audio uploaded successfully"
		if recorded {
			msg = "Audio recorded successfully"
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "session_id": id, "message": msg})
	}
}

type transcribeBody struct {
	Parameters json.RawMessage `json:"parameters"`
}

func (h *handler) transcribe(c *gin.Context) {
	var body transcribeBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	var (
		partial *params.Partial
		decErr  error
	)
	if len(body.Parameters) > 0 {
		p, err := params.DecodePartial(body.Parameters)
		if !errors.Is(err, params.ErrNoParameters) {
			partial, decErr = &p, err
		}
	}

	id := c.Param("id")
	res, err := h.p.Transcribe(c.Request.Context(), id, partial)
	if err != nil && !errors.Is(err, params.ErrInvalidParameter) {
		failErr(c, err)
		return
	}
	err = errors.Join(decErr, err)
	resp := gin.H{
		"success":         true,
		"session_id":      id,
		"segments_count":  res.SegmentsCount,
		"up_sots_count":   len(res.UpSots),
		"up_sots":         res.UpSots,
		"relaxed":         res.Relaxed,
		"parameters":      res.Parameters,
		"full_transcript": res.FullTranscript,
	}
	if err != nil {
		resp["parameter_errors"] = fieldErrors(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) setParameters(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, "No parameters provided")
		return
	}
	partial, decErr := params.DecodePartial(data)
	if errors.Is(decErr, params.ErrNoParameters) {
		fail(c, http.StatusBadRequest, "No parameters provided")
		return
	}
	sel, err := h.p.SetParameters(c.Param("id"), partial)
	if errors.Is(err, params.ErrNoParameters) {
		// every named field had the wrong type; decErr reports them
		err = nil
	}
	if err != nil && !errors.Is(err, params.ErrInvalidParameter) {
		failErr(c, err)
		return
	}
	err = errors.Join(decErr, err)
	resp := gin.H{"success": err == nil, "parameters": sel.Parameters}
	if sel.Status == orchestrator.StatusSelected {
		resp["up_sots"] = sel.UpSots
		resp["relaxed"] = sel.Relaxed
	}
	if err != nil {
		resp["error"] = err.Error()
		resp["fields"] = fieldErrors(err)
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type scriptBody struct {
	Script string `json:"script" binding:"required"`
}

func (h *handler) setScript(c *gin.Context) {
	var body scriptBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "No script provided")
		return
	}
	info, sel, err := h.p.SetScript(c.Param("id"), body.Script)
	if err != nil {
		failErr(c, err)
		return
	}
	resp := gin.H{"success": true, "script_info": info}
	if sel.Status == orchestrator.StatusSelected {
		resp["up_sots"] = sel.UpSots
	}
	c.JSON(http.StatusOK, resp)
}

type outputBody struct {
	Formats map[string]bool `json:"formats"`
}

func (h *handler) generateOutput(c *gin.Context) {
	var body outputBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	var formats []string
	for f, on := range body.Formats {
		if on {
			formats = append(formats, f)
		}
	}
	sort.Strings(formats)
	if body.Formats != nil && len(formats) == 0 {
		fail(c, http.StatusBadRequest, "No output formats selected")
		return
	}

	id := c.Param("id")
	files, err := h.p.GenerateOutputs(c.Request.Context(), id, formats)
	if err != nil {
		failErr(c, err)
		return
	}
	names := make([]string, 0, len(files))
	urls := make(map[string]string, len(files))
	for f := range files {
		names = append(names, f)
		urls[f] = fmt.Sprintf("%s/download/%s/%s", basePath, id, f)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"success": true, "formats": names, "download_urls": urls})
}

func (h *handler) download(c *gin.Context) {
	f, err := h.p.Output(c.Param("id"), c.Param("format"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.FileAttachment(f.Path, f.Filename)
}

type emailBody struct {
	Email      string `json:"email" binding:"required,email"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	IncludeTXT bool   `json:"include_txt"`
	IncludePDF bool   `json:"include_pdf"`
}

func (h *handler) sendEmail(c *gin.Context) {
	var body emailBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "No valid email provided")
		return
	}
	d, err := h.p.SendEmail(c.Request.Context(), c.Param("id"), orchestrator.EmailOptions{
		To:         body.Email,
		Subject:    body.Subject,
		Body:       body.Body,
		IncludeTXT: body.IncludeTXT,
		IncludePDF: body.IncludePDF,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "email_result": d})
}

func (h *handler) sessionInfo(c *gin.Context) {
	info, err := h.p.Info(c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": info})
}
