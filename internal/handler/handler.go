package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"imgupload/internal/domain"
	"imgupload/internal/middleware"
	"imgupload/internal/service"
	"imgupload/internal/settings"
)

const (
	OptionsPath   = "/admin/options/img_upload"
	UploadPath    = "/admin/img_upload/upload"
	ServicePath   = "/_services/json/img_upload/upload"
	SharedPrefix  = "/shared/img_upload"
	uploadField   = "userfile"
	optionsTmpl   = "img_uploader.html"
	multipartSlop = 1 << 20
)

var settingLabels = map[string]string{
	settings.KeyImagesDirectory: "images directory",
	settings.KeyBaseURL:         "base url",
	settings.KeyThumbMaxWidth:   "thumbnail max width",
	settings.KeyThumbMaxHeight:  "thumbnail max height",
}

// Flash is a one-shot message shown on the options page.
type Flash struct {
	Kind    string
	Message string
}

type Handler struct {
	service       service.UploadService
	settings      *settings.Store
	fs            afero.Fs
	maxUploadSize int64
	log           *zap.Logger
}

func NewHandler(svc service.UploadService, store *settings.Store, fs afero.Fs, maxUploadSize int64, log *zap.Logger) *Handler {
	return &Handler{
		service:       svc,
		settings:      store,
		fs:            fs,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// UploadImage returns the fragment as HTML, or the full result as JSON when
// the client asks for it. A non-image upload answers 204.
func (h *Handler) UploadImage(c *gin.Context) {
	result, ok := h.upload(c)
	if !ok {
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		c.JSON(http.StatusOK, result)
	default:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(result.Fragment))
	}
}

// ServicePoint is the JSON endpoint used by the upload widget: the body is
// the fragment as a JSON string, or null for a non-image upload.
func (h *Handler) ServicePoint(c *gin.Context) {
	result, ok := h.upload(c)
	if !ok {
		return
	}
	if result == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, result.Fragment)
}

func (h *Handler) upload(c *gin.Context) (*domain.Result, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartSlop)

	file, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.abort(c, http.StatusRequestEntityTooLarge, "File too large")
			return nil, false
		}
		h.log.Info("Failed to get file from form", zap.Error(err))
		h.abort(c, http.StatusBadRequest, "No image file provided")
		return nil, false
	}

	if file.Size > h.maxUploadSize {
		h.abort(c, http.StatusRequestEntityTooLarge, "File too large")
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		h.abort(c, http.StatusInternalServerError, "Failed to process file")
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		h.abort(c, http.StatusInternalServerError, "Failed to read file")
		return nil, false
	}

	result, err := h.service.HandleUpload(c.Request.Context(), domain.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}, h.settings.Get())
	if err != nil {
		status, msg := errorResponse(err)
		h.log.Error("Failed to upload image",
			zap.String("filename", file.Filename),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
		h.abort(c, status, msg)
		return nil, false
	}

	return result, true
}

func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidFilename):
		return http.StatusBadRequest, "Invalid file name"
	case errors.Is(err, domain.ErrUnsupportedImageFormat):
		return http.StatusUnsupportedMediaType, "File is not a supported image"
	case errors.Is(err, domain.ErrNameResolutionExhausted):
		return http.StatusConflict, "Could not find a free file name"
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Images directory is not configured"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Upload cancelled"
	default:
		return http.StatusInternalServerError, "Failed to store image"
	}
}

func (h *Handler) abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// ShowOptions renders the settings form. Non-empty fields (query args on
// GET, form fields on POST) are applied one at a time; a rejected change
// becomes an error flash and the page still renders.
func (h *Handler) ShowOptions(c *gin.Context) {
	var (
		flashes []Flash
		changed int
	)

	for _, key := range settings.Keys {
		var value string
		if c.Request.Method == http.MethodPost {
			value = c.PostForm(key)
		} else {
			value = c.Query(key)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}

		if err := h.settings.ChangeSingle(key, value); err != nil {
			h.log.Warn("Setting change rejected", zap.String("key", key), zap.Error(err))
			flashes = append(flashes, Flash{
				Kind:    "error",
				Message: fmt.Sprintf("The %s could not be changed.", settingLabels[key]),
			})
			continue
		}
		changed++
	}
	if changed > 0 && len(flashes) == 0 {
		flashes = append(flashes, Flash{Kind: "info", Message: "Settings saved."})
	}

	st := h.settings.Get()
	c.HTML(http.StatusOK, optionsTmpl, gin.H{
		"Flashes":        flashes,
		"Settings":       st,
		"ThumbMaxWidth":  boundValue(st.ThumbMaxWidth),
		"ThumbMaxHeight": boundValue(st.ThumbMaxHeight),
		"Action":         OptionsPath,
		"UploadAction":   ServicePath,
		"SharedPrefix":   SharedPrefix,
	})
}

// boundValue shows an unset bound as an empty field.
func boundValue(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// Readiness reports 503 until the images directory is configured and present.
func (h *Handler) Readiness(c *gin.Context) {
	type check struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
		Msg  string `json:"msg,omitempty"`
	}

	dir := h.settings.Get().ImagesDirectory
	var checks []check
	allOK := true

	if dir == "" {
		checks = append(checks, check{"images_directory_configured", false, "not set"})
		allOK = false
	} else {
		checks = append(checks, check{"images_directory_configured", true, ""})
		info, err := h.fs.Stat(dir)
		switch {
		case err != nil:
			checks = append(checks, check{"images_directory_accessible", false, "stat failed"})
			allOK = false
		case !info.IsDir():
			checks = append(checks, check{"images_directory_accessible", false, "not a directory"})
			allOK = false
		default:
			checks = append(checks, check{"images_directory_accessible", true, ""})
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": allOK, "checks": checks})
}
