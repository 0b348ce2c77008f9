package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"

	"office2pdf/internal/stats"
	u "office2pdf/internal/utils"
)

// DocumentConverter renders an uploaded document as PDF.
type DocumentConverter interface {
	Convert(ctx context.Context, document []byte, fileName string) ([]byte, error)
	StrategyName() string
	Available() bool
}

// ConvertService bundles configuration and dependencies of the HTTP handlers.
type ConvertService struct {
	Config    *u.Config
	Converter DocumentConverter
	Stats     stats.Recorder
}

// NewConvertService creates a ConvertService. A nil recorder counts in memory.
func NewConvertService(cfg u.Config, conv DocumentConverter, rec stats.Recorder) *ConvertService {
	if rec == nil {
		rec = stats.NewMemoryRecorder()
	}
	return &ConvertService{Config: &cfg, Converter: conv, Stats: rec}
}

const (
	outputFilename = "output.pdf"
	errMissingFile = "No file uploaded (field name should be `file`)"
)

var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,16}$`)

// HandleConvert accepts a multipart upload in field "file" and responds with
// the PDF rendering. The uploaded temp file is removed on every path.
func (svc *ConvertService) HandleConvert(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errMissingFile})
	}

	tempPath, err := svc.saveUpload(fh.Filename, func(path string) error {
		return c.SaveFile(fh, path)
	})
	if tempPath != "" {
		defer removeUpload(tempPath)
	}
	if err != nil {
		u.Error("Failed to store upload", "error", err)
		return svc.conversionError(c, err)
	}

	input, err := os.ReadFile(tempPath)
	if err != nil {
		u.Error("Failed to read upload", "path", tempPath, "error", err)
		return svc.conversionError(c, err)
	}

	start := time.Now()
	pdf, err := svc.Converter.Convert(c.UserContext(), input, fh.Filename)
	svc.Stats.Record(c.UserContext(), err == nil, time.Since(start))
	if err != nil {
		u.Error("Conversion error", "file", fh.Filename, "strategy", svc.Converter.StrategyName(), "error", err)
		return svc.conversionError(c, err)
	}

	if limit := svc.Config.Limits.MaxPDFBytes; limit > 0 && len(pdf) > limit {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "PDF exceeds allowed size"})
	}

	u.Info("PDF generated",
		"file", fh.Filename,
		"bytes", len(pdf),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+outputFilename+`"`)
	return c.Send(pdf)
}

// saveUpload creates a temp file carrying the upload's extension and lets
// save fill it. The returned path is set whenever a file was created.
func (svc *ConvertService) saveUpload(original string, save func(path string) error) (string, error) {
	dir := svc.Config.Converter.UploadDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", err
		}
	}
	ext := filepath.Ext(filepath.Base(original))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	f, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return path, err
	}
	return path, save(path)
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		u.Warn("Failed to remove upload", "path", path, "error", err)
	}
}

func (svc *ConvertService) conversionError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	if msg == "" {
		msg = "conversion failed"
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}
