package devbackend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go-photoid/internal/helpers"
	"go-photoid/internal/outputspec"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Largest custom edge the backend will render.
const MaxCustomDimension = 5000

var (
	errInvalidDimensions = errors.New("invalid dimensions")
	errUnknownFormat     = errors.New("unknown output format")
)

// Geometry is an output size in pixels.
type Geometry struct {
	Width  int
	Height int
}

// Pixel sizes for each preset at 300 DPI.
var presetGeometry = map[outputspec.PresetID]Geometry{
	outputspec.PassportEU: {Width: 413, Height: 531}, // 35x45 mm
	outputspec.PassportTR: {Width: 591, Height: 709}, // 50x60 mm
	outputspec.VisaUS:     {Width: 600, Height: 600}, // 2x2 in
	outputspec.IDCardTR:   {Width: 413, Height: 531},
}

var acceptedUploadTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// ResolveGeometry turns the request's query parameters into a pixel size.
func ResolveGeometry(format, width, height string) (Geometry, error) {
	if format == outputspec.CustomFormat {
		w, errW := strconv.Atoi(width)
		h, errH := strconv.Atoi(height)
		if errW != nil || errH != nil || w <= 0 || h <= 0 || w > MaxCustomDimension || h > MaxCustomDimension {
			return Geometry{}, errInvalidDimensions
		}
		return Geometry{Width: w, Height: h}, nil
	}
	if format == "" {
		format = string(outputspec.DefaultPreset)
	}
	g, ok := presetGeometry[outputspec.PresetID(format)]
	if !ok {
		return Geometry{}, fmt.Errorf("%w: %s", errUnknownFormat, format)
	}
	return g, nil
}

func (s *Server) handlePreview(c *gin.Context) {
	geometry, err := ResolveGeometry(
		c.Query(outputspec.ParamOutputFormat),
		c.Query(outputspec.ParamCustomWidth),
		c.Query(outputspec.ParamCustomHeight),
	)
	if err != nil {
		abortDetail(c, http.StatusBadRequest, err.Error())
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes()+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abortDetail(c, http.StatusRequestEntityTooLarge, s.tooLargeDetail())
			return
		}
		abortDetail(c, http.StatusBadRequest, "No file uploaded.")
		return
	}
	if fileHeader.Size > s.maxUploadBytes() {
		abortDetail(c, http.StatusRequestEntityTooLarge, s.tooLargeDetail())
		return
	}

	declared, _, _ := mime.ParseMediaType(fileHeader.Header.Get("Content-Type"))
	if _, ok := acceptedUploadTypes[declared]; !ok {
		abortDetail(c, http.StatusUnsupportedMediaType, fmt.Sprintf("Unsupported file type: %s. Only JPEG and PNG are accepted.", declared))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		abortDetail(c, http.StatusBadRequest, "Invalid image file. Please upload a valid image.")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		abortDetail(c, http.StatusBadRequest, "Invalid image file. Please upload a valid image.")
		return
	}

	detected := mimetype.Detect(data).String()
	if _, ok := acceptedUploadTypes[detected]; ok && detected != declared {
		abortDetail(c, http.StatusBadRequest, fmt.Sprintf("File format and content type do not match (declared %s, content is %s).", declared, detected))
		return
	}

	out, err := Render(data, geometry)
	if err != nil {
		log.WithError(err).Debugf("[DevBackend] Could not render %s", fileHeader.Filename)
		abortDetail(c, http.StatusBadRequest, "Invalid image file. Please upload a valid image.")
		return
	}

	log.Debugf("[DevBackend] Rendered %s to %dx%d (%s)", fileHeader.Filename, geometry.Width, geometry.Height, helpers.BytesToSize(uint64(len(out))))
	c.Data(http.StatusOK, "image/png", out)
}

func (s *Server) tooLargeDetail() string {
	return fmt.Sprintf("File size is too large. Maximum allowed size is %d MB.", s.cfg.MaxUploadMB)
}

// Render decodes an image, center-crops it to the target aspect ratio,
// scales it to the target size and encodes it as PNG.
func Render(data []byte, g Geometry) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	fitted := imaging.Fill(img, g.Width, g.Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
