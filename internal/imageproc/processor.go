package imageproc

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/model"
	"github.com/leca/dt-video-gen/internal/storage"
)

// Prepared describes the image to send to the remote service.
type Prepared struct {
	Path    string
	Size    model.Size
	Format  string
	MIME    string
	Resized bool
}

// Preprocessor normalizes reference images to an exact target size.
type Preprocessor struct {
	temp *storage.TempDir
}

// NewPreprocessor writes resized derivatives into temp.
func NewPreprocessor(temp *storage.TempDir) *Preprocessor {
	return &Preprocessor{temp: temp}
}

// Inspect reads only the image header and returns its dimensions and format
// ("jpeg", "png", "gif" or "webp").
func Inspect(path string) (model.Size, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Size{}, "", apperror.InvalidImage("opening image", err)
	}
	defer f.Close()
	return inspect(f)
}

// accepted lists the formats the remote service takes as a reference. Other
// decoders registered by imaging (bmp, tiff) are refused.
var accepted = map[string]bool{"jpeg": true, "png": true, "gif": true, "webp": true}

func inspect(r io.Reader) (model.Size, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return model.Size{}, "", apperror.InvalidImage("unreadable or unsupported image", err)
	}
	if !accepted[format] {
		return model.Size{}, "", apperror.InvalidImage(fmt.Sprintf("unsupported image format %q", format), nil)
	}
	size := model.Size{Width: cfg.Width, Height: cfg.Height}
	if !size.Valid() {
		return model.Size{}, "", apperror.InvalidImage(fmt.Sprintf("image has invalid dimensions %s", size), nil)
	}
	return size, format, nil
}

// Prepare returns sourcePath unchanged when the image already has the target
// dimensions. Otherwise it writes a derivative stretched to exactly target
// (aspect ratio is not preserved, enlargement is allowed) into the temp
// directory. The caller owns the derivative's path.
func (p *Preprocessor) Prepare(sourcePath string, target model.Size) (*Prepared, error) {
	if !target.Valid() {
		return nil, apperror.Configuration(fmt.Sprintf("invalid target size %s", target))
	}

	actual, format, err := Inspect(sourcePath)
	if err != nil {
		return nil, err
	}
	if actual == target {
		return &Prepared{Path: sourcePath, Size: actual, Format: format, MIME: formatToContentType(format)}, nil
	}

	img, err := imaging.Open(sourcePath)
	if err != nil {
		return nil, apperror.InvalidImage("decoding image", err)
	}
	resized := fitFill(img, target)

	outFormat := outputFormat(format)
	path, err := p.write(resized, outFormat)
	if err != nil {
		return nil, err
	}
	return &Prepared{
		Path:    path,
		Size:    target,
		Format:  outFormat,
		MIME:    formatToContentType(outFormat),
		Resized: true,
	}, nil
}

// fitFill forces img to exactly target, scaling each axis independently.
func fitFill(img image.Image, target model.Size) image.Image {
	return imaging.Resize(img, target.Width, target.Height, imaging.Lanczos)
}

// outputFormat keeps JPEG as JPEG and writes everything else as PNG, since
// GIF frames are flattened and WebP has no encoder here.
func outputFormat(src string) string {
	if src == "jpeg" {
		return "jpeg"
	}
	return "png"
}

func (p *Preprocessor) write(img image.Image, format string) (string, error) {
	f, err := p.temp.Create("resized", "."+extension(format))
	if err != nil {
		return "", err
	}
	name := f.Name()

	err = encodeImage(f, img, format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return "", apperror.Storage("writing resized image", err)
	}
	return name, nil
}

// encodeImage encodes an image in the specified format.
func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "png":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// formatToContentType maps an image format string to its MIME type.
func formatToContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
