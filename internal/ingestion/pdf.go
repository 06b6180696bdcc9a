package ingestion

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

type embeddedImage struct {
	// 1-based page the image is anchored to.
	PageNr   int
	FileType string
	Data     []byte
}

// pdfPageTexts extracts the plain text of every page, one entry per page.
// Pages that cannot be parsed contribute an empty entry so element numbering
// stays aligned with page numbering.
func pdfPageTexts(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// extractEmbeddedImages pulls every raster image out of the document in page
// order.
func extractEmbeddedImages(data []byte) ([]embeddedImage, error) {
	var out []embeddedImage
	digest := func(img model.Image, singleImgPerPage bool, maxPageDigits int) error {
		raw, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("read image on page %d: %w", img.PageNr, err)
		}
		out = append(out, embeddedImage{
			PageNr:   img.PageNr,
			FileType: img.FileType,
			Data:     raw,
		})
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(data), nil, digest, nil); err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}
	return out, nil
}
