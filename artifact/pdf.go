package artifact

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// No per-user pdfcpu config directory on servers.
	api.DisableConfigDir()
}

// PNGToPDF wraps one PNG image into a single-page PDF written to w.
func PNGToPDF(w io.Writer, png []byte) error {
	imp := pdfcpu.DefaultImportConfig()
	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, []io.Reader{bytes.NewReader(png)}, imp, conf); err != nil {
		return fmt.Errorf("artifact: pdf: %w", err)
	}
	return nil
}

// PDFName returns the download name of the PDF export of a PNG artifact.
func PDFName(pngName string) string {
	if n := len(pngName); n > 4 && (pngName[n-4:] == ".png" || pngName[n-4:] == ".PNG") {
		return pngName[:n-4] + ".pdf"
	}
	return pngName + ".pdf"
}
