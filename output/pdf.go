package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

func renderPDF(path string, doc document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Up-sots", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, tr("Source: "+filepath.Base(doc.audioPath)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+doc.generated.Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for i, s := range doc.upSots {
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 11)
		head := fmt.Sprintf("%d.  %s - %s%s", i+1, clock(s.Start), clock(s.End), relevance(s))
		pdf.CellFormat(0, 7, head, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(strings.TrimSpace(s.Text)), "", "L", false)
		pdf.Ln(3)
	}
	return pdf.OutputFileAndClose(path)
}
