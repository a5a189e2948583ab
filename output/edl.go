package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// recordStart is where the first event lands on the record timeline.
const recordStart = 3600.0

// renderEDL writes a CMX3600 list with one audio event per up-sot, cut
// back to back on the record side.
func renderEDL(path string, doc document) error {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", doc.title)
	b.WriteString("FCM: NON-DROP FRAME\n\n")

	clip := filepath.Base(doc.audioPath)
	rec := recordStart
	for i, s := range doc.upSots {
		dur := s.End - s.Start
		fmt.Fprintf(&b, "%03d  AX       AA/V  C        %s %s %s %s\n",
			i+1, timecode(s.Start), timecode(s.End), timecode(rec), timecode(rec+dur))
		fmt.Fprintf(&b, "* FROM CLIP NAME: %s\n", clip)
		fmt.Fprintf(&b, "* COMMENT: %s\n\n", oneLine(s.Text))
		rec += dur
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
