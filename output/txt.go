package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maastricht-university/upsot-pipeline/transcript"
)

func renderTXT(path string, doc document) error {
	var b strings.Builder
	b.WriteString("UP-SOTS\n")
	b.WriteString("=======\n\n")
	fmt.Fprintf(&b, "Source: %s\n", filepath.Base(doc.audioPath))
	fmt.Fprintf(&b, "Generated: %s\n", doc.generated.Format(time.RFC3339))
	fmt.Fprintf(&b, "Count: %d\n\n", len(doc.upSots))

	for i, s := range doc.upSots {
		fmt.Fprintf(&b, "%d. [%s - %s]%s\n", i+1, clock(s.Start), clock(s.End), relevance(s))
		fmt.Fprintf(&b, "   %s\n\n", strings.TrimSpace(s.Text))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func relevance(s transcript.Segment) string {
	if v, ok := s.Scored(); ok {
		return fmt.Sprintf(" relevance %.2f", v)
	}
	return ""
}
