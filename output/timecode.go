package output

import (
	"fmt"
	"math"
	"time"
)

// FrameRate is the non-drop frame rate used for EDL timecodes.
const FrameRate = 30

// clock formats seconds as HH:MM:SS.mmm.
func clock(sec float64) string {
	d := time.Duration(math.Round(sec*1000)) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// timecode formats seconds as HH:MM:SS:FF at FrameRate.
func timecode(sec float64) string {
	frames := int(math.Round(sec * FrameRate))
	if frames < 0 {
		frames = 0
	}
	ff := frames % FrameRate
	total := frames / FrameRate
	return fmt.Sprintf("%02d:%02d:%02d:%02d", total/3600, (total/60)%60, total%60, ff)
}
