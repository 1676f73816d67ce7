package serialmux

import "strings"

const (
	LineTypeFrame   = "frame"
	LineTypeStatus  = "status"
	LineTypeUnknown = "unknown"
)

// ClassifyLine inspects a line from the range sensor and returns a line type
// token. Frame lines carry the "mm" ranges array; any other JSON object is
// treated as a status report.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return LineTypeUnknown
	}
	if strings.Contains(line, `"mm"`) {
		return LineTypeFrame
	}
	return LineTypeStatus
}
