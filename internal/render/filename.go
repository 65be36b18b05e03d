package render

import (
	"strings"
	"unicode"

	"github.com/jwalitptl/labreport/internal/model"
)

const (
	defaultFileName = "Lab_Report"
	defaultFileID   = "ID"
)

// Filename names an export after the patient: <name>_<patient id><ext>.
// Characters that are unsafe in file names, such as the slash in an
// identifier, become "-".
func Filename(p *model.PatientRecord, ext string) string {
	name, id := defaultFileName, defaultFileID
	if p != nil {
		if strings.TrimSpace(p.Name) != "" {
			name = p.Name
		}
		if strings.TrimSpace(p.PatientID) != "" {
			id = p.PatientID
		}
	}
	return SanitizeFilename(name+"_"+id) + ext
}

func SanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if unicode.IsControl(r) {
			return '-'
		}
		return r
	}, s)
	return strings.Trim(s, " .")
}
