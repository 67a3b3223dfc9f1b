package templates

import (
	_ "embed"

	"html/template"
	"strings"
	"time"
)

//go:embed confirmation.html
var confirmationHTML string

var confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationHTML))

type ConfirmationData struct {
	Code      string
	UserEmail string
	SiteName  string
	Year      int
}

func RenderConfirmationEmail(data ConfirmationData) (string, error) {
	if data.SiteName == "" {
		data.SiteName = "Fampita"
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	var buf strings.Builder
	err := confirmationTmpl.Execute(&buf, data)
	return buf.String(), err
}
