package payfast

import (
	"html/template"
	"io"
	"time"

	"github.com/go-faster/errors"
)

// DefaultRedirectDelay paces the hand-off so the shopper sees the
// confirmation before leaving the site.
const DefaultRedirectDelay = 2 * time.Second

var pageTemplate = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Redirecting to PayFast</title>
</head>
<body>
<p>Your order has been received. Redirecting you to PayFast to complete your payment&hellip;</p>
<form id="payfast" method="POST" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to PayFast</button></noscript>
</form>
<script>setTimeout(function () { document.getElementById("payfast").submit(); }, {{.DelayMillis}});</script>
</body>
</html>
`))

type page struct {
	Form
	DelayMillis int64
}

// RenderAutoSubmit writes an HTML page that posts f after delay.
func RenderAutoSubmit(w io.Writer, f Form, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	if err := pageTemplate.Execute(w, page{Form: f, DelayMillis: delay.Milliseconds()}); err != nil {
		return errors.Wrap(err, "render redirect page")
	}
	return nil
}
