package dispatch

import (
	"fmt"
	"strings"
)

// injectFooter appends the unsubscribe footer and the open-tracking pixel to
// an HTML body. Both go just before </body> when one exists, otherwise at the
// end of the document. The pixel is last so a truncated download still shows
// the unsubscribe link.
func injectFooter(html, unsubscribeURL, pixelURL string) string {
	footer := fmt.Sprintf(
		`<p style="font-size:12px;color:#999;text-align:center;margin-top:24px;">`+
			`<a href="%s" style="color:#999;">Unsubscribe</a></p>`, unsubscribeURL)
	pixel := fmt.Sprintf(
		`<img src="%s" width="1" height="1" style="display:none;" alt=""/>`, pixelURL)

	block := footer + pixel

	idx := strings.LastIndex(strings.ToLower(html), "</body>")
	if idx == -1 {
		return html + block
	}
	return html[:idx] + block + html[idx:]
}

// textFooter appends a plain-text unsubscribe line.
func textFooter(text, unsubscribeURL string) string {
	if text == "" {
		return text
	}
	return text + "\n\nUnsubscribe: " + unsubscribeURL + "\n"
}
