package templates

import "embed"

// EmailFS holds the transactional email templates. Each message is parsed
// together with layout.html.
//
//go:embed email/*.html
var EmailFS embed.FS
