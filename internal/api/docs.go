package api

import (
	"fmt"
	"html"
)

const (
	apiTitle   = "Aria Browser API"
	apiVersion = "1.0.0"
)

// docsPage renders the Stoplight Elements viewer for the served OpenAPI document.
func docsPage(title, specURL string) []byte {
	return []byte(fmt.Sprintf(`<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>%s</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0;">
  <elements-api apiDescriptionUrl="%s" router="hash" layout="sidebar" tryItCredentialsPolicy="same-origin" darkMode />
</body>
</html>`, html.EscapeString(title), html.EscapeString(specURL)))
}
