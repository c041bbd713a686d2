package httpapi

import _ "embed"

//go:embed static/dashboard.html
var dashboardHTML []byte
