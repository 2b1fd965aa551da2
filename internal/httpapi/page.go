// ABOUTME: Human status page rendering for GET /
// ABOUTME: Auto-refreshing HTML with status, pairing artifact and recent logs

package httpapi

import (
	"html/template"
	"net/http"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>wabridge</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.2em; }
.status { font-weight: bold; }
.status.connected { color: #2a7d2a; }
.status.error, .status.logged_out { color: #b03030; }
.code { font-size: 2em; letter-spacing: 0.2em; }
img.qr { image-rendering: pixelated; border: 1px solid #ccc; }
ul.logs { list-style: none; padding: 0; color: #555; }
ul.logs li { margin: 0.2em 0; }
</style>
</head>
<body>
<h1>wabridge</h1>
<p>Status: <span class="status {{.Status}}">{{.Status}}</span></p>
{{if .QRDataURL}}
<p>Scan with WhatsApp on your phone:</p>
<p><img class="qr" src="{{.QRDataURL}}" alt="QR code" width="256" height="256"></p>
{{end}}
{{if .PairingCode}}
<p>Enter this pairing code on your phone:</p>
<p class="code">{{.PairingCode}}</p>
{{end}}
<h2>Recent activity</h2>
<ul class="logs">
{{range .Logs}}<li>{{.}}</li>
{{else}}<li>(no log entries yet)</li>
{{end}}</ul>
</body>
</html>
`))

type statusPageData struct {
	Status      string
	QRDataURL   template.URL
	PairingCode string
	Logs        []string
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	data := statusPageData{
		Status:      string(snap.Status),
		QRDataURL:   template.URL(snap.QRDataURL),
		PairingCode: snap.PairingCode,
		Logs:        s.logs.Lines(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage.Execute(w, data); err != nil {
		s.logger.Error("rendering status page", "error", err)
	}
}
