package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/envnode/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"f1": func(v *float64) string {
		if v == nil {
			return "unknown"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"f2": func(v *float64) string {
		if v == nil {
			return "unknown"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"num": func(v *int) string {
		if v == nil {
			return "unknown"
		}
		return fmt.Sprintf("%d", *v)
	},
	"onoff": func(b bool) string {
		if b {
			return "enabled"
		}
		return "disabled"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>{{if .Device.Name}}{{.Device.Name}}{{else}}Sensor Node{{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.high { color: green; font-weight: bold; }
.low { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{if .Device.ID}}{{.Device.ID}}{{else}}unconfigured{{end}}{{if .Device.Name}} ({{.Device.Name}}){{end}}</h1>

<h2>Readings</h2>
<table>
<tr><th>Temperature</th><td>{{f1 .Readings.TemperatureF}} F / {{f1 .Readings.TemperatureC}} C</td></tr>
<tr><th>Humidity</th><td>{{f1 .Readings.Humidity}} %</td></tr>
<tr><th>Pressure</th><td>{{f2 .Readings.PressureInHg}} inHg</td></tr>
<tr><th>Sensor</th><td>{{.Readings.SensorType}}</td></tr>
<tr><th>Motion</th><td id="motion" class="{{if eq .Readings.Motion "HIGH"}}high{{else if eq .Readings.Motion "LOW"}}low{{else}}unknown{{end}}">{{.Readings.Motion}}</td></tr>
<tr><th>Switch</th><td id="switch" class="{{if eq .Readings.Switch "HIGH"}}high{{else if eq .Readings.Switch "LOW"}}low{{else}}unknown{{end}}">{{.Readings.Switch}}</td></tr>
<tr><th>Fan PWM</th><td>{{num .Readings.FanPWM}} %</td></tr>
<tr><th>Fans active</th><td>{{num .Readings.FansActive}}</td></tr>
<tr><th>Wi-Fi RSSI</th><td>{{num .Readings.WifiRSSI}} dBm</td></tr>
</table>

<h2>Publishing</h2>
<table>
<tr><th>Device</th><td>{{onoff .Device.Enabled}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{onoff .Device.MQTT}}{{if .Device.MQTT}}, {{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{end}}</td></tr>
{{if .Device.Broker}}<tr><th>Broker</th><td>{{.Device.Broker}}</td></tr>{{end}}
<tr><th>API</th><td>{{onoff .Device.API}}</td></tr>
<tr><th>Kafka</th><td>{{onoff .Device.Kafka}}</td></tr>
<tr><th>Last event</th><td>{{if .LastEvent}}{{.LastEvent}} at {{.LastPublish.UTC.Format "2006-01-02T15:04:05Z"}}{{else}}none{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Heartbeat</th><td>{{.Counts.Heartbeat}}</td></tr>
<tr><th>Motion</th><td>{{.Counts.Motion}}</td></tr>
<tr><th>Switch</th><td>{{.Counts.Switch}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{.Device.HeartbeatMs}}ms</td></tr>
<tr><th>Reconfigurations</th><td>{{.Reconfigures}}</td></tr>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
