package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"num": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"percent": func(v float64) string {
		return fmt.Sprintf("%.0f%%", v*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Espresso</title>
<style>
body { font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
.dirty { color: #d9480f; font-weight: bold; }
.waiting { color: #888; padding: 4em 0; text-align: center; }
button { font-family: monospace; min-width: 2.5em; }
button[hidden] { display: none; }
</style>
</head>
<body>
<h1>Espresso <span id="conn" class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}disconnected{{end}}</span></h1>

<div id="chart">{{if .Ready}}<img id="chart-img" src="/chart.svg" alt="temperature chart" width="720" height="320">{{else}}<p class="waiting">Waiting for data...</p>{{end}}</div>

<h2>Readouts</h2>
<table>
<tr><th>Temperature</th><td id="temp">{{if .HasLatest}}{{num .Latest.Temperature}} °C{{else}}-{{end}}</td></tr>
<tr><th>Setpoint</th><td id="set">{{if .HasLatest}}{{num .Latest.Setpoint}} °C{{else}}-{{end}}</td></tr>
<tr><th>Heater</th><td id="duty">{{if .HasLatest}}{{percent .Latest.DutyCycle}}{{else}}-{{end}}</td></tr>
<tr><th>Shot</th><td id="shot">{{if .HasLatest}}{{num .Latest.ShotDuration}} s{{else}}-{{end}}</td></tr>
</table>

<h2>Settings</h2>
<table>
{{range .Fields}}<tr data-param="{{.Param}}">
<th>{{.Label}}</th>
<td>
<button data-action="decrement">-</button>
<span class="value{{if .Dirty}} dirty{{end}}">{{if .Known}}{{num .Staged}}{{else}}-{{end}}</span> {{.Unit}}
<button data-action="increment">+</button>
<button data-action="commit"{{if not .Dirty}} hidden{{end}}>set</button>
<button data-action="cancel"{{if not .Dirty}} hidden{{end}}>cancel</button>
</td>
</tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
<tr><th>Buffered</th><td id="buffered">{{.Buffered}} / {{.Config.Capacity}}</td></tr>
<tr><th>Window</th><td>{{.Config.HorizonSeconds}}s</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
<script>
(function() {
  function fmt(v) { return v.toFixed(1); }

  function render(s) {
    var conn = document.getElementById("conn");
    conn.textContent = s.mqtt.connected ? "connected" : "disconnected";
    conn.className = s.mqtt.connected ? "connected" : "disconnected";

    var chart = document.getElementById("chart");
    if (s.ready) {
      var img = document.getElementById("chart-img");
      if (!img) {
        chart.innerHTML = '<img id="chart-img" alt="temperature chart" width="720" height="320">';
        img = document.getElementById("chart-img");
      }
      img.src = "/chart.svg?ts=" + s.chart.reference;
    } else {
      chart.innerHTML = '<p class="waiting">Waiting for data...</p>';
    }

    if (s.latest) {
      document.getElementById("temp").textContent = fmt(s.latest.temp) + " °C";
      document.getElementById("set").textContent = fmt(s.latest.set) + " °C";
      document.getElementById("duty").textContent = s.latest.duty_percent.toFixed(0) + "%";
      document.getElementById("shot").textContent = fmt(s.latest.shot_duration) + " s";
    }
    document.getElementById("buffered").textContent = s.buffer.samples + " / " + s.buffer.capacity;
    s.params.forEach(renderParam);
  }

  function renderParam(p) {
    var row = document.querySelector('tr[data-param="' + p.name + '"]');
    if (!row) return;
    var val = row.querySelector(".value");
    val.textContent = p.known ? fmt(p.staged) : "-";
    val.className = p.dirty ? "value dirty" : "value";
    row.querySelector('[data-action="commit"]').hidden = !p.dirty;
    row.querySelector('[data-action="cancel"]').hidden = !p.dirty;
  }

  document.querySelectorAll("tr[data-param] button").forEach(function(b) {
    b.addEventListener("click", function() {
      var param = b.closest("tr").dataset.param;
      fetch("/params/" + param + "/" + b.dataset.action, { method: "POST" })
        .then(function(r) { return r.json(); })
        .then(function(j) { if (j.param) renderParam(j.param); });
    });
  });

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/live");
    ws.onmessage = function(ev) {
      try { render(JSON.parse(ev.data).status); } catch (e) {}
    };
    ws.onclose = function() { setTimeout(connect, 3000); };
  }
  connect();
})();
</script>
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
