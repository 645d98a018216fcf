package ui

import "html/template"

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>proxy-scraper-checker</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; padding: 2rem; }
pre { background: #000; padding: 1rem; border: 1px solid #333; }
</style>
</head>
<body>
<h1>proxy-scraper-checker</h1>
<pre id="state">waiting for events...</pre>
<script>
const el = document.getElementById("state");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => { el.textContent = JSON.stringify(JSON.parse(e.data), null, 2); };
ws.onclose = () => { el.textContent += "\n[connection closed]"; };
</script>
</body>
</html>`))
