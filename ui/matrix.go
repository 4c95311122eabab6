// Package ui provides the browser-facing matrix control page (§6's
// "GET / — matrix UI HTML"). It never exposes any HTTP target beyond the
// four documented in the specification: the page itself is rendered
// server-side from a live snapshot, so the browser never needs a
// separate data endpoint to populate it. The page's own script opens a
// plain websocket back to "/" purely to receive the server's "reload"
// push (mined from the original's router_html.hpp) and does not carry a
// second HTTP surface.
package ui

import (
	"html/template"
	"io"
)

// Edge identifies one (input, output) pair and whether it is connected.
type Edge struct {
	Input     string
	Output    string
	Connected bool
}

// MatrixView is the data a matrix page render needs: the inputs in
// display order, the outputs (unordered), and every edge between them.
type MatrixView struct {
	Inputs  []string
	Outputs []string
	Edges   []Edge
}

var matrixTemplate = template.Must(template.New("matrix").Parse(matrixPageHTML))

// RenderMatrix writes the matrix control page for view to w.
func RenderMatrix(w io.Writer, view MatrixView) error {
	return matrixTemplate.Execute(w, view)
}

const matrixPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>patchbay matrix</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #111; color: #eee; }
table { border-collapse: collapse; margin-top: 1rem; }
th, td { border: 1px solid #444; padding: 0.4rem 0.7rem; text-align: center; }
th { background: #222; }
button { cursor: pointer; }
td.cell button { width: 100%; height: 100%; background: #333; color: #eee; border: none; }
td.cell button.on { background: #2a7; color: #000; }
.order button { margin: 0 2px; }
#status { margin-top: 1rem; color: #999; }
</style>
</head>
<body>
<h1>patchbay</h1>
<table>
<tr><th></th>{{range .Outputs}}<th>{{.}}</th>{{end}}</tr>
{{$edges := .Edges}}
{{range $in := .Inputs}}
<tr>
<th>{{$in}}<div class="order">
<button onclick="forward('{{$in}}')">&uarr;</button>
<button onclick="backward('{{$in}}')">&darr;</button>
</div></th>
{{range $.Outputs}}
{{$out := .}}
{{$on := false}}
{{range $edges}}{{if and (eq .Input $in) (eq .Output $out)}}{{$on = .Connected}}{{end}}{{end}}
<td class="cell"><button class="{{if $on}}on{{end}}" onclick="toggle('{{$in}}','{{$out}}',{{if $on}}false{{else}}true{{end}})">{{if $on}}on{{else}}off{{end}}</button></td>
{{end}}
</tr>
{{end}}
</table>
<div id="status"></div>
<script>
const statusEl = document.getElementById('status');

async function post(path, body) {
  const res = await fetch(path, {
    method: 'POST',
    headers: { 'Content-Type': 'text/plain' },
    body: body,
  });
  if (!res.ok) {
    statusEl.textContent = path + ' failed: ' + res.status;
  }
}

function toggle(input, output, enable) {
  post('/connect', input + '&' + output + '&' + enable);
}

function forward(input) {
  post('/bring_input_forward', input);
}

function backward(input) {
  post('/bring_input_backward', input);
}

// The page carries no client-side routing state of its own: every
// mutation above is reflected back as a plain reload pushed over this
// socket, the same way a change from any other operator's tab is.
let ws;

function openSocket() {
  ws = new WebSocket('ws://' + window.location.host + '/');
  ws.onmessage = function() {
    location.reload();
  };
  ws.onerror = function() {
    ws.close();
  };
  ws.onclose = function() {
    setTimeout(openSocket, 1000);
  };
}

openSocket();
</script>
</body>
</html>
`
