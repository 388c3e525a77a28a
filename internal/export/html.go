package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

// WriteHTML renders the snapshot as a single self-contained HTML document.
// The full snapshot is inlined as a JSON payload, so the file works offline
// and doubles as a machine-readable export. The page renders the view
// projection's initial state: newest first, one page, with filters and a
// show-more control.
func WriteHTML(w io.Writer, snap *MemorySystemSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("inline snapshot: %w", err)
	}
	return htmlTmpl.Execute(w, map[string]any{
		"AgentID":    snap.AgentID,
		"ExportedAt": snap.ExportedAt.Format("2006-01-02 15:04:05 UTC"),
		"Count":      len(snap.Memories),
		"Checksum":   snap.Checksum,
		"Payload":    template.JS(payload),
	})
}

var htmlTmpl = template.Must(template.New("snapshot").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Memory snapshot: {{.AgentID}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 56rem; color: #1a1a1a; }
header { border-bottom: 1px solid #ddd; padding-bottom: 1rem; margin-bottom: 1rem; }
header small { color: #666; display: block; margin-top: .25rem; word-break: break-all; }
.controls { display: flex; gap: .5rem; margin-bottom: 1rem; }
.controls input, .controls select { padding: .3rem .5rem; }
.memory { border: 1px solid #e0e0e0; border-radius: 6px; padding: .75rem 1rem; margin-bottom: .5rem; }
.memory .meta { font-size: .8rem; color: #666; margin-bottom: .25rem; }
.memory .type { font-weight: 600; text-transform: capitalize; }
.memory.archived { opacity: .55; }
#more { margin-top: 1rem; padding: .4rem 1rem; }
</style>
</head>
<body>
<header>
  <h1>Memory snapshot: {{.AgentID}}</h1>
  <small>{{.Count}} memories, exported {{.ExportedAt}}</small>
  <small>sha256 {{.Checksum}}</small>
</header>
<div class="controls">
  <input id="search" type="search" placeholder="Search content">
  <select id="type">
    <option value="">all types</option>
    <option value="episodic">episodic</option>
    <option value="semantic">semantic</option>
    <option value="procedural">procedural</option>
  </select>
  <select id="importance">
    <option value="">all importance</option>
    <option value="critical">critical</option>
    <option value="high">high</option>
    <option value="normal">normal</option>
    <option value="low">low</option>
  </select>
</div>
<div id="list"></div>
<button id="more" hidden>Show more</button>
<script id="snapshot" type="application/json">{{.Payload}}</script>
<script>
(function () {
  "use strict";
  var snap = JSON.parse(document.getElementById("snapshot").textContent);
  var pageSize = 25;
  var visible = pageSize;
  var search = "", type = "", importance = "";

  function matches(m) {
    if (type && m.type !== type) return false;
    if (importance && m.importance !== importance) return false;
    if (search) {
      var q = search.toLowerCase();
      var content = (m.content || "").toLowerCase();
      var context = (m.context || "").toLowerCase();
      if (content.indexOf(q) < 0 && context.indexOf(q) < 0) return false;
    }
    return true;
  }

  function render() {
    var matched = snap.memories.filter(matches);
    matched.sort(function (a, b) {
      if (a.created_at !== b.created_at) return a.created_at < b.created_at ? 1 : -1;
      return a.id < b.id ? 1 : -1;
    });
    var list = document.getElementById("list");
    list.textContent = "";
    matched.slice(0, visible).forEach(function (m) {
      var div = document.createElement("div");
      div.className = "memory" + (m.archived_at ? " archived" : "");
      var meta = document.createElement("div");
      meta.className = "meta";
      var ts = (m.created_at || "").replace("T", " ").slice(0, 19);
      meta.innerHTML = '<span class="type"></span> &middot; ' + m.importance + " &middot; " + ts;
      meta.querySelector(".type").textContent = m.type;
      var body = document.createElement("div");
      body.textContent = m.content;
      div.appendChild(meta);
      div.appendChild(body);
      list.appendChild(div);
    });
    document.getElementById("more").hidden = matched.length <= visible;
  }

  function reset(fn) {
    return function (ev) { fn(ev.target.value); visible = pageSize; render(); };
  }
  document.getElementById("search").addEventListener("input", reset(function (v) { search = v; }));
  document.getElementById("type").addEventListener("change", reset(function (v) { type = v; }));
  document.getElementById("importance").addEventListener("change", reset(function (v) { importance = v; }));
  document.getElementById("more").addEventListener("click", function () { visible += pageSize; render(); });
  render();
})();
</script>
</body>
</html>
`))
