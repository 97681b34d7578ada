package gallery

// pageTemplates 画廊页面模板。样式内联，不依赖静态资源。
const pageTemplates = `
{{define "layout_head"}}
<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Albums</title>
<style>
body{font-family:sans-serif;margin:2rem;background:#fafafa;color:#222}
a{color:#2563eb;text-decoration:none}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(240px,1fr));gap:1rem}
.card{background:#fff;border:1px solid #e5e7eb;border-radius:8px;padding:1rem}
.card img{width:100%;height:180px;object-fit:cover;border-radius:4px}
.muted{color:#6b7280;font-size:.85rem}
.error{background:#fef2f2;border:1px solid #fecaca;padding:1rem;border-radius:8px}
</style>
</head>
<body>
{{end}}

{{define "index"}}
{{template "layout_head" .}}
<h1>Albums</h1>
<p class="muted">Signed in as {{.Username}}</p>
<div class="grid">
{{range .Albums}}
<div class="card">
<h3><a href="/albums/{{.ID}}">{{.Name}}</a></h3>
<p>{{.Description}}</p>
<p class="muted">{{.PhotoCount}} photos</p>
</div>
{{else}}
<p>No albums yet.</p>
{{end}}
</div>
</body></html>
{{end}}

{{define "album"}}
{{template "layout_head" .}}
<p><a href="/">&larr; Albums</a></p>
<h1>{{.Album.Name}}</h1>
<p>{{.Album.Description}}</p>
{{if .Album.ShareToken}}<p class="muted">Shared: <a href="/shared/{{.Album.ShareToken}}">{{.Album.ShareToken}}</a></p>{{end}}
<div class="grid">
{{range .Album.Images}}
<div class="card">
<a href="/img?ref={{.URL}}"><img src="/thumb?ref={{.URL}}&w=320" alt="{{.Name}}" loading="lazy"></a>
<h3>{{.Name}}</h3>
<p class="muted">{{.Description}}</p>
</div>
{{else}}
<p>No photos in this album.</p>
{{end}}
</div>
</body></html>
{{end}}

{{define "shared"}}
{{template "layout_head" .}}
<h1>{{.Album.Name}}</h1>
<p>{{.Album.Description}}</p>
<p class="muted">Shared album (read-only)</p>
<div class="grid">
{{range .Album.Images}}
<div class="card">
<a href="/img?ref={{.URL}}"><img src="/thumb?ref={{.URL}}&w=320" alt="{{.Name}}" loading="lazy"></a>
<h3>{{.Name}}</h3>
</div>
{{else}}
<p>This album is empty.</p>
{{end}}
</div>
</body></html>
{{end}}

{{define "error"}}
{{template "layout_head" .}}
<div class="error">
<h1>Something went wrong</h1>
<p>{{.Message}}</p>
<p><a href="/">Back to albums</a></p>
</div>
</body></html>
{{end}}
`
