// Package templates renders the dashboard shell. Every panel starts empty and
// is filled by the Datastar SSE endpoints.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

type panel struct {
	ID    string
	Title string
}

type page struct {
	Title       string
	Script      string
	Hierarchies []panel
}

var hierarchies = []panel{
	{ID: "commercial", Title: "Region › Manager › Salesperson › Product"},
	{ID: "supplier", Title: "Supplier › Category › Product"},
	{ID: "customer", Title: "Customer › Product"},
	{ID: "state", Title: "State › Salesperson"},
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.Script}}"></script>
</head>
<body data-signals="{month: ''}" data-init="@get('/sse/refresh-all')">
<header>
<h1>{{.Title}}</h1>
<form class="period-picker" data-on:submit__prevent="@get('/sse/refresh-all?month=' + $month)">
<input type="month" data-bind:month>
<button type="submit">Apply</button>
</form>
</header>
<main>
<section>
<h2>Revenue cascade</h2>
<div id="overview-content">Loading…</div>
</section>
{{range .Hierarchies}}<section>
<h2>{{.Title}}</h2>
<div id="hierarchy-{{.ID}}-content">Loading…</div>
</section>
{{end}}<section data-init="@get('/sse/abc')">
<h2>ABC curve</h2>
<div id="abc-content">Loading…</div>
</section>
<section data-init="@get('/sse/customers')">
<h2>Customer recency</h2>
<div id="customers-content">Loading…</div>
</section>
</main>
</body>
</html>
`))

// Dashboard is the single page served at /.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return dashboardTemplate.Execute(w, page{
			Title:       "Commercial Analytics",
			Script:      datastarScript,
			Hierarchies: hierarchies,
		})
	})
}
