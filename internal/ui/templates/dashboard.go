package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const (
	PageTitle  = "Superstore Sales Dashboard"
	datastarJS = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"
)

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.ScriptURL}}"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6f8; color: #222; }
header { padding: 1rem 2rem; background: #1f3b57; color: #fff; }
.controls { display: flex; flex-wrap: wrap; gap: 1.5rem; padding: 1rem 2rem; align-items: center; }
.grid { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; padding: 0 2rem 2rem; }
.panel { background: #fff; border-radius: 6px; padding: 1rem; max-height: 28rem; overflow: auto; }
.modern-table { width: 100%; border-collapse: collapse; }
.modern-table th, .modern-table td { padding: .35rem .5rem; border-bottom: 1px solid #e3e6ea; text-align: left; }
.view-notice, .selection-error { color: #a33; }
.category-badge { background: #e8eef5; border-radius: 4px; padding: 0 .4rem; }
</style>
</head>
<body data-signals="{{.Signals}}" data-init="@get('/sse/init')">
<header><h1>{{.Title}}</h1></header>
<section class="controls">
<label>Category <select data-bind:category data-on:change="@get('/sse/update?changed=category')">
{{range .Options.Categories}}<option value="{{.}}">{{.}}</option>
{{end}}</select></label>
<label>Region <select data-bind:region data-on:change="@get('/sse/update?changed=region')">
{{range .Options.Regions}}<option value="{{.}}">{{.}}</option>
{{end}}</select></label>
<fieldset class="chart-type"><legend>Chart type</legend>
{{range .ChartTypes}}<label><input type="radio" name="chartType" value="{{.Value}}" data-bind:chart-type data-on:change="@get('/sse/update?changed=chart_type')"> {{.Label}}</label>
{{end}}</fieldset>
<fieldset class="date-range"><legend>Date range</legend>
<input type="date" min="{{.Options.MinDate}}" max="{{.Options.MaxDate}}" data-bind:start-date data-on:change="@get('/sse/update?changed=start_date')">
<input type="date" min="{{.Options.MinDate}}" max="{{.Options.MaxDate}}" data-bind:end-date data-on:change="@get('/sse/update?changed=end_date')">
</fieldset>
</section>
<div id="selection-error" class="selection-error"></div>
<main class="grid">
{{range .Views}}<section class="panel"><div id="{{contentID .}}" class="view-content"><p class="view-loading">Loading...</p></div></section>
{{end}}</main>
</body>
</html>`))

type chartChoice struct {
	Value models.ChartType
	Label string
}

type pageData struct {
	Title      string
	ScriptURL  string
	Signals    string
	Options    models.Options
	ChartTypes []chartChoice
	Views      []models.ViewID
}

// Dashboard renders the page: the selection controls bound to datastar
// signals and a 2x2 grid with one panel per view. Panels fill in once the
// page requests /sse/init.
func Dashboard(opts models.Options) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := json.Marshal(opts.Default)
		if err != nil {
			return fmt.Errorf("marshal default signals: %w", err)
		}

		data := pageData{
			Title:     PageTitle,
			ScriptURL: datastarJS,
			Signals:   string(signals),
			Options:   opts,
			Views:     services.Views,
		}
		for _, ct := range opts.ChartTypes {
			data.ChartTypes = append(data.ChartTypes, chartChoice{Value: ct, Label: chartLabel(ct)})
		}
		return dashboardTemplate.Execute(w, data)
	})
}

func chartLabel(ct models.ChartType) string {
	if ct == models.ChartPie {
		return "Pie Chart"
	}
	return "Bar Chart"
}
