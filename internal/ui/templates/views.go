package templates

import (
	"context"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-dashboard/internal/models"
)

// MaxTableRows caps the rows rendered per view fragment. The full view is
// still sent as a signal.
const MaxTableRows = 50

var printer = message.NewPrinter(language.English)

var funcs = template.FuncMap{
	"currency":  Currency,
	"contentID": ContentID,
	"keyHeader": keyHeader,
}

var viewTableTemplate = template.Must(template.New("viewTable").Funcs(funcs).Parse(`
<div id="{{contentID .View.ID}}" class="view-content" data-shape="{{.View.Shape}}">
<h3 class="view-title">{{.View.Title}}</h3>
{{if eq .Total 0}}<p class="view-empty">No sales in this range</p>
{{else}}<table class="modern-table">
{{if .Scatter}}<thead><tr><th>Sub-Category</th><th>Segment</th><th>Sales</th></tr></thead>
<tbody>
{{range .Points}}<tr>
<td>{{.SubCategory}}</td>
<td><span class="category-badge">{{.Segment}}</span></td>
<td>{{currency .Sales}}</td>
</tr>{{end}}
</tbody>
{{else}}<thead><tr><th>{{keyHeader .View.ID}}</th><th>Sales</th></tr></thead>
<tbody>
{{range .Groups}}<tr>
<td>{{.Key}}</td>
<td><strong>{{currency .Sales}}</strong></td>
</tr>{{end}}
</tbody>
{{end}}</table>
{{if gt .Total .Shown}}<p class="view-more">Showing {{.Shown}} of {{.Total}} rows</p>{{end}}
{{end}}</div>`))

var viewNoticeTemplate = template.Must(template.New("viewNotice").Funcs(funcs).Parse(
	`<div id="{{contentID .ID}}" class="view-content view-notice"><p>{{.Message}}</p></div>`))

var selectionNoticeTemplate = template.Must(template.New("selectionNotice").Parse(
	`<div id="selection-error" class="selection-error">{{.}}</div>`))

type tableData struct {
	View    models.View
	Scatter bool
	Groups  []models.GroupSum
	Points  []models.ScatterPoint
	Total   int
	Shown   int
}

// Currency formats a sales amount with thousands separators, e.g. $1,234.50.
func Currency(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// ContentID is the DOM id of the element holding a view fragment.
func ContentID(id models.ViewID) string {
	return strings.ReplaceAll(string(id), "_", "-") + "-content"
}

func keyHeader(id models.ViewID) string {
	switch id {
	case models.ViewMonthlyTrend:
		return "Month"
	case models.ViewSubCategory:
		return "Sub-Category"
	case models.ViewStateSales:
		return "State"
	default:
		return "Key"
	}
}

// ViewTable renders a view as the table fragment that replaces its content
// element.
func ViewTable(view models.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		total := view.Len()
		data := tableData{
			View:    view,
			Scatter: view.Shape == models.ShapeScatter,
			Total:   total,
			Shown:   min(total, MaxTableRows),
		}
		if data.Scatter {
			data.Points = view.Points[:data.Shown]
		} else {
			data.Groups = view.Groups[:data.Shown]
		}
		return viewTableTemplate.Execute(w, data)
	})
}

// ViewNotice replaces a view's content with a message, used when the view
// could not be computed for the current selection.
func ViewNotice(id models.ViewID, msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return viewNoticeTemplate.Execute(w, struct {
			ID      models.ViewID
			Message string
		}{id, msg})
	})
}

// SelectionNotice shows or clears the page-level selection error.
func SelectionNotice(msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return selectionNoticeTemplate.Execute(w, msg)
	})
}

// Render renders c into a string for an SSE patch.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
