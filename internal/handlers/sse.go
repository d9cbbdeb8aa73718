package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"commercial-analytics/internal/models"
	"commercial-analytics/internal/services"
)

const (
	maxTableRows = 50
	maxDepth     = 2
	maxCustomers = 20
)

var funcs = template.FuncMap{
	"money": func(v float64) string { return formatMoney(v) },
	"pct":   func(v float64) string { return formatPct(v) },
	"indent": func(level int) template.CSS {
		return template.CSS(fmt.Sprintf("padding-left:%.1fem", float64(level)*1.5))
	},
}

var overviewTemplate = template.Must(template.New("overview").Funcs(funcs).Parse(`
<div id="overview-content">
<p class="window-label">{{.Windows.Current.Label}} vs {{.Windows.MoM.Label}} / {{.Windows.YoY.Label}}</p>
<div class="kpi-grid">
{{range .Cards}}<div class="kpi-card">
<span class="kpi-name">{{.Name}}</span>
<strong class="kpi-value">{{.Value}}</strong>
<span class="kpi-delta">MoM {{pct .MoM}} · YoY {{pct .YoY}}</span>
</div>
{{end}}</div>
<p class="kpi-footer">{{.Count}} transactions{{if .Errors}} · {{.Errors}} with errors{{end}}</p>
</div>`))

var hierarchyTemplate = template.Must(template.New("hierarchy").Funcs(funcs).Parse(`
<div id="hierarchy-{{.Kind}}-content">
<table class="modern-table">
<thead><tr><th>{{.Kind}}</th><th>ROB</th><th>ROL</th><th>LOB</th><th>MB%</th><th>MC%</th><th>Orders</th></tr></thead>
<tbody>
{{range .Rows}}<tr class="level-{{.Level}}">
<td style="{{indent .Level}}">{{.Label}}</td>
<td><strong>{{money .Cascade.GrossRevenue}}</strong></td>
<td>{{money .Cascade.NetRevenue}}</td>
<td>{{money .Cascade.GrossProfit}}</td>
<td>{{pct .Cascade.GrossMarginPct}}</td>
<td>{{pct .Cascade.ContributionMarginPct}}</td>
<td>{{.TransactionCount}}</td>
</tr>{{end}}
</tbody>
<tfoot><tr><td>Total</td><td>{{money .Total.GrossRevenue}}</td><td>{{money .Total.NetRevenue}}</td><td>{{money .Total.GrossProfit}}</td><td>{{pct .Total.GrossMarginPct}}</td><td>{{pct .Total.ContributionMarginPct}}</td><td></td></tr></tfoot>
</table>
</div>`))

var abcTemplate = template.Must(template.New("abc").Funcs(funcs).Parse(`
<div id="abc-content">
<table class="modern-table">
<thead><tr><th>Class</th><th>Items</th><th>ROB</th><th>Share</th></tr></thead>
<tbody>
{{range .Summary}}<tr><td><span class="class-badge class-{{.Class}}">{{.Class}}</span></td><td>{{.Count}}</td><td>{{money .Value}}</td><td>{{pct .Share}}</td></tr>
{{end}}</tbody>
</table>
{{if .Critical}}<h4>Critical ({{len .Critical}})</h4>
<ul class="critical-list">
{{range $i, $c := .Critical}}{{if lt $i 20}}<li>{{$c.Label}} · {{money $c.Value}}</li>{{end}}{{end}}
</ul>{{end}}
</div>`))

var customersTemplate = template.Must(template.New("customers").Funcs(funcs).Parse(`
<div id="customers-content">
<div class="kpi-grid">
<div class="kpi-card"><span class="kpi-name">Total</span><strong class="kpi-value">{{.Total}}</strong></div>
<div class="kpi-card status-active"><span class="kpi-name">Active</span><strong class="kpi-value">{{.Active}}</strong></div>
<div class="kpi-card status-at-risk"><span class="kpi-name">At risk</span><strong class="kpi-value">{{.AtRisk}}</strong></div>
<div class="kpi-card status-inactive"><span class="kpi-name">Inactive</span><strong class="kpi-value">{{.Inactive}}</strong></div>
</div>
<table class="modern-table">
<thead><tr><th>Customer</th><th>Last purchase</th><th>Days</th><th>ROB</th><th>Status</th></tr></thead>
<tbody>
{{range .Detail}}<tr><td>{{.Label}}</td><td>{{.LastPurchase.Format "2006-01-02"}}</td><td>{{.DaysSinceLast}}</td><td>{{money .Value}}</td><td><span class="status-badge status-{{.Bucket}}">{{.Bucket}}</span></td></tr>
{{end}}</tbody>
</table>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type kpiCard struct {
	Name  string
	Value string
	MoM   float64
	YoY   float64
}

type overviewView struct {
	Windows services.Windows
	Cards   []kpiCard
	Count   int
	Errors  int
}

// kpis are the cascade steps shown as cards, keyed by their JSON names.
var kpis = []struct {
	key, name string
	pct       bool
}{
	{"gross_revenue", "ROB", false},
	{"net_revenue", "ROL", false},
	{"gross_profit", "LOB", false},
	{"gross_margin_pct", "MB%", true},
	{"contribution_margin", "Contribution", false},
	{"contribution_margin_pct", "MC%", true},
}

func (h *SSEHandlers) renderOverview(ov *services.Overview) (string, error) {
	view := overviewView{
		Windows: ov.Windows,
		Count:   ov.Counts["current"],
		Errors:  ov.ErrorCount,
	}
	for _, k := range kpis {
		mom := ov.Comparison.MoMVariance[k.key]
		value := formatMoney(mom.Current)
		if k.pct {
			value = formatPct(mom.Current)
		}
		view.Cards = append(view.Cards, kpiCard{
			Name:  k.name,
			Value: value,
			MoM:   mom.Percent,
			YoY:   ov.Comparison.YoYVariance[k.key].Percent,
		})
	}

	var buf strings.Builder
	err := overviewTemplate.Execute(&buf, view)
	return buf.String(), err
}

type hierarchyView struct {
	Kind  services.Kind
	Total models.Cascade
	Rows  []*models.HierarchyNode
}

// flatten lists nodes depth-first down to maxDepth, stopping at maxTableRows.
func flatten(nodes []*models.HierarchyNode) []*models.HierarchyNode {
	rows := make([]*models.HierarchyNode, 0, maxTableRows)
	var walk func([]*models.HierarchyNode)
	walk = func(ns []*models.HierarchyNode) {
		for _, n := range ns {
			if len(rows) >= maxTableRows {
				return
			}
			rows = append(rows, n)
			if n.Level+1 < maxDepth {
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return rows
}

func (h *SSEHandlers) renderHierarchy(rep *services.HierarchyReport) (string, error) {
	var buf strings.Builder
	err := hierarchyTemplate.Execute(&buf, hierarchyView{
		Kind:  rep.Kind,
		Total: rep.Total,
		Rows:  flatten(rep.Nodes),
	})
	return buf.String(), err
}

func (h *SSEHandlers) renderABC(rep *services.ABCReport) (string, error) {
	var buf strings.Builder
	err := abcTemplate.Execute(&buf, rep)
	return buf.String(), err
}

func (h *SSEHandlers) renderCustomers(rep *services.CustomersReport) (string, error) {
	view := *rep
	if len(view.Detail) > maxCustomers {
		view.Detail = view.Detail[:maxCustomers]
	}
	var buf strings.Builder
	err := customersTemplate.Execute(&buf, view)
	return buf.String(), err
}

// errorElement renders an inline error message in place of target.
func (h *SSEHandlers) errorElement(target string, err error) string {
	h.logger.Error("sse report", "target", target, "error", err)
	msg := "Report unavailable"
	if stderrors.Is(err, services.ErrNoData) {
		msg = "No dataset loaded"
	}
	return `<div id="` + template.HTMLEscapeString(target) + `" class="error">` + msg + `</div>`
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sse := datastar.NewSSE(w, r)

	ov, err := h.analytics.Overview(r.Context(), q)
	if err != nil {
		sse.PatchElements(h.errorElement("overview-content", err))
		return
	}
	html, err := h.renderOverview(ov)
	if err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(html)

	signals, err := json.Marshal(map[string]any{"comparison": ov.Comparison})
	if err != nil {
		h.logger.Error("marshal overview signals", "error", err)
		return
	}
	sse.PatchSignals(signals)
	flush(w)
}

func (h *SSEHandlers) HandleHierarchy(w http.ResponseWriter, r *http.Request) {
	kind, err := services.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sse := datastar.NewSSE(w, r)

	rep, err := h.analytics.Hierarchy(r.Context(), kind, q)
	if err != nil {
		sse.PatchElements(h.errorElement("hierarchy-"+string(kind)+"-content", err))
		return
	}
	html, err := h.renderHierarchy(rep)
	if err != nil {
		h.logger.Error("render hierarchy", "kind", kind, "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleABC(w http.ResponseWriter, r *http.Request) {
	dim, err := services.ParseDimension(r.URL.Query().Get("dimension"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sse := datastar.NewSSE(w, r)

	rep, err := h.analytics.ABC(r.Context(), dim, q)
	if err != nil {
		sse.PatchElements(h.errorElement("abc-content", err))
		return
	}
	html, err := h.renderABC(rep)
	if err != nil {
		h.logger.Error("render abc", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sse := datastar.NewSSE(w, r)

	rep, err := h.analytics.Customers(r.Context(), q)
	if err != nil {
		sse.PatchElements(h.errorElement("customers-content", err))
		return
	}
	html, err := h.renderCustomers(rep)
	if err != nil {
		h.logger.Error("render customers", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sse := datastar.NewSSE(w, r)

	ov, err := h.analytics.Overview(r.Context(), q)
	if err != nil {
		sse.PatchElements(h.errorElement("overview-content", err))
		return
	}
	html, err := h.renderOverview(ov)
	if err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(html)

	reps, err := h.analytics.Hierarchies(r.Context(), q)
	if err != nil {
		h.logger.Error("build hierarchies", "error", err)
		return
	}
	for _, kind := range services.Kinds {
		html, err := h.renderHierarchy(reps[kind])
		if err != nil {
			h.logger.Error("render hierarchy", "kind", kind, "error", err)
			return
		}
		sse.PatchElements(html)
	}

	signals, err := json.Marshal(map[string]any{"comparison": ov.Comparison})
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(signals)
	flush(w)
}
