package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/predict"
)

// dashboardHistory is how many recent predictions the dashboard lists
const dashboardHistory = 10

type numericControl struct {
	features.NumericInput
	Value string
}

type selectOption struct {
	features.Option
	Selected bool
}

type historyRow struct {
	When    string
	Input   features.Input
	Price   string
	Error   string
	Elapsed string
}

type dashboardPage struct {
	Ready    bool
	Warning  string
	Numeric  []numericControl
	Cut      []selectOption
	Color    []selectOption
	Clarity  []selectOption
	Price    string
	Active   []string
	Error    string
	History  []historyRow
	Summary  string
	Enabled  bool
	RecordID string
}

// handleDashboard renders the dashboard and, on POST, predicts from the
// submitted controls
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	in := features.DashboardDefaults()
	page := dashboardPage{
		Ready:   s.svc.Ready(),
		Enabled: s.history != nil,
	}
	if !page.Ready {
		page.Warning = WarningModelMissing
	}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := r.ParseForm(); err != nil {
			page.Error = err.Error()
		} else {
			id := uuid.NewString()
			ctx := predict.WithRequestID(r.Context(), id)
			res, err := s.svc.Predict(ctx, features.FormSource(r.PostForm))
			if err != nil {
				page.Error = err.Error()
			} else {
				in = res.Input
				page.Price = res.Formatted
				page.Active = s.svc.Schema().Active(res.Vector)
				page.RecordID = id
			}
		}
	}

	page.Numeric = numericControls(in)
	page.Cut = selectOptions(features.CutOptions, in.Cut)
	page.Color = selectOptions(features.ColorOptions, in.Color)
	page.Clarity = selectOptions(features.ClarityOptions, in.Clarity)
	s.fillHistory(r.Context(), &page)

	s.render(w, "dashboard.html", page)
}

func (s *Server) fillHistory(ctx context.Context, page *dashboardPage) {
	if s.history == nil {
		return
	}

	records, err := s.history.Recent(ctx, dashboardHistory)
	if err != nil {
		page.Error = err.Error()
		return
	}
	for _, rec := range records {
		row := historyRow{
			When:    humanize.Time(rec.CreatedAt),
			Input:   rec.Input,
			Error:   rec.Error,
			Elapsed: rec.Duration.String(),
		}
		if rec.Error == "" {
			row.Price = s.svc.FormatPrice(rec.Price)
		}
		page.History = append(page.History, row)
	}

	sum, err := s.history.Summary(ctx)
	if err != nil {
		page.Error = err.Error()
		return
	}
	page.Summary = humanize.Comma(int64(sum.Total)) + " predictions, " +
		humanize.Comma(int64(sum.Failed)) + " failed, mean " + s.svc.FormatPrice(sum.MeanPrice)
}

func numericControls(in features.Input) []numericControl {
	controls := make([]numericControl, 0, len(features.NumericInputs))
	for _, n := range features.NumericInputs {
		v, _ := in.Numeric(n.Name)
		controls = append(controls, numericControl{
			NumericInput: n,
			Value:        strconv.FormatFloat(v, 'f', -1, 64),
		})
	}
	return controls
}

func selectOptions(opts []features.Option, selected string) []selectOption {
	out := make([]selectOption, len(opts))
	for i, o := range opts {
		out[i] = selectOption{Option: o, Selected: o.Value == selected}
	}
	return out
}
