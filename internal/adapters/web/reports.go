package web

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"github.com/shopspring/decimal"
)

// ── Browser page handlers ─────────────────────────────────────────────────────

// incomeView is the view model for the income-estimate page. Form carries the
// raw query values back so submitted overrides stay in their inputs.
type incomeView struct {
	Cycle    *core.Cycle
	Estimate *core.IncomeEstimate
	Form     url.Values
}

// incomePage handles GET /cycles/{cycleID}/income. Overrides arrive as query
// parameters; blank fields fall back to the configured cost defaults.
func (h *Handler) incomePage(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	cid := companyID(r)

	cycle, err := h.svc.GetCycle(r.Context(), cid, cycleID)
	if err != nil {
		flashRedirect(w, r, "/cycles", formErrorMessage(err), "error")
		return
	}

	d := h.buildPageData(r, "Income Estimate", "cycles")
	q := r.URL.Query()

	input := core.IncomeEstimateInput{
		ChickCostPerBird: queryDecimal(q, "chick_cost_per_bird"),
		FeedCostPerKg:    queryDecimal(q, "feed_cost_per_kg"),
		MedicineCost:     queryDecimal(q, "medicine_cost"),
		VaccineCost:      queryDecimal(q, "vaccine_cost"),
		OtherCost:        queryDecimal(q, "other_cost"),
		MarketRatePerKg:  queryDecimal(q, "market_rate_per_kg"),
		PCRatePerBird:    queryDecimal(q, "pc_rate_per_bird"),
		IncomeRatePerKg:  queryDecimal(q, "income_rate_per_kg"),
		UseMarketRate:    q.Get("basis") != "pc",
	}

	estimate, err := h.svc.EstimateIncome(r.Context(), cid, cycleID, input)
	if err != nil {
		d.Flash = "Failed to estimate income: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	d.Data = incomeView{Cycle: cycle, Estimate: estimate, Form: q}
	h.renderPage(w, r, "income", d)
}

// queryDecimal parses an optional decimal query parameter. Blank and
// malformed values both mean "use the default".
func queryDecimal(q url.Values, key string) decimal.Decimal {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}
	}
	return d
}

// exportCycleXLSX handles GET /cycles/{cycleID}/report.xlsx and
// GET /api/cycles/{cycleID}/export.xlsx — the full cycle workbook.
func (h *Handler) exportCycleXLSX(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	cid := companyID(r)

	cycle, err := h.svc.GetCycle(r.Context(), cid, cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.svc.ExportCycleXLSX(r.Context(), cid, cycleID, &buf); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cycle-%d-report.xlsx"`, cycle.CycleNumber))
	_, _ = buf.WriteTo(w)
}

// reportView is the view model for the report assistant page.
type reportView struct {
	ActiveCycle   *core.Cycle
	Report        string
	Draft         *core.DailyReportDraft
	Clarification string
}

// reportAssistantPage handles GET /report.
func (h *Handler) reportAssistantPage(w http.ResponseWriter, r *http.Request) {
	d := h.buildPageData(r, "Report Assistant", "report")

	view := reportView{}
	if active, err := h.svc.GetActiveCycle(r.Context(), companyID(r)); err == nil {
		view.ActiveCycle = active
	}

	d.Data = view
	h.renderPage(w, r, "report", d)
}

// reportParseAction handles POST /report/parse. The page re-renders directly
// with the draft or clarification; a redirect cannot carry the draft.
func (h *Handler) reportParseAction(w http.ResponseWriter, r *http.Request) {
	d := h.buildPageData(r, "Report Assistant", "report")

	view := reportView{}
	if active, err := h.svc.GetActiveCycle(r.Context(), companyID(r)); err == nil {
		view.ActiveCycle = active
	}

	if err := r.ParseForm(); err != nil {
		d.Flash = "Invalid form submission."
		d.FlashKind = "error"
		d.Data = view
		h.renderPage(w, r, "report", d)
		return
	}

	view.Report = strings.TrimSpace(r.FormValue("report"))
	if view.Report == "" {
		d.Flash = "Describe the day first, for example: \"12 died today, used 9 bags, avg weight 1.2kg\"."
		d.FlashKind = "error"
		d.Data = view
		h.renderPage(w, r, "report", d)
		return
	}

	result, err := h.svc.ParseDailyReport(r.Context(), view.Report)
	if err != nil {
		d.Flash = formErrorMessage(err)
		d.FlashKind = "error"
		d.Data = view
		h.renderPage(w, r, "report", d)
		return
	}

	if result.IsClarification {
		view.Clarification = result.ClarificationMessage
	} else {
		view.Draft = result.Draft
	}
	d.Data = view
	h.renderPage(w, r, "report", d)
}

// reportConfirmAction handles POST /report/confirm — records the reviewed
// draft through the normal entry path into the active cycle.
func (h *Handler) reportConfirmAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, "/report", "Invalid form submission.", "error")
		return
	}
	input, err := parseEntryForm(r)
	if err != nil {
		flashRedirect(w, r, "/report", err.Error(), "error")
		return
	}

	cid := companyID(r)
	active, err := h.svc.GetActiveCycle(r.Context(), cid)
	if err != nil {
		flashRedirect(w, r, "/report", formErrorMessage(err), "error")
		return
	}

	result, err := h.svc.RecordEntry(r.Context(), cid, active.ID, input)
	if err != nil {
		flashRedirect(w, r, "/report", formErrorMessage(err), "error")
		return
	}

	target := fmt.Sprintf("/cycles/%d/entries", active.ID)
	if result.Warning != nil {
		flashRedirect(w, r, target, "Entry recorded. "+result.Warning.Message(), "warning")
		return
	}
	flashRedirect(w, r, target, "Entry recorded.", "success")
}

// ── API handlers ──────────────────────────────────────────────────────────────

// incomeEstimateRequest is the JSON body for the income projection. Zero or
// omitted fields use the configured defaults.
type incomeEstimateRequest struct {
	ChickCostPerBird decimal.Decimal `json:"chick_cost_per_bird"`
	FeedCostPerKg    decimal.Decimal `json:"feed_cost_per_kg"`
	MedicineCost     decimal.Decimal `json:"medicine_cost"`
	VaccineCost      decimal.Decimal `json:"vaccine_cost"`
	OtherCost        decimal.Decimal `json:"other_cost"`
	MarketRatePerKg  decimal.Decimal `json:"market_rate_per_kg"`
	PCRatePerBird    decimal.Decimal `json:"pc_rate_per_bird"`
	IncomeRatePerKg  decimal.Decimal `json:"income_rate_per_kg"`
	FallbackFCR      float64         `json:"fallback_fcr"`
	UseMarketRate    *bool           `json:"use_market_rate"`
}

// apiEstimateIncome handles POST /api/cycles/{cycleID}/income-estimate.
func (h *Handler) apiEstimateIncome(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	// An empty body estimates with configured defaults on the market basis.
	var req incomeEstimateRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	useMarket := true
	if req.UseMarketRate != nil {
		useMarket = *req.UseMarketRate
	}

	estimate, err := h.svc.EstimateIncome(r.Context(), companyID(r), cycleID, core.IncomeEstimateInput{
		ChickCostPerBird: req.ChickCostPerBird,
		FeedCostPerKg:    req.FeedCostPerKg,
		MedicineCost:     req.MedicineCost,
		VaccineCost:      req.VaccineCost,
		OtherCost:        req.OtherCost,
		MarketRatePerKg:  req.MarketRatePerKg,
		PCRatePerBird:    req.PCRatePerBird,
		IncomeRatePerKg:  req.IncomeRatePerKg,
		FallbackFCR:      req.FallbackFCR,
		UseMarketRate:    useMarket,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, estimate)
}

// apiParseReport handles POST /api/report/parse.
func (h *Handler) apiParseReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Report string `json:"report"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Report) == "" {
		writeError(w, r, "report text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ParseDailyReport(r.Context(), req.Report)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	type response struct {
		IsClarification bool                   `json:"is_clarification"`
		Clarification   string                 `json:"clarification,omitempty"`
		Draft           *core.DailyReportDraft `json:"draft,omitempty"`
	}
	writeJSON(w, response{
		IsClarification: result.IsClarification,
		Clarification:   result.ClarificationMessage,
		Draft:           result.Draft,
	})
}
