package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

// ── Browser page handlers ─────────────────────────────────────────────────────

// cyclesView is the view model for the cycle list page.
type cyclesView struct {
	Cycles    []core.Cycle
	HasActive bool
}

// cyclesPage handles GET /cycles — list plus the new-cycle form.
func (h *Handler) cyclesPage(w http.ResponseWriter, r *http.Request) {
	d := h.buildPageData(r, "Cycles", "cycles")

	cycles, err := h.svc.ListCycles(r.Context(), companyID(r))
	if err != nil {
		d.Flash = "Failed to load cycles: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	view := cyclesView{Cycles: cycles}
	for _, c := range cycles {
		if c.Status == core.CycleActive {
			view.HasActive = true
			break
		}
	}

	d.Data = view
	h.renderPage(w, r, "cycles", d)
}

// cycleDetailView is the view model for one cycle's overview page.
type cycleDetailView struct {
	Cycle *core.Cycle
	Stats *core.CycleStats
}

// cycleDetailPage handles GET /cycles/{cycleID}.
func (h *Handler) cycleDetailPage(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	cycle, err := h.svc.GetCycle(r.Context(), companyID(r), cycleID)
	if err != nil {
		flashRedirect(w, r, "/cycles", formErrorMessage(err), "error")
		return
	}

	d := h.buildPageData(r, fmt.Sprintf("Cycle #%d", cycle.CycleNumber), "cycles")

	stats, err := h.svc.GetCycleStats(r.Context(), companyID(r), cycleID)
	if err != nil {
		d.Flash = "Failed to load stats: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	d.Data = cycleDetailView{Cycle: cycle, Stats: stats}
	h.renderPage(w, r, "cycle_detail", d)
}

// ── Form actions ──────────────────────────────────────────────────────────────

// cycleCreateAction handles POST /cycles — starts a new cycle. When the
// operator ticks "archive current", the running cycle is closed out first;
// otherwise a second active cycle is rejected.
func (h *Handler) cycleCreateAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, "/cycles", "Invalid form submission.", "error")
		return
	}
	cid := companyID(r)

	input, err := parseCycleForm(r)
	if err != nil {
		flashRedirect(w, r, "/cycles", err.Error(), "error")
		return
	}

	if r.FormValue("archive_current") != "" {
		if active, err := h.svc.GetActiveCycle(r.Context(), cid); err == nil {
			if _, err := h.svc.ArchiveCycle(r.Context(), cid, active.ID, time.Now()); err != nil {
				flashRedirect(w, r, "/cycles", "Failed to archive current cycle: "+formErrorMessage(err), "error")
				return
			}
		}
	}

	cycle, err := h.svc.CreateCycle(r.Context(), cid, input)
	if err != nil {
		flashRedirect(w, r, "/cycles", formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycle.ID), fmt.Sprintf("Cycle #%d started.", cycle.CycleNumber), "success")
}

// cycleArchiveAction handles POST /cycles/{cycleID}/archive.
func (h *Handler) cycleArchiveAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	_ = r.ParseForm()

	endDate := time.Now()
	if v := r.FormValue("end_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycleID), "End date must be YYYY-MM-DD.", "error")
			return
		}
		endDate = parsed
	}

	cycle, err := h.svc.ArchiveCycle(r.Context(), companyID(r), cycleID, endDate)
	if err != nil {
		flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycleID), formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycle.ID), fmt.Sprintf("Cycle #%d archived.", cycle.CycleNumber), "success")
}

// cycleUnarchiveAction handles POST /cycles/{cycleID}/unarchive.
func (h *Handler) cycleUnarchiveAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	cycle, err := h.svc.UnarchiveCycle(r.Context(), companyID(r), cycleID)
	if err != nil {
		flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycleID), formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycle.ID), fmt.Sprintf("Cycle #%d reopened.", cycle.CycleNumber), "success")
}

// cycleDeleteAction handles POST /cycles/{cycleID}/delete (admin only).
func (h *Handler) cycleDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.svc.DeleteCycle(r.Context(), companyID(r), cycleID); err != nil {
		flashRedirect(w, r, fmt.Sprintf("/cycles/%d", cycleID), formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, "/cycles", "Cycle deleted.", "success")
}

// parseCycleForm reads the new-cycle form fields.
func parseCycleForm(r *http.Request) (core.CycleInput, error) {
	var input core.CycleInput

	startDate := time.Now()
	if v := r.FormValue("start_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return input, fmt.Errorf("start date must be YYYY-MM-DD")
		}
		startDate = parsed
	}

	birds, err := strconv.Atoi(r.FormValue("start_birds"))
	if err != nil {
		return input, fmt.Errorf("starting birds must be a number")
	}
	bags, err := strconv.Atoi(r.FormValue("start_feed_bags"))
	if err != nil {
		return input, fmt.Errorf("starting feed bags must be a number")
	}

	input.StartDate = startDate
	input.StartBirds = birds
	input.StartFeedBags = bags
	return input, nil
}

// ── API handlers ──────────────────────────────────────────────────────────────

// apiListCycles handles GET /api/cycles.
func (h *Handler) apiListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.svc.ListCycles(r.Context(), companyID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Cycles []core.Cycle `json:"cycles"`
	}
	writeJSON(w, response{Cycles: cycles})
}

// apiActiveCycle handles GET /api/cycles/active.
func (h *Handler) apiActiveCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.svc.GetActiveCycle(r.Context(), companyID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, cycle)
}

// apiGetCycle handles GET /api/cycles/{cycleID}.
func (h *Handler) apiGetCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	cycle, err := h.svc.GetCycle(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, cycle)
}

// apiCycleStats handles GET /api/cycles/{cycleID}/stats.
func (h *Handler) apiCycleStats(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	stats, err := h.svc.GetCycleStats(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// cycleRequest is the JSON body for cycle creation.
type cycleRequest struct {
	StartDate     string `json:"start_date"`
	StartBirds    int    `json:"start_birds"`
	StartFeedBags int    `json:"start_feed_bags"`
}

// apiCreateCycle handles POST /api/cycles.
func (h *Handler) apiCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	startDate := time.Now()
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, r, "start_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		startDate = parsed
	}

	cycle, err := h.svc.CreateCycle(r.Context(), companyID(r), core.CycleInput{
		StartDate:     startDate,
		StartBirds:    req.StartBirds,
		StartFeedBags: req.StartFeedBags,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, cycle)
}

// apiArchiveCycle handles POST /api/cycles/{cycleID}/archive.
func (h *Handler) apiArchiveCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	// The end_date body is optional; an empty body archives as of today.
	var req struct {
		EndDate string `json:"end_date"`
	}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	endDate := time.Now()
	if req.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, r, "end_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		endDate = parsed
	}

	cycle, err := h.svc.ArchiveCycle(r.Context(), companyID(r), cycleID, endDate)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, cycle)
}

// apiUnarchiveCycle handles POST /api/cycles/{cycleID}/unarchive.
func (h *Handler) apiUnarchiveCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	cycle, err := h.svc.UnarchiveCycle(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, cycle)
}

// apiDeleteCycle handles DELETE /api/cycles/{cycleID} (admin only).
func (h *Handler) apiDeleteCycle(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteCycle(r.Context(), companyID(r), cycleID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiDashboard handles GET /api/dashboard.
func (h *Handler) apiDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetDashboard(r.Context(), companyID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}
