package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

// ── Browser page handlers ─────────────────────────────────────────────────────

// dispatchesView is the view model for the dispatch list page.
type dispatchesView struct {
	Cycle      *core.Cycle
	Dispatches []core.Dispatch
	Today      string
}

// dispatchesPage handles GET /cycles/{cycleID}/dispatches.
func (h *Handler) dispatchesPage(w http.ResponseWriter, r *http.Request) {
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

	d := h.buildPageData(r, "Dispatches", "cycles")

	dispatches, err := h.svc.GetDispatches(r.Context(), cid, cycleID)
	if err != nil {
		d.Flash = "Failed to load dispatches: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	d.Data = dispatchesView{
		Cycle:      cycle,
		Dispatches: dispatches,
		Today:      time.Now().Format("2006-01-02"),
	}
	h.renderPage(w, r, "dispatches", d)
}

// dispatchDetailView is the view model for one dispatch's weighing sheet.
type dispatchDetailView struct {
	Cycle    *core.Cycle
	Dispatch *core.Dispatch
}

// dispatchDetailPage handles GET /cycles/{cycleID}/dispatches/{dispatchID}.
func (h *Handler) dispatchDetailPage(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
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
	dispatch, err := h.svc.GetDispatch(r.Context(), cid, cycleID, dispatchID)
	if err != nil {
		flashRedirect(w, r, fmt.Sprintf("/cycles/%d/dispatches", cycleID), formErrorMessage(err), "error")
		return
	}

	d := h.buildPageData(r, fmt.Sprintf("Dispatch — %s", dispatch.PartyName), "cycles")
	d.Data = dispatchDetailView{Cycle: cycle, Dispatch: dispatch}
	h.renderPage(w, r, "dispatch_detail", d)
}

// ── Form actions ──────────────────────────────────────────────────────────────

// dispatchCreateAction handles POST /cycles/{cycleID}/dispatches.
func (h *Handler) dispatchCreateAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/dispatches", cycleID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}

	dispatchDate := time.Now()
	if v := r.FormValue("dispatch_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			flashRedirect(w, r, target, "Dispatch date must be YYYY-MM-DD.", "error")
			return
		}
		dispatchDate = parsed
	}

	dispatch, err := h.svc.CreateDispatch(r.Context(), companyID(r), cycleID, core.DispatchInput{
		DispatchDate:  dispatchDate,
		PartyName:     strings.TrimSpace(r.FormValue("party_name")),
		VehicleNumber: strings.TrimSpace(r.FormValue("vehicle_number")),
		DriverName:    strings.TrimSpace(r.FormValue("driver_name")),
	})
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, fmt.Sprintf("/cycles/%d/dispatches/%d", cycleID, dispatch.ID), "Dispatch opened. Add weighings below.", "success")
}

// weighingAddAction handles POST /cycles/{cycleID}/dispatches/{dispatchID}/weighings.
func (h *Handler) weighingAddAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/dispatches/%d", cycleID, dispatchID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}
	birdCount, err := formInt(r, "bird_count")
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}
	weightKg, err := formFloat(r, "weight_kg")
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}

	if _, err := h.svc.AddWeighing(r.Context(), companyID(r), cycleID, dispatchID, birdCount, weightKg); err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// weighingDeleteAction handles POST /cycles/{cycleID}/dispatches/{dispatchID}/weighings/{weighingID}/delete.
func (h *Handler) weighingDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	weighingID, err := urlInt(r, "weighingID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/dispatches/%d", cycleID, dispatchID)

	if _, err := h.svc.DeleteWeighing(r.Context(), companyID(r), cycleID, dispatchID, weighingID); err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// dispatchCompleteAction handles POST /cycles/{cycleID}/dispatches/{dispatchID}/complete.
func (h *Handler) dispatchCompleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/dispatches/%d", cycleID, dispatchID)

	dispatch, err := h.svc.CompleteDispatch(r.Context(), companyID(r), cycleID, dispatchID)
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target,
		fmt.Sprintf("Dispatch completed: %d birds, %.1f kg.", dispatch.TotalBirds, dispatch.TotalWeightKg), "success")
}

// dispatchDeleteAction handles POST /cycles/{cycleID}/dispatches/{dispatchID}/delete.
func (h *Handler) dispatchDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.svc.DeleteDispatch(r.Context(), companyID(r), cycleID, dispatchID); err != nil {
		flashRedirect(w, r, fmt.Sprintf("/cycles/%d/dispatches/%d", cycleID, dispatchID), formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, fmt.Sprintf("/cycles/%d/dispatches", cycleID), "Dispatch deleted.", "success")
}

// ── API handlers ──────────────────────────────────────────────────────────────

// apiListDispatches handles GET /api/cycles/{cycleID}/dispatches.
func (h *Handler) apiListDispatches(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatches, err := h.svc.GetDispatches(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Dispatches []core.Dispatch `json:"dispatches"`
	}
	writeJSON(w, response{Dispatches: dispatches})
}

// apiCreateDispatch handles POST /api/cycles/{cycleID}/dispatches.
func (h *Handler) apiCreateDispatch(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		DispatchDate  string `json:"dispatch_date"`
		PartyName     string `json:"party_name"`
		VehicleNumber string `json:"vehicle_number"`
		DriverName    string `json:"driver_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	dispatchDate := time.Now()
	if req.DispatchDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DispatchDate)
		if err != nil {
			writeError(w, r, "dispatch_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		dispatchDate = parsed
	}

	dispatch, err := h.svc.CreateDispatch(r.Context(), companyID(r), cycleID, core.DispatchInput{
		DispatchDate:  dispatchDate,
		PartyName:     req.PartyName,
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, dispatch)
}

// apiGetDispatch handles GET /api/cycles/{cycleID}/dispatches/{dispatchID}.
func (h *Handler) apiGetDispatch(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		writeError(w, r, "invalid dispatch id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatch, err := h.svc.GetDispatch(r.Context(), companyID(r), cycleID, dispatchID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, dispatch)
}

// apiAddWeighing handles POST /api/cycles/{cycleID}/dispatches/{dispatchID}/weighings.
// Responds with the refreshed dispatch so clients see updated totals.
func (h *Handler) apiAddWeighing(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		writeError(w, r, "invalid dispatch id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		BirdCount int     `json:"bird_count"`
		WeightKg  float64 `json:"weight_kg"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	dispatch, err := h.svc.AddWeighing(r.Context(), companyID(r), cycleID, dispatchID, req.BirdCount, req.WeightKg)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, dispatch)
}

// apiDeleteWeighing handles DELETE /api/cycles/{cycleID}/dispatches/{dispatchID}/weighings/{weighingID}.
func (h *Handler) apiDeleteWeighing(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		writeError(w, r, "invalid dispatch id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	weighingID, err := urlInt(r, "weighingID")
	if err != nil {
		writeError(w, r, "invalid weighing id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	dispatch, err := h.svc.DeleteWeighing(r.Context(), companyID(r), cycleID, dispatchID, weighingID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, dispatch)
}

// apiCompleteDispatch handles POST /api/cycles/{cycleID}/dispatches/{dispatchID}/complete.
func (h *Handler) apiCompleteDispatch(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		writeError(w, r, "invalid dispatch id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	dispatch, err := h.svc.CompleteDispatch(r.Context(), companyID(r), cycleID, dispatchID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, dispatch)
}

// apiDeleteDispatch handles DELETE /api/cycles/{cycleID}/dispatches/{dispatchID}.
func (h *Handler) apiDeleteDispatch(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	dispatchID, err := urlInt(r, "dispatchID")
	if err != nil {
		writeError(w, r, "invalid dispatch id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteDispatch(r.Context(), companyID(r), cycleID, dispatchID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
