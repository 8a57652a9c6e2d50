package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

// ── Browser page handlers ─────────────────────────────────────────────────────

// entriesView is the view model for the daily-entries page.
type entriesView struct {
	Cycle   *core.Cycle
	Entries []core.DailyEntry
	Editing *core.DailyEntry
	Today   string
}

// entriesPage handles GET /cycles/{cycleID}/entries. The ?edit= parameter
// selects a row whose values prefill the form for correction.
func (h *Handler) entriesPage(w http.ResponseWriter, r *http.Request) {
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

	d := h.buildPageData(r, "Daily Entries", "cycles")

	entries, err := h.svc.GetEntries(r.Context(), cid, cycleID)
	if err != nil {
		d.Flash = "Failed to load entries: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	view := entriesView{
		Cycle:   cycle,
		Entries: entries,
		Today:   time.Now().Format("2006-01-02"),
	}
	if v := r.URL.Query().Get("edit"); v != "" {
		if entryID, err := strconv.Atoi(v); err == nil {
			if entry, err := h.svc.GetEntry(r.Context(), cid, cycleID, entryID); err == nil {
				view.Editing = entry
			}
		}
	}

	d.Data = view
	h.renderPage(w, r, "entries", d)
}

// ── Form actions ──────────────────────────────────────────────────────────────

// entryCreateAction handles POST /cycles/{cycleID}/entries.
func (h *Handler) entryCreateAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/entries", cycleID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}
	input, err := parseEntryForm(r)
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}

	result, err := h.svc.RecordEntry(r.Context(), companyID(r), cycleID, input)
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}

	if result.Warning != nil {
		flashRedirect(w, r, target, "Entry recorded. "+result.Warning.Message(), "warning")
		return
	}
	flashRedirect(w, r, target, "Entry recorded.", "success")
}

// entryUpdateAction handles POST /cycles/{cycleID}/entries/{entryID}/update.
func (h *Handler) entryUpdateAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	entryID, err := urlInt(r, "entryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/entries", cycleID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}
	input, err := parseEntryForm(r)
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}

	result, err := h.svc.UpdateEntry(r.Context(), companyID(r), cycleID, entryID, input)
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}

	if result.Warning != nil {
		flashRedirect(w, r, target, "Entry updated. "+result.Warning.Message(), "warning")
		return
	}
	flashRedirect(w, r, target, "Entry updated.", "success")
}

// entryDeleteAction handles POST /cycles/{cycleID}/entries/{entryID}/delete.
func (h *Handler) entryDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	entryID, err := urlInt(r, "entryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/entries", cycleID)

	if err := h.svc.DeleteEntry(r.Context(), companyID(r), cycleID, entryID); err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, "Entry deleted.", "success")
}

// entriesImportAction handles POST /cycles/{cycleID}/entries/import — a
// multipart CSV upload, capped at 5 MB.
func (h *Handler) entriesImportAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/entries", cycleID)

	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		flashRedirect(w, r, target, "Upload failed: file too large or malformed.", "error")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		flashRedirect(w, r, target, "Choose a CSV file to import.", "error")
		return
	}
	defer file.Close()

	report, err := h.svc.ImportEntries(r.Context(), companyID(r), cycleID, file)
	if err != nil {
		flashRedirect(w, r, target, "Import failed: "+formErrorMessage(err), "error")
		return
	}

	msg := fmt.Sprintf("Imported %d of %d rows.", report.Imported, report.Total)
	kind := "success"
	if report.Skipped > 0 {
		msg = fmt.Sprintf("Imported %d of %d rows, %d skipped.", report.Imported, report.Total, report.Skipped)
		kind = "warning"
		for _, row := range report.Rows {
			if !row.Imported {
				msg += fmt.Sprintf(" Row %d: %s.", row.Row, row.Reason)
				break
			}
		}
	}
	flashRedirect(w, r, target, msg, kind)
}

// exportEntriesCSV handles GET /cycles/{cycleID}/entries/export.csv and
// GET /api/cycles/{cycleID}/entries/export. The file is built in memory
// first so a query failure can still produce a clean error response.
func (h *Handler) exportEntriesCSV(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.ExportEntriesCSV(r.Context(), cid, cycleID, &buf); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cycle-%d-entries.csv"`, cycle.CycleNumber))
	_, _ = buf.WriteTo(w)
}

// parseEntryForm reads the daily-entry form fields. Blank numeric fields
// count as zero, matching how operators skip columns with nothing to report.
func parseEntryForm(r *http.Request) (core.EntryInput, error) {
	var input core.EntryInput

	entryDate := time.Now()
	if v := r.FormValue("entry_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return input, fmt.Errorf("entry date must be YYYY-MM-DD")
		}
		entryDate = parsed
	}

	mortality, err := formInt(r, "mortality")
	if err != nil {
		return input, err
	}
	consumed, err := formInt(r, "feed_bags_consumed")
	if err != nil {
		return input, err
	}
	added, err := formInt(r, "feed_bags_added")
	if err != nil {
		return input, err
	}
	weight, err := formFloat(r, "sampled_weight_grams")
	if err != nil {
		return input, err
	}

	input.EntryDate = entryDate
	input.Mortality = mortality
	input.FeedBagsConsumed = consumed
	input.FeedBagsAdded = added
	input.SampledWeightGrams = weight
	return input, nil
}

// formInt reads an optional integer form field, treating blank as zero.
func formInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", strings.ReplaceAll(key, "_", " "))
	}
	return n, nil
}

// formFloat reads an optional numeric form field, treating blank as zero.
func formFloat(r *http.Request, key string) (float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", strings.ReplaceAll(key, "_", " "))
	}
	return f, nil
}

// ── API handlers ──────────────────────────────────────────────────────────────

// entryRequest is the JSON body for recording or updating a daily entry.
type entryRequest struct {
	EntryDate          string  `json:"entry_date"`
	Mortality          int     `json:"mortality"`
	FeedBagsConsumed   int     `json:"feed_bags_consumed"`
	FeedBagsAdded      int     `json:"feed_bags_added"`
	SampledWeightGrams float64 `json:"sampled_weight_grams"`
}

func (req entryRequest) toInput() (core.EntryInput, error) {
	entryDate := time.Now()
	if req.EntryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EntryDate)
		if err != nil {
			return core.EntryInput{}, fmt.Errorf("entry_date must be YYYY-MM-DD")
		}
		entryDate = parsed
	}
	return core.EntryInput{
		EntryDate:          entryDate,
		Mortality:          req.Mortality,
		FeedBagsConsumed:   req.FeedBagsConsumed,
		FeedBagsAdded:      req.FeedBagsAdded,
		SampledWeightGrams: req.SampledWeightGrams,
	}, nil
}

// entryResponse pairs the stored entry with an optional low-stock warning.
type entryResponse struct {
	Entry   *core.DailyEntry `json:"entry"`
	Warning string           `json:"warning,omitempty"`
}

// apiListEntries handles GET /api/cycles/{cycleID}/entries.
func (h *Handler) apiListEntries(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	entries, err := h.svc.GetEntries(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Entries []core.DailyEntry `json:"entries"`
	}
	writeJSON(w, response{Entries: entries})
}

// apiGetEntry handles GET /api/cycles/{cycleID}/entries/{entryID}.
func (h *Handler) apiGetEntry(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	entryID, err := urlInt(r, "entryID")
	if err != nil {
		writeError(w, r, "invalid entry id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), companyID(r), cycleID, entryID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// apiRecordEntry handles POST /api/cycles/{cycleID}/entries.
func (h *Handler) apiRecordEntry(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.RecordEntry(r.Context(), companyID(r), cycleID, input)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := entryResponse{Entry: result.Entry}
	if result.Warning != nil {
		resp.Warning = result.Warning.Message()
	}
	writeJSONStatus(w, http.StatusCreated, resp)
}

// apiUpdateEntry handles PUT /api/cycles/{cycleID}/entries/{entryID}.
func (h *Handler) apiUpdateEntry(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	entryID, err := urlInt(r, "entryID")
	if err != nil {
		writeError(w, r, "invalid entry id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.UpdateEntry(r.Context(), companyID(r), cycleID, entryID, input)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := entryResponse{Entry: result.Entry}
	if result.Warning != nil {
		resp.Warning = result.Warning.Message()
	}
	writeJSON(w, resp)
}

// apiDeleteEntry handles DELETE /api/cycles/{cycleID}/entries/{entryID}.
func (h *Handler) apiDeleteEntry(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	entryID, err := urlInt(r, "entryID")
	if err != nil {
		writeError(w, r, "invalid entry id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteEntry(r.Context(), companyID(r), cycleID, entryID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiImportEntries handles POST /api/cycles/{cycleID}/entries/import.
// The CSV arrives as the "file" field of a multipart form.
func (h *Handler) apiImportEntries(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, r, "multipart form expected with a \"file\" field", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, "missing \"file\" field", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()

	report, err := h.svc.ImportEntries(r.Context(), companyID(r), cycleID, file)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, report)
}
