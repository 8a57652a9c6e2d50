package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"github.com/shopspring/decimal"
)

// ── Browser page handlers ─────────────────────────────────────────────────────

// costsView is the view model for the medicines-and-expenses page.
type costsView struct {
	Cycle         *core.Cycle
	Medicines     []core.Medicine
	Expenses      []core.Expense
	MedicineTotal decimal.Decimal
	ExpenseTotal  decimal.Decimal
	Today         string
}

// costsPage handles GET /cycles/{cycleID}/costs.
func (h *Handler) costsPage(w http.ResponseWriter, r *http.Request) {
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

	d := h.buildPageData(r, "Medicines & Expenses", "cycles")

	view := costsView{Cycle: cycle, Today: time.Now().Format("2006-01-02")}

	medicines, err := h.svc.GetMedicines(r.Context(), cid, cycleID)
	if err != nil {
		d.Flash = "Failed to load medicines: " + formErrorMessage(err)
		d.FlashKind = "error"
	}
	expenses, err := h.svc.GetExpenses(r.Context(), cid, cycleID)
	if err != nil {
		d.Flash = "Failed to load expenses: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	view.Medicines = medicines
	view.Expenses = expenses
	for _, m := range medicines {
		view.MedicineTotal = view.MedicineTotal.Add(m.Cost)
	}
	for _, e := range expenses {
		view.ExpenseTotal = view.ExpenseTotal.Add(e.Amount)
	}

	d.Data = view
	h.renderPage(w, r, "costs", d)
}

// ── Form actions ──────────────────────────────────────────────────────────────

// medicineCreateAction handles POST /cycles/{cycleID}/costs/medicines.
func (h *Handler) medicineCreateAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/costs", cycleID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}

	purchaseDate := time.Now()
	if v := r.FormValue("purchase_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			flashRedirect(w, r, target, "Purchase date must be YYYY-MM-DD.", "error")
			return
		}
		purchaseDate = parsed
	}
	cost, err := formDecimal(r, "cost")
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}

	medicine, err := h.svc.AddMedicine(r.Context(), companyID(r), cycleID, core.MedicineInput{
		PurchaseDate: purchaseDate,
		Name:         strings.TrimSpace(r.FormValue("name")),
		Cost:         cost,
		Notes:        strings.TrimSpace(r.FormValue("notes")),
	})
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, fmt.Sprintf("%s recorded.", medicine.Name), "success")
}

// medicineDeleteAction handles POST /cycles/{cycleID}/costs/medicines/{medicineID}/delete.
func (h *Handler) medicineDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	medicineID, err := urlInt(r, "medicineID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/costs", cycleID)

	if err := h.svc.DeleteMedicine(r.Context(), companyID(r), cycleID, medicineID); err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, "Medicine deleted.", "success")
}

// expenseCreateAction handles POST /cycles/{cycleID}/costs/expenses.
func (h *Handler) expenseCreateAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/costs", cycleID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}

	expenseDate := time.Now()
	if v := r.FormValue("expense_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			flashRedirect(w, r, target, "Expense date must be YYYY-MM-DD.", "error")
			return
		}
		expenseDate = parsed
	}
	amount, err := formDecimal(r, "amount")
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}

	_, err = h.svc.AddExpense(r.Context(), companyID(r), cycleID, core.ExpenseInput{
		ExpenseDate: expenseDate,
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Amount:      amount,
	})
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, "Expense recorded.", "success")
}

// expenseDeleteAction handles POST /cycles/{cycleID}/costs/expenses/{expenseID}/delete.
func (h *Handler) expenseDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	expenseID, err := urlInt(r, "expenseID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/costs", cycleID)

	if err := h.svc.DeleteExpense(r.Context(), companyID(r), cycleID, expenseID); err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, "Expense deleted.", "success")
}

// ── API handlers ──────────────────────────────────────────────────────────────

// apiListMedicines handles GET /api/cycles/{cycleID}/medicines.
func (h *Handler) apiListMedicines(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	medicines, err := h.svc.GetMedicines(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Medicines []core.Medicine `json:"medicines"`
	}
	writeJSON(w, response{Medicines: medicines})
}

// apiAddMedicine handles POST /api/cycles/{cycleID}/medicines.
func (h *Handler) apiAddMedicine(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		PurchaseDate string          `json:"purchase_date"`
		Name         string          `json:"name"`
		Cost         decimal.Decimal `json:"cost"`
		Notes        string          `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	purchaseDate := time.Now()
	if req.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			writeError(w, r, "purchase_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		purchaseDate = parsed
	}

	medicine, err := h.svc.AddMedicine(r.Context(), companyID(r), cycleID, core.MedicineInput{
		PurchaseDate: purchaseDate,
		Name:         req.Name,
		Cost:         req.Cost,
		Notes:        req.Notes,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, medicine)
}

// apiDeleteMedicine handles DELETE /api/cycles/{cycleID}/medicines/{medicineID}.
func (h *Handler) apiDeleteMedicine(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	medicineID, err := urlInt(r, "medicineID")
	if err != nil {
		writeError(w, r, "invalid medicine id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteMedicine(r.Context(), companyID(r), cycleID, medicineID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiListExpenses handles GET /api/cycles/{cycleID}/expenses.
func (h *Handler) apiListExpenses(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	expenses, err := h.svc.GetExpenses(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Expenses []core.Expense `json:"expenses"`
	}
	writeJSON(w, response{Expenses: expenses})
}

// apiAddExpense handles POST /api/cycles/{cycleID}/expenses.
func (h *Handler) apiAddExpense(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		ExpenseDate string          `json:"expense_date"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	expenseDate := time.Now()
	if req.ExpenseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpenseDate)
		if err != nil {
			writeError(w, r, "expense_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		expenseDate = parsed
	}

	expense, err := h.svc.AddExpense(r.Context(), companyID(r), cycleID, core.ExpenseInput{
		ExpenseDate: expenseDate,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, expense)
}

// apiDeleteExpense handles DELETE /api/cycles/{cycleID}/expenses/{expenseID}.
func (h *Handler) apiDeleteExpense(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	expenseID, err := urlInt(r, "expenseID")
	if err != nil {
		writeError(w, r, "invalid expense id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteExpense(r.Context(), companyID(r), cycleID, expenseID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
