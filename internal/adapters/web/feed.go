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

// feedView is the view model for the feed page.
type feedView struct {
	Cycle     *core.Cycle
	Purchases []core.FeedPurchase
	Status    *core.FeedStatus
	Today     string
}

// feedPage handles GET /cycles/{cycleID}/feed.
func (h *Handler) feedPage(w http.ResponseWriter, r *http.Request) {
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

	d := h.buildPageData(r, "Feed Stock", "cycles")

	purchases, err := h.svc.GetFeedPurchases(r.Context(), cid, cycleID)
	if err != nil {
		d.Flash = "Failed to load purchases: " + formErrorMessage(err)
		d.FlashKind = "error"
	}
	status, err := h.svc.GetFeedStatus(r.Context(), cid, cycleID)
	if err != nil {
		status = &core.FeedStatus{}
	}

	d.Data = feedView{
		Cycle:     cycle,
		Purchases: purchases,
		Status:    status,
		Today:     time.Now().Format("2006-01-02"),
	}
	h.renderPage(w, r, "feed", d)
}

// ── Form actions ──────────────────────────────────────────────────────────────

// feedPurchaseAction handles POST /cycles/{cycleID}/feed.
func (h *Handler) feedPurchaseAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/feed", cycleID)

	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, target, "Invalid form submission.", "error")
		return
	}
	input, err := parseFeedPurchaseForm(r)
	if err != nil {
		flashRedirect(w, r, target, err.Error(), "error")
		return
	}

	purchase, err := h.svc.AddFeedPurchase(r.Context(), companyID(r), cycleID, input)
	if err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, fmt.Sprintf("Purchase of %d bags recorded.", purchase.Bags), "success")
}

// feedPurchaseDeleteAction handles POST /cycles/{cycleID}/feed/{purchaseID}/delete.
func (h *Handler) feedPurchaseDeleteAction(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	purchaseID, err := urlInt(r, "purchaseID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/cycles/%d/feed", cycleID)

	if err := h.svc.DeleteFeedPurchase(r.Context(), companyID(r), cycleID, purchaseID); err != nil {
		flashRedirect(w, r, target, formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, target, "Purchase deleted.", "success")
}

// parseFeedPurchaseForm reads the feed-purchase form fields.
func parseFeedPurchaseForm(r *http.Request) (core.FeedPurchaseInput, error) {
	var input core.FeedPurchaseInput

	purchaseDate := time.Now()
	if v := r.FormValue("purchase_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return input, fmt.Errorf("purchase date must be YYYY-MM-DD")
		}
		purchaseDate = parsed
	}

	bags, err := formInt(r, "bags")
	if err != nil {
		return input, err
	}
	bagWeight, err := formFloat(r, "bag_weight_kg")
	if err != nil {
		return input, err
	}
	price, err := formDecimal(r, "price_per_kg")
	if err != nil {
		return input, err
	}

	input.PurchaseDate = purchaseDate
	input.FeedName = strings.TrimSpace(r.FormValue("feed_name"))
	input.BillNumber = strings.TrimSpace(r.FormValue("bill_number"))
	input.Bags = bags
	input.BagWeightKg = bagWeight
	input.PricePerKg = price
	return input, nil
}

// formDecimal reads an optional decimal form field, treating blank as zero.
func formDecimal(r *http.Request, key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number", strings.ReplaceAll(key, "_", " "))
	}
	return d, nil
}

// ── API handlers ──────────────────────────────────────────────────────────────

// feedPurchaseRequest is the JSON body for recording a feed purchase.
type feedPurchaseRequest struct {
	PurchaseDate string          `json:"purchase_date"`
	FeedName     string          `json:"feed_name"`
	BillNumber   string          `json:"bill_number"`
	Bags         int             `json:"bags"`
	BagWeightKg  float64         `json:"bag_weight_kg"`
	PricePerKg   decimal.Decimal `json:"price_per_kg"`
}

// apiListFeedPurchases handles GET /api/cycles/{cycleID}/feed-purchases.
func (h *Handler) apiListFeedPurchases(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	purchases, err := h.svc.GetFeedPurchases(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Purchases []core.FeedPurchase `json:"purchases"`
	}
	writeJSON(w, response{Purchases: purchases})
}

// apiAddFeedPurchase handles POST /api/cycles/{cycleID}/feed-purchases.
func (h *Handler) apiAddFeedPurchase(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req feedPurchaseRequest
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

	purchase, err := h.svc.AddFeedPurchase(r.Context(), companyID(r), cycleID, core.FeedPurchaseInput{
		PurchaseDate: purchaseDate,
		FeedName:     req.FeedName,
		BillNumber:   req.BillNumber,
		Bags:         req.Bags,
		BagWeightKg:  req.BagWeightKg,
		PricePerKg:   req.PricePerKg,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, purchase)
}

// apiDeleteFeedPurchase handles DELETE /api/cycles/{cycleID}/feed-purchases/{purchaseID}.
func (h *Handler) apiDeleteFeedPurchase(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	purchaseID, err := urlInt(r, "purchaseID")
	if err != nil {
		writeError(w, r, "invalid purchase id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteFeedPurchase(r.Context(), companyID(r), cycleID, purchaseID); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiFeedStatus handles GET /api/cycles/{cycleID}/feed-status.
func (h *Handler) apiFeedStatus(w http.ResponseWriter, r *http.Request) {
	cycleID, err := urlInt(r, "cycleID")
	if err != nil {
		writeError(w, r, "invalid cycle id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	status, err := h.svc.GetFeedStatus(r.Context(), companyID(r), cycleID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, status)
}
