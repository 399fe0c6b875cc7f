package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ayumu/warikan/internal/money"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with CORS headers set
func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeNotice writes a user-facing notice as a JSON error body
func writeNotice(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// noticeFor maps session errors to an HTTP status and a user-facing
// message. Unknown errors come back as an internal error.
func noticeFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusConflict, "No scanning backend is configured. Save your API settings first."
	case errors.Is(err, ErrScanInProgress):
		return http.StatusConflict, "A scan is already running. Wait for it to finish."
	case errors.Is(err, ErrInvalidTaxRate):
		return http.StatusBadRequest, "Please enter a valid tax rate."
	case errors.Is(err, ErrInvalidItem):
		return http.StatusBadRequest, "Please enter a valid item name and price."
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound, "Item not found."
	case errors.Is(err, ErrNoItems):
		return http.StatusBadRequest, "There are no items to save."
	}
	return http.StatusInternalServerError, "Internal server error"
}

// handleScan accepts a receipt image, runs extraction and parsing, and
// replaces the working item list with the result.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	// 50MB covers high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "File is too large. Maximum size is 50MB."
		}
		writeNotice(w, http.StatusBadRequest, msg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeNotice(w, http.StatusBadRequest, "Please upload a receipt image first.")
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeNotice(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeNotice(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromExt(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	language := r.FormValue("language")

	result, err := s.session.ProcessImage(data, contentType, language)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrScanInProgress) {
			status, msg := noticeFor(err)
			writeNotice(w, status, msg)
			return
		}
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeNotice(w, http.StatusBadGateway, "Error processing the receipt. Please try again with a clearer image.")
		return
	}

	message := fmt.Sprintf("Detected %d items. Please check and assign them.", len(result.Items))
	if len(result.Items) == 0 {
		message = "No items could be detected. Try uploading a clearer image or add items manually."
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":   result.Items,
		"text":    result.Text,
		"count":   len(result.Items),
		"message": message,
	})
}

func contentTypeFromExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListItems returns the working item list
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Items())
}

// handleAddItem adds a manually entered item
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string       `json:"name"`
		Price *money.Money `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Price == nil {
		writeNotice(w, http.StatusBadRequest, "Please enter a valid item name and price.")
		return
	}

	item, err := s.session.AddItem(req.Name, *req.Price)
	if err != nil {
		status, msg := noticeFor(err)
		writeNotice(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// handleUpdateItem edits an item's name, price or assignment
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Name       *string      `json:"name"`
		Price      *money.Money `json:"price"`
		Assignment *string      `json:"assignment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNotice(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := ItemUpdate{Name: req.Name, Price: req.Price}
	if req.Assignment != nil {
		assignment, ok := ParseAssignment(*req.Assignment)
		if !ok {
			writeNotice(w, http.StatusBadRequest, "Assignment must be one of: unassigned, mine, friend, shared.")
			return
		}
		update.Assignment = &assignment
	}

	item, err := s.session.UpdateItem(id, update)
	if err != nil {
		status, msg := noticeFor(err)
		writeNotice(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleClearItems discards the working item list
func (s *Server) handleClearItems(w http.ResponseWriter, r *http.Request) {
	cleared := s.session.ClearItems()
	writeJSON(w, http.StatusOK, map[string]any{
		"cleared": cleared,
		"message": "All items cleared",
	})
}

// handleTotals returns the per-party totals breakdown
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals := s.session.Totals()
	currency := s.session.Currency()

	writeJSON(w, http.StatusOK, map[string]any{
		"totals":   totals,
		"currency": currency,
		"taxRate":  s.session.TaxRate(),
		"formatted": map[string]string{
			"mySubtotal":     totals.MySubtotal.Format(currency),
			"friendSubtotal": totals.FriendSubtotal.Format(currency),
			"myTax":          totals.MyTax.Format(currency),
			"friendTax":      totals.FriendTax.Format(currency),
			"myTotal":        totals.MyTotal.Format(currency),
			"friendTotal":    totals.FriendTotal.Format(currency),
			"receiptTotal":   totals.ReceiptTotal.Format(currency),
		},
	})
}

// handleTaxRate applies a new tax rate
func (s *Server) handleTaxRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate *float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rate == nil {
		writeNotice(w, http.StatusBadRequest, "Please enter a valid tax rate.")
		return
	}

	if err := s.session.ApplyTaxRate(*req.Rate); err != nil {
		status, msg := noticeFor(err)
		writeNotice(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"taxRate": *req.Rate,
		"message": fmt.Sprintf("Tax rate updated to %g%%", *req.Rate),
	})
}

// handleCurrency sets the display currency
func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNotice(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.session.SetCurrency(money.Currency(req.Currency)); err != nil {
		writeNotice(w, http.StatusBadRequest, "Currency is required.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"currency": req.Currency})
}

// handleEditMode toggles edit mode
func (s *Server) handleEditMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"editMode": s.session.ToggleEditMode()})
}

// handleSaveReceipt snapshots the working set into the history
func (s *Server) handleSaveReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeNotice(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := s.session.SaveReceipt(req.Name)
	if err != nil {
		if errors.Is(err, ErrNoItems) {
			writeNotice(w, http.StatusBadRequest, "There are no items to save.")
			return
		}
		slog.Error("Error saving receipt", "error", err)
		writeNotice(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleListReceipts returns the receipt history, newest first
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.session.History()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeNotice(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if receipts == nil {
		receipts = []*Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single saved receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.session.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeNotice(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleLoadReceipt loads a saved receipt into the working set
func (s *Server) handleLoadReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.session.LoadReceipt(r.PathValue("id"))
	if err != nil {
		writeNotice(w, http.StatusNotFound, "Receipt not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"receipt": receipt,
		"message": fmt.Sprintf("Loaded receipt: %s", receipt.Name),
	})
}

// handleGetSettings returns the persisted scanner settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.session.Settings()
	if err != nil {
		slog.Error("Error getting settings", "error", err)
		writeNotice(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if settings == nil {
		settings = &Settings{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleSaveSettings persists scanner settings and swaps in a backend
// built from them
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeNotice(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.session.SaveSettings(&settings); err != nil {
		slog.Error("Error saving settings", "error", err)
		writeNotice(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if s.newScanner != nil {
		scanner, err := s.newScanner(&settings)
		if err != nil {
			writeNotice(w, http.StatusBadRequest, "Settings saved, but the scanner could not be configured. Check them and try again.")
			return
		}
		if old := s.session.SetScanner(scanner); old != nil {
			old.Close()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Settings saved"})
}
