package receipt

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ayumu/warikan/internal/money"
	"github.com/ayumu/warikan/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		db      *mockDB
		scanner *mockScanner
		session *Session
		server  *Server
	)

	BeforeEach(func() {
		db = newMockDB()
		scanner = &mockScanner{
			result: &scanning.ScanResult{
				Text: "Milk ¥250\nEggs ¥180",
				Items: []scanning.ItemCandidate{
					{Name: "Milk", Price: 250},
					{Name: "Eggs", Price: 180},
				},
			},
		}
		session = NewSessionWithDeps(db, scanner, NewParser(ParserConfig{}), &stubIDGenerator{}, &stubTimeSource{})
		server = NewServer(session, nil, BasicAuth{})
	})

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	Describe("POST /api/scan", func() {
		scanRequest := func() *http.Request {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile("file", "receipt.png")
			Expect(err).NotTo(HaveOccurred())
			_, err = fw.Write([]byte("fake image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			req := httptest.NewRequest("POST", "/api/scan", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		}

		It("scans an uploaded image and returns the detected items", func() {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, scanRequest())
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Items   []*Item `json:"items"`
				Count   int     `json:"count"`
				Message string  `json:"message"`
			}
			decode(rec, &resp)
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Items[0].Name).To(Equal("Milk"))
			Expect(resp.Message).To(ContainSubstring("Detected 2 items"))
		})

		It("reports when nothing could be detected", func() {
			scanner.result = &scanning.ScanResult{Text: "????"}

			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, scanRequest())
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Count   int    `json:"count"`
				Message string `json:"message"`
			}
			decode(rec, &resp)
			Expect(resp.Count).To(Equal(0))
			Expect(resp.Message).To(ContainSubstring("No items could be detected"))
		})

		It("rejects a request without a file", func() {
			rec := do("POST", "/api/scan", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns a conflict when no backend is configured", func() {
			session.SetScanner(nil)

			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, scanRequest())
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("items", func() {
		It("adds and lists items", func() {
			rec := do("POST", "/api/items", map[string]any{"name": "Wine", "price": 1500})
			Expect(rec.Code).To(Equal(http.StatusCreated))

			rec = do("GET", "/api/items", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var items []*Item
			decode(rec, &items)
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Wine"))
		})

		It("rejects an item without a price", func() {
			rec := do("POST", "/api/items", map[string]any{"name": "Wine"})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("updates an item's assignment", func() {
			item, err := session.AddItem("Milk", money.FromInt(250))
			Expect(err).NotTo(HaveOccurred())

			rec := do("PATCH", "/api/items/"+item.ID, map[string]any{"assignment": "shared"})
			Expect(rec.Code).To(Equal(http.StatusOK))

			var updated Item
			decode(rec, &updated)
			Expect(updated.Assignment).To(Equal(Shared))
		})

		It("rejects an unknown assignment name", func() {
			item, err := session.AddItem("Milk", money.FromInt(250))
			Expect(err).NotTo(HaveOccurred())

			rec := do("PATCH", "/api/items/"+item.ID, map[string]any{"assignment": "everyone"})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown item", func() {
			rec := do("PATCH", "/api/items/missing", map[string]any{"assignment": "mine"})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("clears the working set", func() {
			_, err := session.AddItem("Milk", money.FromInt(250))
			Expect(err).NotTo(HaveOccurred())

			rec := do("DELETE", "/api/items", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(session.Items()).To(BeEmpty())
		})
	})

	Describe("GET /api/totals", func() {
		It("returns the breakdown with display-formatted figures", func() {
			item, err := session.AddItem("Groceries", money.FromInt(1000))
			Expect(err).NotTo(HaveOccurred())
			mine := Mine
			_, err = session.UpdateItem(item.ID, ItemUpdate{Assignment: &mine})
			Expect(err).NotTo(HaveOccurred())

			rec := do("GET", "/api/totals", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Totals    Totals            `json:"totals"`
				Currency  string            `json:"currency"`
				TaxRate   float64           `json:"taxRate"`
				Formatted map[string]string `json:"formatted"`
			}
			decode(rec, &resp)
			Expect(resp.Currency).To(Equal("JPY"))
			Expect(resp.TaxRate).To(Equal(10.0))
			Expect(resp.Totals.MyTotal.Equal(money.FromInt(1100))).To(BeTrue())
			Expect(resp.Formatted["myTotal"]).To(Equal("1,100"))
		})
	})

	Describe("POST /api/tax-rate", func() {
		It("applies a valid rate", func() {
			rec := do("POST", "/api/tax-rate", map[string]any{"rate": 8})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(session.TaxRate()).To(Equal(8.0))
		})

		It("rejects a negative rate", func() {
			rec := do("POST", "/api/tax-rate", map[string]any{"rate": -3})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(session.TaxRate()).To(Equal(10.0))
		})

		It("rejects a missing rate", func() {
			rec := do("POST", "/api/tax-rate", map[string]any{})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/currency", func() {
		It("sets the display currency", func() {
			rec := do("POST", "/api/currency", map[string]any{"currency": "USD"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(session.Currency()).To(Equal(money.USD))
		})

		It("rejects an empty currency", func() {
			rec := do("POST", "/api/currency", map[string]any{"currency": ""})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("receipt history", func() {
		It("saves, lists, fetches and reloads a receipt", func() {
			_, err := session.AddItem("Groceries", money.FromInt(1000))
			Expect(err).NotTo(HaveOccurred())

			rec := do("POST", "/api/receipts", map[string]any{"name": "Weekly shop"})
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var saved Receipt
			decode(rec, &saved)
			Expect(saved.Name).To(Equal("Weekly shop"))
			Expect(session.Items()).To(BeEmpty())

			rec = do("GET", "/api/receipts", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var history []*Receipt
			decode(rec, &history)
			Expect(history).To(HaveLen(1))

			rec = do("GET", "/api/receipts/"+saved.ID, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(session.Items()).To(BeEmpty())

			rec = do("POST", "/api/receipts/"+saved.ID+"/load", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(session.Items()).To(HaveLen(1))
		})

		It("refuses to save an empty working set", func() {
			rec := do("POST", "/api/receipts", map[string]any{"name": "Empty"})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns an empty array rather than null for no history", func() {
			rec := do("GET", "/api/receipts", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		It("returns 404 for an unknown receipt", func() {
			rec := do("GET", "/api/receipts/missing", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))

			rec = do("POST", "/api/receipts/missing/load", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("settings", func() {
		It("persists settings and swaps in a new backend", func() {
			replacement := &mockScanner{}
			server = NewServer(session, func(settings *Settings) (scanning.Scanner, error) {
				return replacement, nil
			}, BasicAuth{})

			rec := do("PUT", "/api/settings", map[string]any{"backend": "gemini", "apiKey": "k"})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(db.settings.Backend).To(Equal("gemini"))

			// The previous backend was closed on swap.
			Expect(scanner.closed).To(BeTrue())
		})

		It("returns empty settings when nothing is saved", func() {
			rec := do("GET", "/api/settings", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var settings Settings
			decode(rec, &settings)
			Expect(settings.Backend).To(BeEmpty())
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			server = NewServer(session, nil, BasicAuth{Username: "ayumu", Password: "secret"})
		})

		It("rejects requests without credentials", func() {
			rec := do("GET", "/api/items", nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("rejects wrong credentials", func() {
			req := httptest.NewRequest("GET", "/api/items", nil)
			req.SetBasicAuth("ayumu", "wrong")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req := httptest.NewRequest("GET", "/api/items", nil)
			req.SetBasicAuth("ayumu", "secret")
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})
})
