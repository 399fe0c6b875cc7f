package scanning

import "fmt"

// ItemCandidate is one name/price pair pre-structured by the extraction
// backend. Candidates are best effort: the receipt parser validates and
// augments them before anything reaches the working item list.
type ItemCandidate struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ScanResult is the output of a text extraction backend: the raw text
// read off the receipt, plus an optional pre-structured item list.
// Items may be empty when the backend only manages plain text.
type ScanResult struct {
	Text  string          `json:"text"`
	Items []ItemCandidate `json:"items"`
}

// Scanner extracts text from a receipt image.
type Scanner interface {
	// ScanReceipt reads a receipt image and returns the extracted text.
	// language is a hint such as "Japanese" or "English"; backends may
	// ignore it.
	ScanReceipt(imageData []byte, contentType string, language string) (*ScanResult, error)
	// Close releases backend resources.
	Close() error
}

// receiptScanPrompt is the shared prompt used by all vision backends.
const receiptScanPrompt = `You are reading a purchase receipt. Transcribe every line of text you can see, top to bottom, exactly as printed, then extract the individual purchase line items.

Return ONLY valid JSON in this exact format:
{
  "text": "line 1\nline 2\n...",
  "items": [
    {"name": "item name", "price": 0}
  ]
}

Rules:
- "text" must contain the full transcription, one receipt line per line, separated by \n
- "items" must list only genuine purchase items, not totals, subtotals, tax lines or headers
- prices are plain numbers without currency symbols or thousands separators
- a discount or deduction line is an item with a NEGATIVE price; keep any percentage in its name
- preserve the order items appear on the receipt
- if you cannot identify any items, return an empty items array but still return the text
- do not include any text before or after the JSON and do not use markdown code blocks`

func scanPromptFor(language string) string {
	if language == "" {
		return receiptScanPrompt
	}
	return fmt.Sprintf("%s\n- the receipt is primarily in %s", receiptScanPrompt, language)
}
