package contract

import (
	"bytes"
	"sync"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// DetectFormat guesses the contract format from the raw bytes. OpenAPI
// documents start with an object in JSON and a mapping in YAML, so a
// leading brace is a reliable signal.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// Holder keeps the currently active declared contract. Contract uploads
// replace the active contract atomically; analysis runs read whatever is
// active at the time.
type Holder struct {
	mu       sync.RWMutex
	contract *models.DeclaredContract
	raw      []byte
}

// NewHolder creates an empty contract holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Set parses data and, on success, makes it the active contract.
func (h *Holder) Set(data []byte, format Format) (*models.DeclaredContract, error) {
	parsed, err := Parse(data, format)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.contract = parsed
	h.raw = append([]byte(nil), data...)
	return parsed, nil
}

// Get returns the active contract, or nil when none has been uploaded.
func (h *Holder) Get() *models.DeclaredContract {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.contract
}

// Raw returns a copy of the active contract's source bytes.
func (h *Holder) Raw() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]byte(nil), h.raw...)
}
