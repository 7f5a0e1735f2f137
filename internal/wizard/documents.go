// internal/wizard/documents.go
package wizard

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DocumentSlot names the role an attachment plays in the application.
type DocumentSlot string

const (
	SlotIdentityProof        DocumentSlot = "identity_proof"
	SlotAddressProof         DocumentSlot = "address_proof"
	SlotBankStatement        DocumentSlot = "bank_statement"
	SlotIncomeProof          DocumentSlot = "income_proof"
	SlotSelfDeclarationVideo DocumentSlot = "self_declaration_video"
)

// MaxDocumentBytes caps every attachment at 5 MiB.
const MaxDocumentBytes = 5 * 1024 * 1024

var (
	ErrUnknownSlot        = errors.New("unknown document slot")
	ErrDocumentTooLarge   = errors.New("document exceeds 5MB")
	ErrDocumentEmpty      = errors.New("document is empty")
	ErrDocumentTypeDenied = errors.New("document type not accepted")
)

// Document is one attached file.
type Document struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// slotAccept mirrors the file input accept filters in the console.
var slotAccept = map[DocumentSlot][]string{
	SlotIdentityProof:        {"image/*", "application/pdf"},
	SlotAddressProof:         {"image/*", "application/pdf"},
	SlotBankStatement:        {"application/pdf"},
	SlotIncomeProof:          {"image/*", "application/pdf"},
	SlotSelfDeclarationVideo: {"video/*"},
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// Slots lists every slot in form order.
func Slots() []DocumentSlot {
	return []DocumentSlot{
		SlotIdentityProof,
		SlotAddressProof,
		SlotBankStatement,
		SlotIncomeProof,
		SlotSelfDeclarationVideo,
	}
}

// ParseSlot validates a slot name coming from the wire.
func ParseSlot(s string) (DocumentSlot, error) {
	slot := DocumentSlot(s)
	if _, ok := slotAccept[slot]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSlot, s)
	}
	return slot, nil
}

// CheckDocument applies the size cap and the slot's acceptance filter.
func CheckDocument(slot DocumentSlot, doc *Document) error {
	accept, ok := slotAccept[slot]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	if doc == nil || doc.Size <= 0 {
		return ErrDocumentEmpty
	}
	if doc.Size > MaxDocumentBytes {
		return fmt.Errorf("%w: %s is %d bytes", ErrDocumentTooLarge, doc.Name, doc.Size)
	}

	contentType := doc.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = extensionTypes[strings.ToLower(filepath.Ext(doc.Name))]
	}
	for _, pattern := range accept {
		if matchMIME(pattern, contentType) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s for %s", ErrDocumentTypeDenied, contentType, slot)
}

func matchMIME(pattern, contentType string) bool {
	if contentType == "" {
		return false
	}
	if base, _, found := strings.Cut(contentType, ";"); found {
		contentType = base
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(contentType, prefix+"/")
	}
	return contentType == pattern
}

// documentMessage turns a CheckDocument error into the inline message.
func documentMessage(err error) string {
	switch {
	case errors.Is(err, ErrDocumentTooLarge):
		return "File size must be under 5MB"
	case errors.Is(err, ErrDocumentTypeDenied):
		return "File type not accepted for this document"
	case errors.Is(err, ErrDocumentEmpty):
		return "File is empty"
	default:
		return "Invalid document"
	}
}
