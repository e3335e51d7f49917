package upload

import (
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Image is the currently selected upload. Ref is the ephemeral display
// reference handed to the UI; it stays resolvable only while the image is the
// current one.
type Image struct {
	ID         string
	Filename   string
	MIMEType   string
	Data       []byte
	Ref        string
	UploadedAt time.Time
}

// Size returns the payload length in bytes.
func (i *Image) Size() int {
	if i == nil {
		return 0
	}
	return len(i.Data)
}

// DetectMIMEType returns the declared media type for an upload. The part header
// wins; the filename extension is the fallback. Content is never sniffed.
func DetectMIMEType(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
		return declared
	}
	if ext := filepath.Ext(filename); ext != "" {
		if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
			if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
				return mediaType
			}
		}
	}
	return declared
}

// Holder owns at most one current image and the display references pointing
// at it. A reference is released whenever its image is superseded or cleared.
type Holder struct {
	mu      sync.Mutex
	current *Image
	refs    map[string]*Image
}

// NewHolder returns an empty Holder.
func NewHolder() *Holder {
	return &Holder{refs: make(map[string]*Image)}
}

// Replace makes img the current image and returns it with a fresh ID and Ref.
// The previous image, if any, is released first.
func (h *Holder) Replace(img Image) *Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
	img.ID = uuid.NewString()
	img.Ref = uuid.NewString()
	if img.UploadedAt.IsZero() {
		img.UploadedAt = time.Now().UTC()
	}
	stored := &img
	h.current = stored
	h.refs[stored.Ref] = stored
	return stored
}

// Current returns the current image or nil.
func (h *Holder) Current() *Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Clear releases the current image.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
}

// Close releases every reference the holder still owns.
func (h *Holder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	for ref := range h.refs {
		delete(h.refs, ref)
	}
}

// Lookup resolves a live display reference.
func (h *Holder) Lookup(ref string) (*Image, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	img, ok := h.refs[ref]
	return img, ok
}

// Live reports how many display references are currently registered.
func (h *Holder) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.refs)
}

func (h *Holder) releaseLocked() {
	if h.current == nil {
		return
	}
	delete(h.refs, h.current.Ref)
	h.current = nil
}
