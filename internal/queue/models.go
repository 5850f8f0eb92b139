package queue

import "strings"

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusApproved   Status = "approved"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusApproved,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// validTransitions lists the allowed status edges. "failed" and "approved"
// are terminal; the only recovery from failed is removal plus re-enqueue.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusApproved},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the automatic pipeline will never move the
// status again on its own.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusApproved
}

// Item represents one unit of work: generate a try-on result for a single
// product image. Identity is (ProductID, ImageFilename).
type Item struct {
	ProductID          string `json:"product_id"`
	ImageFilename      string `json:"image_filename"`
	Status             Status `json:"status"`
	ProcessedImagePath string `json:"processed_image_path,omitempty"`
	IsCropped          bool   `json:"is_cropped"`
	// Fallback records that the processed output is the unmodified source
	// image because the inference call failed, rather than a genuine result.
	Fallback bool `json:"fallback,omitempty"`
}

// Matches reports whether the item has the given identity.
func (i Item) Matches(productID, filename string) bool {
	return i.ProductID == productID && i.ImageFilename == filename
}

// ProcessedFilename computes the canonical processed-output filename for the
// item regardless of whether processing has happened yet.
func (i Item) ProcessedFilename() string {
	return ProcessedFilename(i.ProductID, i.ImageFilename)
}

// ProcessedFilename computes the processed-output filename for an identity pair.
func ProcessedFilename(productID, filename string) string {
	return "processed_" + productID + "_" + filename
}

// Summary describes aggregated queue counts per lifecycle state.
type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Approved   int `json:"approved"`
}
