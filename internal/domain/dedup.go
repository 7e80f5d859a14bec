package domain

// DetectionMethod — способ, которым найден дубликат.
type DetectionMethod string

const (
	DetectionNone            DetectionMethod = "none"
	DetectionExact           DetectionMethod = "exact"
	DetectionContentHash     DetectionMethod = "content_hash"
	DetectionTimestampWindow DetectionMethod = "timestamp_window"
	DetectionPlatformRule    DetectionMethod = "platform_rule"
)

// DedupResult — вердикт дедупликации.
type DedupResult struct {
	UniqueID    string          `json:"unique_id"`
	IsDuplicate bool            `json:"is_duplicate"`
	DuplicateOf string          `json:"duplicate_of,omitempty"`
	Confidence  float64         `json:"confidence"`
	Method      DetectionMethod `json:"method"`
}
