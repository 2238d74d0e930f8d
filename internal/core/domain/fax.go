package domain

import "time"

type FaxStatus string

const (
	StatusPending     FaxStatus = "pending"
	StatusCategorized FaxStatus = "categorized"
	StatusApproved    FaxStatus = "approved"
	StatusOverridden  FaxStatus = "overridden"
	StatusProcessed   FaxStatus = "processed"
)

func AllStatuses() []FaxStatus {
	return []FaxStatus{StatusPending, StatusCategorized, StatusApproved, StatusOverridden, StatusProcessed}
}

func ParseStatus(raw string) (FaxStatus, bool) {
	for _, s := range AllStatuses() {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Decided reports whether a final category has been fixed for the status.
func (s FaxStatus) Decided() bool {
	return s == StatusApproved || s == StatusOverridden || s == StatusProcessed
}

type FaxRecord struct {
	ID             string     `json:"id"`
	Filename       string     `json:"filename"`
	OriginalPath   string     `json:"original_path"`
	FileHash       string     `json:"file_hash"`
	Status         FaxStatus  `json:"status"`
	AICategory     Category   `json:"ai_category,omitempty"`
	AIConfidence   *float64   `json:"ai_confidence,omitempty"`
	AIReason       string     `json:"ai_reason,omitempty"`
	FinalCategory  Category   `json:"final_category,omitempty"`
	WasOverridden  bool       `json:"was_overridden"`
	AutoApproved   bool       `json:"auto_approved"`
	IsUrgent       bool       `json:"is_urgent"`
	PriorityScore  int        `json:"priority_score"`
	TextLength     int        `json:"text_length"`
	PageCount      int        `json:"page_count"`
	ExtractedText  string     `json:"extracted_text,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	ReceivedAt     time.Time  `json:"received_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FaxSource is one discovered or uploaded file awaiting ingestion.
type FaxSource struct {
	Path       string
	Filename   string
	ReceivedAt time.Time
}

type Extraction struct {
	Text      string
	PageCount int
}

// Classification is the raw gateway answer; Category is not yet mapped onto the taxonomy.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Urgent     bool    `json:"urgent"`
	Summary    string  `json:"summary"`
}

type FaxOrder string

const (
	OrderReceived FaxOrder = "received"
	OrderPriority FaxOrder = "priority"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type FaxFilter struct {
	Status     FaxStatus
	Category   Category
	UrgentOnly bool
	Limit      int
	Offset     int
	Order      FaxOrder
}

// Normalize applies the list defaults and bounds.
func (f FaxFilter) Normalize() FaxFilter {
	out := f
	if out.Limit <= 0 {
		out.Limit = DefaultListLimit
	}
	if out.Limit > MaxListLimit {
		out.Limit = MaxListLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	if out.Order != OrderPriority {
		out.Order = OrderReceived
	}
	return out
}

type Feedback struct {
	ID              string    `json:"id"`
	FaxID           string    `json:"fax_id"`
	AICategory      Category  `json:"ai_category"`
	CorrectCategory Category  `json:"correct_category"`
	FeedbackText    string    `json:"feedback_text,omitempty"`
	SubmittedBy     string    `json:"submitted_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FaxDecision is emitted whenever a fax gets a final category or is filed downstream.
type FaxDecision struct {
	FaxID         string    `json:"fax_id"`
	Status        FaxStatus `json:"status"`
	FinalCategory Category  `json:"final_category"`
	AutoApproved  bool      `json:"auto_approved"`
	WasOverridden bool      `json:"was_overridden"`
	DecidedBy     string    `json:"decided_by,omitempty"`
	DecidedAt     time.Time `json:"decided_at"`
}

func DecisionFor(rec *FaxRecord, at time.Time) FaxDecision {
	return FaxDecision{
		FaxID:         rec.ID,
		Status:        rec.Status,
		FinalCategory: rec.FinalCategory,
		AutoApproved:  rec.AutoApproved,
		WasOverridden: rec.WasOverridden,
		DecidedBy:     rec.ReviewedBy,
		DecidedAt:     at,
	}
}

// ReviewAction is the decision a reviewer applies to a categorized fax.
type ReviewAction string

const (
	ReviewApprove  ReviewAction = "approve"
	ReviewOverride ReviewAction = "override"
)

type BatchFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult reports per-record outcomes of a batch review.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []string       `json:"failed"`
	Errors    []BatchFailure `json:"errors"`
}
