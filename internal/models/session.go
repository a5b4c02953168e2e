package models

// SessionStatus represents the status of a generation session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusGenerating SessionStatus = "generating"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// GenerationSession tracks one document-to-screens run.
type GenerationSession struct {
	ID               string         `json:"id"`
	FileID           string         `json:"fileId"`
	Status           SessionStatus  `json:"status"`
	Progress         float64        `json:"progress"` // 0-100
	Step             string         `json:"step,omitempty"`
	Message          string         `json:"message,omitempty"`
	SystemType       string         `json:"systemType,omitempty"`
	ScreenCount      int            `json:"screenCount,omitempty"`
	Summary          *BatchSummary  `json:"summary,omitempty"`
	Degraded         []string       `json:"degraded,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	LLMCalls         int            `json:"llmCalls"`
	TokensUsed       int64          `json:"tokensUsed"`
	Errors           []SessionError `json:"errors,omitempty"`
}

// BatchSummary counts how many screens rendered successfully.
type BatchSummary struct {
	SuccessfulScreens int      `json:"successfulScreens"`
	FailedScreens     int      `json:"failedScreens"`
	Failed            []string `json:"failed,omitempty"`
}

// SessionError records a failure attached to a session.
type SessionError struct {
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason"`
}

// NewGenerationSession creates a new GenerationSession in pending status.
func NewGenerationSession(id, fileID string) *GenerationSession {
	return &GenerationSession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Progress: 0,
		Errors:   make([]SessionError, 0),
	}
}

// Done reports whether the session has reached a terminal status.
func (s *GenerationSession) Done() bool {
	return s.Status == SessionStatusComplete ||
		s.Status == SessionStatusError ||
		s.Status == SessionStatusCancelled
}
