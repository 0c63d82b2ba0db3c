package types

import "fmt"

// TaskStatus is the ledger status of a task. Codes the client does not know
// about are kept as Unknown(n) and never coerced to a known state.
type TaskStatus struct {
	Code  uint8
	Known bool
}

const (
	StatusCodeCreated uint8 = iota
	StatusCodeBidding
	StatusCodeInProgress
	StatusCodePendingEmployerConfirmation
	StatusCodeCompleted
	StatusCodeDisputed
	StatusCodeDisputeResolution
	StatusCodeRemoved
	StatusCodeCancelled
)

var (
	StatusCreated                     = TaskStatus{Code: StatusCodeCreated, Known: true}
	StatusBidding                     = TaskStatus{Code: StatusCodeBidding, Known: true}
	StatusInProgress                  = TaskStatus{Code: StatusCodeInProgress, Known: true}
	StatusPendingEmployerConfirmation = TaskStatus{Code: StatusCodePendingEmployerConfirmation, Known: true}
	StatusCompleted                   = TaskStatus{Code: StatusCodeCompleted, Known: true}
	StatusDisputed                    = TaskStatus{Code: StatusCodeDisputed, Known: true}
	StatusDisputeResolution           = TaskStatus{Code: StatusCodeDisputeResolution, Known: true}
	StatusRemoved                     = TaskStatus{Code: StatusCodeRemoved, Known: true}
	StatusCancelled                   = TaskStatus{Code: StatusCodeCancelled, Known: true}
)

var statusNames = map[uint8]string{
	StatusCodeCreated:                     "Created",
	StatusCodeBidding:                     "Bidding",
	StatusCodeInProgress:                  "InProgress",
	StatusCodePendingEmployerConfirmation: "PendingEmployerConfirmation",
	StatusCodeCompleted:                   "Completed",
	StatusCodeDisputed:                    "Disputed",
	StatusCodeDisputeResolution:           "DisputeResolution",
	StatusCodeRemoved:                     "Removed",
	StatusCodeCancelled:                   "Cancelled",
}

// StatusFromCode maps a ledger integer to a status, yielding Unknown(n) for codes out of range.
func StatusFromCode(code uint8) TaskStatus {
	_, ok := statusNames[code]
	return TaskStatus{Code: code, Known: ok}
}

func UnknownStatus(code uint8) TaskStatus {
	return TaskStatus{Code: code}
}

func (s TaskStatus) String() string {
	if !s.Known {
		return fmt.Sprintf("Unknown(%d)", s.Code)
	}
	return statusNames[s.Code]
}

func (s TaskStatus) IsUnknown() bool {
	return !s.Known
}

func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRemoved
}

func (s TaskStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TaskStatus) UnmarshalText(text []byte) error {
	name := string(text)
	for code, n := range statusNames {
		if n == name {
			*s = TaskStatus{Code: code, Known: true}
			return nil
		}
	}
	var code uint8
	if _, err := fmt.Sscanf(name, "Unknown(%d)", &code); err != nil {
		return fmt.Errorf("invalid task status %q", name)
	}
	*s = UnknownStatus(code)
	return nil
}

type Task struct {
	Id              uint64           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	ContentRef      string           `json:"contentRef,omitempty"`
	Content         *ContentDocument `json:"content,omitempty"`
	Creator         string           `json:"creator"`
	Reward          string           `json:"reward"`
	RewardOcta      string           `json:"rewardOcta"`
	Deadline        int64            `json:"deadline"`
	Status          TaskStatus       `json:"status"`
	Participants    []string         `json:"participants"`
	Winner          string           `json:"winner,omitempty"`
	Locked          bool             `json:"locked"`
	DisputeDeadline int64            `json:"disputeDeadline,omitempty"`
	Simulated       bool             `json:"simulated,omitempty"`
}

// Clone returns a deep copy so cached tasks are never mutated by callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Participants = append([]string{}, t.Participants...)
	if t.Content != nil {
		doc := *t.Content
		doc.Attachments = append([]string(nil), t.Content.Attachments...)
		c.Content = &doc
	}
	return &c
}

func (t *Task) HasParticipant(account string) bool {
	for _, p := range t.Participants {
		if p == account {
			return true
		}
	}
	return false
}

// ParticipantIndex returns the bid index of account, or -1.
func (t *Task) ParticipantIndex(account string) int {
	for i, p := range t.Participants {
		if p == account {
			return i
		}
	}
	return -1
}

type Bid struct {
	TaskId uint64 `json:"taskId"`
	Bidder string `json:"bidder"`
	Index  int    `json:"index"`
}

// ContentDocument is the off-ledger task description held in the content store.
type ContentDocument struct {
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Requirements string   `json:"requirements,omitempty"`
	Attachments  []string `json:"attachments,omitempty"`
}
