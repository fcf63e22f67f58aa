package jobs

import "time"

// Task types
const (
	TaskPersistContract   = "contract:persist"
	TaskContractCreated   = "email:contract_created"
	TaskContractCompleted = "email:contract_completed"
	TaskWelcomeEmail      = "email:welcome"
	TaskAdminAlert        = "email:admin_alert"
)

// Queues and their weights.
const (
	QueueContracts = "contracts"
	QueueEmails    = "emails"
	QueueAlerts    = "alerts"
)

var queueWeights = map[string]int{
	QueueContracts: 10,
	QueueEmails:    5,
	QueueAlerts:    1,
}

type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ContractNoticePayload names a contract; recipients are looked up when the
// task runs.
type ContractNoticePayload struct {
	ContractID string    `json:"contract_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

type WelcomeEmailPayload struct {
	WalletAddress string        `json:"wallet_address"`
	Role          string        `json:"role"`
	Name          string        `json:"name"`
	Envelope      EmailEnvelope `json:"envelope"`
	QueuedAt      time.Time     `json:"queued_at"`
}

type AdminAlertPayload struct {
	Severity string        `json:"severity"` // info|warning|critical
	Message  string        `json:"message"`
	Envelope EmailEnvelope `json:"envelope"`
	QueuedAt time.Time     `json:"queued_at"`
}
