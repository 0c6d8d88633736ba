package mq

// Routing keys for reminder events.
const (
	RoutingKeyReminderDue = "reminder.due"
)

// ReminderDuePayload is published by reminderd for every not-done task whose
// due date falls inside the upcoming window. The notifier resolves the
// owner's push tokens at delivery time.
type ReminderDuePayload struct {
	TaskID  string `json:"task_id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	DueDate string `json:"due_date"`
}
