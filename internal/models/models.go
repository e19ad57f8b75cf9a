// Package models defines the core data structures for HabitPipe.
//
// It includes the habit record, per-owner aggregates, and the inbound/outbound
// message types shared across modules.
package models

import (
	"errors"
	"time"
)

// Validation constants for input validation
const (
	// MaxHabitNameLength defines the maximum allowed length for a habit name
	MaxHabitNameLength = 200
	// MaxDescriptionLength defines the maximum allowed length for a habit description
	MaxDescriptionLength = 2000
)

// Error variables for better error handling and testability
var (
	ErrEmptyHabitName     = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong   = errors.New("habit name exceeds maximum length")
	ErrDescriptionTooLong = errors.New("habit description exceeds maximum length")
	ErrEmptyRecipient     = errors.New("recipient cannot be empty")
	ErrEmptyMessageBody   = errors.New("message body cannot be empty")
)

// Habit represents a single tracked habit owned by one user.
//
// ID is assigned by the store on creation and immutable afterwards, as are
// OwnerID and Name. Description may be updated (and cleared) later. The two
// counters move together: every completion event increments both, so
// CompletedDays <= TotalDays holds after every mutation.
type Habit struct {
	ID            int64     `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedDays int       `json:"completed_days"`
	TotalDays     int       `json:"total_days"`
}

// ValidateName checks habit name constraints enforced upstream of the store.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyHabitName
	}
	if len(name) > MaxHabitNameLength {
		return ErrHabitNameTooLong
	}
	return nil
}

// ValidateDescription checks the description length limit.
func ValidateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// OwnerStats holds aggregate completion statistics for one owner.
type OwnerStats struct {
	HabitCount     int `json:"habit_count"`
	TotalCompleted int `json:"total_completed"`
	TotalDays      int `json:"total_days"`
}

// SuccessRate returns the completion percentage, 0 when no days are recorded.
func (s OwnerStats) SuccessRate() float64 {
	if s.TotalDays == 0 {
		return 0
	}
	return float64(s.TotalCompleted) / float64(s.TotalDays) * 100
}

// Message represents an inbound text message delivered by a transport.
// From identifies the sending user; Chat is the destination for replies.
// For direct-chat transports the two are the same identifier.
type Message struct {
	From string `json:"from"`
	Chat string `json:"chat"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records a delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}
