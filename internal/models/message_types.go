package models

import "time"

// Message is a chat line between the two parties of an application.
type Message struct {
	ID            int64     `json:"id" db:"id"`
	ApplicationID int64     `json:"applicationId" db:"application_id"`
	SenderID      int64     `json:"senderId" db:"sender_id"`
	Body          string    `json:"body" db:"body"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
