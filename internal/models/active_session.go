package models

import "time"

// ActiveSession is the presence record of a connected participant.
type ActiveSession struct {
	ID       int64     `json:"id"`
	Email    string    `json:"email"`
	LastPing time.Time `json:"last_ping"`
}
