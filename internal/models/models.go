package models

import "time"

// User represents a workshop guest known to the bot
type User struct {
	ID              int64
	UserID          int64
	FullName        string
	Phone           string
	Username        string
	RegisteredAt    time.Time
	Active          bool
	StatusUpdatedAt time.Time
}

// HasPhone reports whether the guest confirmed the account with a phone number
func (u User) HasPhone() bool {
	return u.Phone != ""
}

// Product represents the item a guest made during a class
type Product struct {
	ID              int64
	ProductID       string
	Status          ProductStatus
	UserID          int64
	Group           string
	StatusUpdatedAt time.Time
}

// Referral records where a guest came from
type Referral struct {
	ID        int64
	UserID    int64
	Source    string
	ArrivedAt time.Time
}

// BannedUser is a permanently blocked user
type BannedUser struct {
	UserID   int64
	BannedAt time.Time
}

// Admin clearance levels
const (
	ClearanceSuperuser = "1"
	ClearanceAdmin     = "2"
)

// Admin represents a member of the workshop staff
type Admin struct {
	UserID    int64
	Clearance string
	Active    bool
}

// Appointment is a guest's sign-up for a class
type Appointment struct {
	ID        int64
	UserID    int64
	Activity  string
	Date      string // dd.mm.yyyy
	Time      string // HH:MM
	CreatedAt time.Time
}

// LessonSlot represents the occupancy of one class slot
type LessonSlot struct {
	Date  string
	Time  string
	Count int
}

// SignupResult is the outcome of a class sign-up
type SignupResult int

const (
	SignupBooked SignupResult = iota
	SignupAlreadyBooked
	SignupFull
)
