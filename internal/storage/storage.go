package storage

import (
	"context"
	"errors"
	"time"

	"inspira/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a product status update would move backward
	ErrInvalidTransition = errors.New("invalid product status transition")
)

// Storage defines the interface for data storage operations
type Storage interface {
	// User operations

	// EnsureUser creates the user together with an empty product row.
	// Repeated calls for the same user id are no-ops and report created=false.
	EnsureUser(ctx context.Context, user models.User) (created bool, err error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID int64) error
	UpdatePhone(ctx context.Context, userID int64, phone string) error

	// Product operations
	GetProduct(ctx context.Context, userID int64) (models.Product, error)

	// AssignGroup sets the group label. The status becomes WAIT only when the
	// item has not started yet; items already in work keep their status.
	AssignGroup(ctx context.Context, userID int64, group string) error
	SetProductID(ctx context.Context, userID int64, productID string) error

	// AdvanceStatus moves the product forward and returns ErrInvalidTransition
	// when the current status is not a predecessor of the new one.
	AdvanceStatus(ctx context.Context, userID int64, status models.ProductStatus) error
	ListGroups(ctx context.Context) ([]string, error)
	ListUsersInGroup(ctx context.Context, group string) ([]int64, error)
	CountByStatus(ctx context.Context) (map[models.ProductStatus]int, error)

	// Referral operations

	// AddReferral records the source of the first arrival only
	AddReferral(ctx context.Context, userID int64, source string) (bool, error)
	ListReferrals(ctx context.Context, limit int) ([]models.Referral, error)

	// Ban operations
	BanUser(ctx context.Context, userID int64) (bool, error)
	UnbanUser(ctx context.Context, userID int64) (bool, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)
	ListBanned(ctx context.Context) ([]models.BannedUser, error)

	// Admin operations
	AddAdmin(ctx context.Context, admin models.Admin) error
	RemoveAdmin(ctx context.Context, userID int64) (bool, error)
	ListAdmins(ctx context.Context) ([]models.Admin, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)

	// Appointment operations

	// SignUp books a class slot. A user holds at most one appointment for
	// today or later and a slot holds at most capacity guests. Appointments
	// for past days do not count.
	SignUp(ctx context.Context, appt models.Appointment, capacity int) (models.SignupResult, error)
	CancelSignup(ctx context.Context, userID int64) (bool, error)

	// UpcomingLessons returns slot occupancy for lessons on or after from,
	// ordered by date and time
	UpcomingLessons(ctx context.Context, from time.Time) ([]models.LessonSlot, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// LessonDateLayout is the layout of models.Appointment.Date
const LessonDateLayout = "02.01.2006"
