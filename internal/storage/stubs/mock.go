package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inspira/internal/models"
	"inspira/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[int64]models.User
	products     map[int64]models.Product
	referrals    []models.Referral
	banned       map[int64]models.BannedUser
	admins       map[int64]models.Admin
	appointments map[int64]models.Appointment

	now func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:        make(map[int64]models.User),
		products:     make(map[int64]models.Product),
		banned:       make(map[int64]models.BannedUser),
		admins:       make(map[int64]models.Admin),
		appointments: make(map[int64]models.Appointment),
		now:          time.Now,
	}
}

// SetClock replaces the time source used for timestamps and booking expiry
func (m *MockDB) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

func (m *MockDB) id() int64 {
	m.nextID++
	return m.nextID
}

// EnsureUser creates the user and an empty product on first call
func (m *MockDB) EnsureUser(ctx context.Context, user models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.UserID]; ok {
		return false, nil
	}

	now := m.now()
	user.ID = m.id()
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}
	user.StatusUpdatedAt = user.RegisteredAt
	user.Active = true
	m.users[user.UserID] = user

	m.products[user.UserID] = models.Product{
		ID:              m.id(),
		UserID:          user.UserID,
		Status:          models.StatusNotStarted,
		StatusUpdatedAt: now,
	}
	return true, nil
}

// GetUser returns a user by telegram id
func (m *MockDB) GetUser(ctx context.Context, userID int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	return user, nil
}

// ListUsers returns all users ordered by registration time
func (m *MockDB) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// DeleteUser removes the user with its product and appointment
func (m *MockDB) DeleteUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	delete(m.users, userID)
	delete(m.products, userID)
	delete(m.appointments, userID)
	return nil
}

// UpdatePhone stores the phone number shared by the user
func (m *MockDB) UpdatePhone(ctx context.Context, userID int64, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	user.Phone = phone
	m.users[userID] = user
	return nil
}

// GetProduct returns the product owned by the user
func (m *MockDB) GetProduct(ctx context.Context, userID int64) (models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[userID]
	if !ok {
		return models.Product{}, fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
	}
	return p, nil
}

// AssignGroup sets the group and moves a not started item to WAIT
func (m *MockDB) AssignGroup(ctx context.Context, userID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[userID]
	if !ok {
		return fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
	}
	p.Group = group
	if p.Status.CanTransitionTo(models.StatusWaiting) {
		p.Status = models.StatusWaiting
	}
	p.StatusUpdatedAt = m.now()
	m.products[userID] = p
	return nil
}

// SetProductID sets the item number
func (m *MockDB) SetProductID(ctx context.Context, userID int64, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[userID]
	if !ok {
		return fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
	}
	p.ProductID = productID
	p.StatusUpdatedAt = m.now()
	m.products[userID] = p
	return nil
}

// AdvanceStatus moves the product forward
func (m *MockDB) AdvanceStatus(ctx context.Context, userID int64, status models.ProductStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[userID]
	if !ok {
		return fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
	}
	if !p.Status.CanTransitionTo(status) {
		return fmt.Errorf("%q -> %q: %w", p.Status, status, storage.ErrInvalidTransition)
	}
	p.Status = status
	p.StatusUpdatedAt = m.now()
	m.products[userID] = p
	return nil
}

// ListGroups returns distinct non-empty group labels sorted by name
func (m *MockDB) ListGroups(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var groups []string
	for _, p := range m.products {
		if p.Group == "" || seen[p.Group] {
			continue
		}
		seen[p.Group] = true
		groups = append(groups, p.Group)
	}
	sort.Strings(groups)
	return groups, nil
}

// ListUsersInGroup returns the user ids of a group
func (m *MockDB) ListUsersInGroup(ctx context.Context, group string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for _, p := range m.products {
		if p.Group == group {
			ids = append(ids, p.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CountByStatus returns the number of products per status
func (m *MockDB) CountByStatus(ctx context.Context) (map[models.ProductStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.ProductStatus]int)
	for _, p := range m.products {
		counts[p.Status]++
	}
	return counts, nil
}

// AddReferral records the first arrival of a user
func (m *MockDB) AddReferral(ctx context.Context, userID int64, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.referrals {
		if r.UserID == userID {
			return false, nil
		}
	}
	m.referrals = append(m.referrals, models.Referral{
		ID:        m.id(),
		UserID:    userID,
		Source:    source,
		ArrivedAt: m.now(),
	})
	return true, nil
}

// ListReferrals returns the latest referrals first
func (m *MockDB) ListReferrals(ctx context.Context, limit int) ([]models.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]models.Referral, len(m.referrals))
	copy(refs, m.referrals)
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].ID > refs[j].ID
	})
	if limit > 0 && limit < len(refs) {
		refs = refs[:limit]
	}
	return refs, nil
}

// BanUser records a permanent ban
func (m *MockDB) BanUser(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.banned[userID]; ok {
		return false, nil
	}
	m.banned[userID] = models.BannedUser{UserID: userID, BannedAt: m.now()}
	return true, nil
}

// UnbanUser removes a permanent ban
func (m *MockDB) UnbanUser(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.banned[userID]; !ok {
		return false, nil
	}
	delete(m.banned, userID)
	return true, nil
}

// IsBanned reports whether the user is permanently banned
func (m *MockDB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.banned[userID]
	return ok, nil
}

// ListBanned returns all banned users ordered by ban time
func (m *MockDB) ListBanned(ctx context.Context) ([]models.BannedUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	banned := make([]models.BannedUser, 0, len(m.banned))
	for _, b := range m.banned {
		banned = append(banned, b)
	}
	sort.Slice(banned, func(i, j int) bool {
		if !banned[i].BannedAt.Equal(banned[j].BannedAt) {
			return banned[i].BannedAt.Before(banned[j].BannedAt)
		}
		return banned[i].UserID < banned[j].UserID
	})
	return banned, nil
}

// AddAdmin adds or reactivates an admin
func (m *MockDB) AddAdmin(ctx context.Context, admin models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	admin.Active = true
	m.admins[admin.UserID] = admin
	return nil
}

// RemoveAdmin deletes an admin
func (m *MockDB) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.admins[userID]; !ok {
		return false, nil
	}
	delete(m.admins, userID)
	return true, nil
}

// ListAdmins returns active admins ordered by user id
func (m *MockDB) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var admins []models.Admin
	for _, a := range m.admins {
		if a.Active {
			admins = append(admins, a)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].UserID < admins[j].UserID })
	return admins, nil
}

// IsAdmin reports whether the user is an active admin
func (m *MockDB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.admins[userID]
	return ok && a.Active, nil
}

// SignUp books a class slot
func (m *MockDB) SignUp(ctx context.Context, appt models.Appointment, capacity int) (models.SignupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upcoming(appt.UserID) {
		return models.SignupAlreadyBooked, nil
	}

	taken := 0
	for _, a := range m.appointments {
		if a.Date == appt.Date && a.Time == appt.Time {
			taken++
		}
	}
	if capacity > 0 && taken >= capacity {
		return models.SignupFull, nil
	}

	appt.ID = m.id()
	appt.CreatedAt = m.now()
	m.appointments[appt.UserID] = appt
	return models.SignupBooked, nil
}

// CancelSignup removes the user's appointment
func (m *MockDB) CancelSignup(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.upcoming(userID) {
		return false, nil
	}
	delete(m.appointments, userID)
	return true, nil
}

// upcoming reports whether the user holds a booking for today or later.
// Callers hold the lock.
func (m *MockDB) upcoming(userID int64) bool {
	a, ok := m.appointments[userID]
	if !ok {
		return false
	}
	d, err := time.Parse(storage.LessonDateLayout, a.Date)
	return err == nil && !d.Before(storage.StartOfDay(m.now()))
}

// UpcomingLessons returns slot occupancy from the given day on
func (m *MockDB) UpcomingLessons(ctx context.Context, from time.Time) ([]models.LessonSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := storage.StartOfDay(from)
	counts := make(map[[2]string]int)
	for _, a := range m.appointments {
		d, err := time.Parse(storage.LessonDateLayout, a.Date)
		if err != nil || d.Before(day) {
			continue
		}
		counts[[2]string{a.Date, a.Time}]++
	}

	slots := make([]models.LessonSlot, 0, len(counts))
	for k, c := range counts {
		slots = append(slots, models.LessonSlot{Date: k[0], Time: k[1], Count: c})
	}
	storage.SortSlots(slots)
	return slots, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
