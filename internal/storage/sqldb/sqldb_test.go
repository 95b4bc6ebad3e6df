package sqldb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"inspira/internal/models"
	"inspira/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := Open(DriverSQLite, dsn)
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Initialize(context.Background()), "run migrations")
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}

func TestInitialize_IsRepeatable(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Initialize(context.Background()))
}

func TestEnsureUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := db.EnsureUser(ctx, models.User{UserID: 42, FullName: "Anna", Username: "anna"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.EnsureUser(ctx, models.User{UserID: 42, FullName: "Other"})
	require.NoError(t, err)
	assert.False(t, created)

	user, err := db.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.FullName)
	assert.True(t, user.Active)
	assert.False(t, user.HasPhone())

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	product, err := db.GetProduct(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, product.Status)
	assert.Empty(t, product.Group)
}

func TestEnsureUser_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := db.EnsureUser(ctx, models.User{UserID: 7})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdatePhone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.EnsureUser(ctx, models.User{UserID: 3})
	require.NoError(t, err)

	require.NoError(t, db.UpdatePhone(ctx, 3, "+79990001122"))
	user, err := db.GetUser(ctx, 3)
	require.NoError(t, err)
	assert.True(t, user.HasPhone())

	assert.ErrorIs(t, db.UpdatePhone(ctx, 4, "+7"), storage.ErrNotFound)
}

func TestStatusLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.EnsureUser(ctx, models.User{UserID: 1})
	require.NoError(t, err)

	require.NoError(t, db.AssignGroup(ctx, 1, "G1"))
	require.NoError(t, db.SetProductID(ctx, 1, "P7"))

	p, err := db.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, p.Status)
	assert.Equal(t, "G1", p.Group)
	assert.Equal(t, "P7", p.ProductID)

	// ready before work is rejected
	err = db.AdvanceStatus(ctx, 1, models.StatusReady)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	require.NoError(t, db.AdvanceStatus(ctx, 1, models.StatusInWork))
	require.NoError(t, db.AdvanceStatus(ctx, 1, models.StatusReady))
	require.NoError(t, db.AdvanceStatus(ctx, 1, models.StatusReceived))

	err = db.AdvanceStatus(ctx, 1, models.StatusInWork)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	// regrouping keeps the status of a finished item
	require.NoError(t, db.AssignGroup(ctx, 1, "G2"))
	p, err = db.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, p.Status)
	assert.Equal(t, "G2", p.Group)

	assert.ErrorIs(t, db.AdvanceStatus(ctx, 99, models.StatusInWork), storage.ErrNotFound)
	assert.ErrorIs(t, db.AssignGroup(ctx, 99, "G1"), storage.ErrNotFound)
}

func TestGroupsAndCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3, 4} {
		_, err := db.EnsureUser(ctx, models.User{UserID: id})
		require.NoError(t, err)
	}
	require.NoError(t, db.AssignGroup(ctx, 1, "B"))
	require.NoError(t, db.AssignGroup(ctx, 2, "A"))
	require.NoError(t, db.AssignGroup(ctx, 3, "A"))
	require.NoError(t, db.AdvanceStatus(ctx, 3, models.StatusInWork))

	groups, err := db.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, groups)

	ids, err := db.ListUsersInGroup(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids)

	counts, err := db.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusNotStarted])
	assert.Equal(t, 2, counts[models.StatusWaiting])
	assert.Equal(t, 1, counts[models.StatusInWork])
}

func TestReferrals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	added, err := db.AddReferral(ctx, 7, "vk")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.AddReferral(ctx, 7, "instagram")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = db.AddReferral(ctx, 8, "site")
	require.NoError(t, err)

	refs, err := db.ListReferrals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(8), refs[0].UserID)

	refs, err = db.ListReferrals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "vk", refs[1].Source)
}

func TestBans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	added, err := db.BanUser(ctx, 5)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = db.BanUser(ctx, 5)
	require.NoError(t, err)
	assert.False(t, added)

	banned, err := db.IsBanned(ctx, 5)
	require.NoError(t, err)
	assert.True(t, banned)

	list, err := db.ListBanned(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(5), list[0].UserID)

	removed, err := db.UnbanUser(ctx, 5)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.UnbanUser(ctx, 5)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAdmins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddAdmin(ctx, models.Admin{UserID: 100, Clearance: models.ClearanceSuperuser}))
	require.NoError(t, db.AddAdmin(ctx, models.Admin{UserID: 200}))
	// re-adding updates the clearance
	require.NoError(t, db.AddAdmin(ctx, models.Admin{UserID: 200, Clearance: models.ClearanceAdmin}))

	admins, err := db.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, models.ClearanceSuperuser, admins[0].Clearance)
	assert.Equal(t, models.ClearanceAdmin, admins[1].Clearance)

	isAdmin, err := db.IsAdmin(ctx, 200)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	removed, err := db.RemoveAdmin(ctx, 200)
	require.NoError(t, err)
	assert.True(t, removed)

	isAdmin, err = db.IsAdmin(ctx, 200)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestSignUp(t *testing.T) {
	db := newTestDB(t)
	db.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	appt := func(userID int64, date string) models.Appointment {
		return models.Appointment{UserID: userID, Activity: "Painting", Date: date, Time: "13:00"}
	}

	res, err := db.SignUp(ctx, appt(1, "14.11.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	res, err = db.SignUp(ctx, appt(1, "14.11.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupAlreadyBooked, res)

	res, err = db.SignUp(ctx, appt(2, "14.11.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	res, err = db.SignUp(ctx, appt(3, "14.11.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupFull, res)

	res, err = db.SignUp(ctx, appt(4, "07.11.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	res, err = db.SignUp(ctx, appt(5, "03.10.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	slots, err := db.UpcomingLessons(ctx, time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, models.LessonSlot{Date: "07.11.2026", Time: "13:00", Count: 1}, slots[0])
	assert.Equal(t, models.LessonSlot{Date: "14.11.2026", Time: "13:00", Count: 2}, slots[1])

	cancelled, err := db.CancelSignup(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cancelled)

	res, err = db.SignUp(ctx, appt(3, "14.11.2026"), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	_, err = db.SignUp(ctx, appt(6, "not a date"), 2)
	assert.Error(t, err)
}

func TestSignUp_PastLessonDoesNotBlockBooking(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }
	ctx := context.Background()

	res, err := db.SignUp(ctx, models.Appointment{UserID: 1, Activity: "Painting", Date: "15.08.2026", Time: "13:00"}, 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	// a finished lesson cannot be cancelled any more
	cancelled, err := db.CancelSignup(ctx, 1)
	require.NoError(t, err)
	assert.False(t, cancelled)

	res, err = db.SignUp(ctx, models.Appointment{UserID: 1, Activity: "Modeling", Date: "24.10.2026", Time: "11:00"}, 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)

	slots, err := db.UpcomingLessons(ctx, now)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.LessonSlot{Date: "24.10.2026", Time: "11:00", Count: 1}, slots[0])

	// a lesson later today still counts as booked
	res, err = db.SignUp(ctx, models.Appointment{UserID: 2, Activity: "Painting", Date: "17.10.2026", Time: "13:00"}, 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupBooked, res)
	res, err = db.SignUp(ctx, models.Appointment{UserID: 2, Activity: "Painting", Date: "24.10.2026", Time: "13:00"}, 2)
	require.NoError(t, err)
	assert.Equal(t, models.SignupAlreadyBooked, res)
}

func TestDeleteUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.EnsureUser(ctx, models.User{UserID: 9})
	require.NoError(t, err)
	_, err = db.SignUp(ctx, models.Appointment{UserID: 9, Activity: "Modeling", Date: "07.11.2026", Time: "11:00"}, 10)
	require.NoError(t, err)

	require.NoError(t, db.DeleteUser(ctx, 9))

	_, err = db.GetProduct(ctx, 9)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	cancelled, err := db.CancelSignup(ctx, 9)
	require.NoError(t, err)
	assert.False(t, cancelled)

	assert.ErrorIs(t, db.DeleteUser(ctx, 9), storage.ErrNotFound)
}
