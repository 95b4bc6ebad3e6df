package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inspira/internal/models"
	"inspira/internal/storage"
	"inspira/migrations"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is the relational implementation of storage.Storage
type DB struct {
	gdb    *gorm.DB
	driver string
	now    func() time.Time
}

// Open connects to the database. Tables are created by Initialize.
func Open(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	return &DB{
		gdb:    gdb,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// SQL returns the underlying connection pool
func (db *DB) SQL() (*sql.DB, error) {
	return db.gdb.DB()
}

// Driver returns the name of the database driver in use
func (db *DB) Driver() string {
	return db.driver
}

// Goose returns the goose dialect and migrations directory for the driver
func (db *DB) Goose() (dialect, dir string) {
	if db.driver == DriverPostgres {
		return "postgres", "postgres"
	}
	return "sqlite3", "sqlite"
}

// Initialize applies pending migrations
func (db *DB) Initialize(ctx context.Context) error {
	sqlDB, err := db.SQL()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	dialect, dir := db.Goose()
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// EnsureUser creates the user and the empty product row on first contact
func (db *DB) EnsureUser(ctx context.Context, user models.User) (bool, error) {
	now := db.now()
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}

	created := false
	err := db.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := userRow{
			UserID:          user.UserID,
			FullName:        user.FullName,
			Phone:           user.Phone,
			Username:        user.Username,
			RegisteredAt:    user.RegisteredAt,
			Active:          true,
			StatusUpdatedAt: user.RegisteredAt,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		product := productRow{UserID: user.UserID, StatusUpdatedAt: now}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&product).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to ensure user %d: %w", user.UserID, err)
	}
	return created, nil
}

// GetUser returns a user by telegram id
func (db *DB) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var row userRow
	err := db.gdb.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return row.model(), nil
}

// ListUsers returns all users in registration order
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := db.gdb.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]models.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.model())
	}
	return users, nil
}

// DeleteUser removes the user together with the product and appointment
func (db *DB) DeleteUser(ctx context.Context, userID int64) error {
	err := db.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&userRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&productRow{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&appointmentRow{}).Error
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	return nil
}

// UpdatePhone stores the phone number shared by the user
func (db *DB) UpdatePhone(ctx context.Context, userID int64, phone string) error {
	res := db.gdb.WithContext(ctx).Model(&userRow{}).
		Where("user_id = ?", userID).
		Update("phone", phone)
	if res.Error != nil {
		return fmt.Errorf("failed to update phone of %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	return nil
}

// GetProduct returns the product owned by the user
func (db *DB) GetProduct(ctx context.Context, userID int64) (models.Product, error) {
	var row productRow
	err := db.gdb.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to get product of %d: %w", userID, err)
	}
	return row.model(), nil
}

// AssignGroup sets the group and moves a not started item to WAIT
func (db *DB) AssignGroup(ctx context.Context, userID int64, group string) error {
	now := db.now()
	err := db.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&productRow{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{"group_number": group, "status_update_date": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
		}
		return tx.Model(&productRow{}).
			Where("user_id = ? AND status IN ?", userID, statusStrings(models.StatusWaiting.Predecessors())).
			Update("status", string(models.StatusWaiting)).Error
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to assign group of %d: %w", userID, err)
	}
	return nil
}

// SetProductID sets the item number
func (db *DB) SetProductID(ctx context.Context, userID int64, productID string) error {
	res := db.gdb.WithContext(ctx).Model(&productRow{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"product_id": productID, "status_update_date": db.now()})
	if res.Error != nil {
		return fmt.Errorf("failed to set product id of %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product of %d: %w", userID, storage.ErrNotFound)
	}
	return nil
}

// AdvanceStatus moves the product forward with a conditional update
func (db *DB) AdvanceStatus(ctx context.Context, userID int64, status models.ProductStatus) error {
	preds := status.Predecessors()
	if len(preds) == 0 {
		return fmt.Errorf("unknown target %q: %w", status, storage.ErrInvalidTransition)
	}

	res := db.gdb.WithContext(ctx).Model(&productRow{}).
		Where("user_id = ? AND status IN ?", userID, statusStrings(preds)).
		Updates(map[string]any{"status": string(status), "status_update_date": db.now()})
	if res.Error != nil {
		return fmt.Errorf("failed to advance status of %d: %w", userID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := db.GetProduct(ctx, userID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%q -> %q: %w", current.Status, status, storage.ErrInvalidTransition)
}

// ListGroups returns distinct non-empty group labels
func (db *DB) ListGroups(ctx context.Context) ([]string, error) {
	var groups []string
	err := db.gdb.WithContext(ctx).Model(&productRow{}).
		Where("group_number <> ''").
		Distinct().
		Order("group_number").
		Pluck("group_number", &groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// ListUsersInGroup returns the user ids of a group
func (db *DB) ListUsersInGroup(ctx context.Context, group string) ([]int64, error) {
	var ids []int64
	err := db.gdb.WithContext(ctx).Model(&productRow{}).
		Where("group_number = ?", group).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users of group %s: %w", group, err)
	}
	return ids, nil
}

// CountByStatus returns the number of products per status
func (db *DB) CountByStatus(ctx context.Context) (map[models.ProductStatus]int, error) {
	var rows []struct {
		Status string
		Total  int
	}
	err := db.gdb.WithContext(ctx).Model(&productRow{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	counts := make(map[models.ProductStatus]int, len(rows))
	for _, r := range rows {
		counts[models.ProductStatus(r.Status)] = r.Total
	}
	return counts, nil
}

// AddReferral records the first arrival of a user
func (db *DB) AddReferral(ctx context.Context, userID int64, source string) (bool, error) {
	row := referralRow{UserID: userID, Source: source, ArrivedAt: db.now()}
	res := db.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to add referral of %d: %w", userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListReferrals returns the latest referrals first
func (db *DB) ListReferrals(ctx context.Context, limit int) ([]models.Referral, error) {
	q := db.gdb.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []referralRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	refs := make([]models.Referral, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, models.Referral{
			ID:        r.ID,
			UserID:    r.UserID,
			Source:    r.Source,
			ArrivedAt: r.ArrivedAt,
		})
	}
	return refs, nil
}

// BanUser records a permanent ban and reports whether it is new
func (db *DB) BanUser(ctx context.Context, userID int64) (bool, error) {
	row := bannedRow{UserID: userID, BannedAt: db.now()}
	res := db.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to ban %d: %w", userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UnbanUser lifts a permanent ban
func (db *DB) UnbanUser(ctx context.Context, userID int64) (bool, error) {
	res := db.gdb.WithContext(ctx).Where("user_id = ?", userID).Delete(&bannedRow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to unban %d: %w", userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// IsBanned reports whether the user is permanently banned
func (db *DB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := db.gdb.WithContext(ctx).Model(&bannedRow{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check ban of %d: %w", userID, err)
	}
	return n > 0, nil
}

// ListBanned returns banned users ordered by ban time
func (db *DB) ListBanned(ctx context.Context) ([]models.BannedUser, error) {
	var rows []bannedRow
	if err := db.gdb.WithContext(ctx).Order("date, user_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list banned users: %w", err)
	}
	banned := make([]models.BannedUser, 0, len(rows))
	for _, r := range rows {
		banned = append(banned, models.BannedUser{UserID: r.UserID, BannedAt: r.BannedAt})
	}
	return banned, nil
}

// AddAdmin adds an admin or updates the clearance of an existing one
func (db *DB) AddAdmin(ctx context.Context, admin models.Admin) error {
	if admin.Clearance == "" {
		admin.Clearance = models.ClearanceAdmin
	}
	row := adminRow{UserID: admin.UserID, Clearance: admin.Clearance, Active: true}
	err := db.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"security_clearance", "admin_status"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to add admin %d: %w", admin.UserID, err)
	}
	return nil
}

// RemoveAdmin deletes an admin
func (db *DB) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	res := db.gdb.WithContext(ctx).Where("user_id = ?", userID).Delete(&adminRow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove admin %d: %w", userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListAdmins returns active admins
func (db *DB) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	var rows []adminRow
	err := db.gdb.WithContext(ctx).Where("admin_status = ?", true).Order("user_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	admins := make([]models.Admin, 0, len(rows))
	for _, r := range rows {
		admins = append(admins, models.Admin{UserID: r.UserID, Clearance: r.Clearance, Active: r.Active})
	}
	return admins, nil
}

// IsAdmin reports whether the user is an active admin
func (db *DB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := db.gdb.WithContext(ctx).Model(&adminRow{}).
		Where("user_id = ? AND admin_status = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check admin %d: %w", userID, err)
	}
	return n > 0, nil
}

// SignUp books a class slot inside a transaction
func (db *DB) SignUp(ctx context.Context, appt models.Appointment, capacity int) (models.SignupResult, error) {
	day, err := time.Parse(storage.LessonDateLayout, appt.Date)
	if err != nil {
		return 0, fmt.Errorf("invalid lesson date %q: %w", appt.Date, err)
	}

	today := db.today()
	result := models.SignupBooked
	err = db.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a lesson that is over no longer holds the user's booking
		if err := tx.Where("user_id = ? AND lesson_day < ?", appt.UserID, today).Delete(&appointmentRow{}).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&appointmentRow{}).Where("user_id = ?", appt.UserID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			result = models.SignupAlreadyBooked
			return nil
		}

		if capacity > 0 {
			var taken int64
			err := tx.Model(&appointmentRow{}).
				Where("lesson_date = ? AND lesson_time = ?", appt.Date, appt.Time).
				Count(&taken).Error
			if err != nil {
				return err
			}
			if taken >= int64(capacity) {
				result = models.SignupFull
				return nil
			}
		}

		return tx.Create(&appointmentRow{
			UserID:    appt.UserID,
			Activity:  appt.Activity,
			Date:      appt.Date,
			Time:      appt.Time,
			Day:       day,
			CreatedAt: db.now(),
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sign up %d: %w", appt.UserID, err)
	}
	return result, nil
}

// CancelSignup removes the user's upcoming appointment
func (db *DB) CancelSignup(ctx context.Context, userID int64) (bool, error) {
	res := db.gdb.WithContext(ctx).Where("user_id = ? AND lesson_day >= ?", userID, db.today()).Delete(&appointmentRow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel sign up of %d: %w", userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpcomingLessons returns slot occupancy from the given day on
func (db *DB) UpcomingLessons(ctx context.Context, from time.Time) ([]models.LessonSlot, error) {
	day := storage.StartOfDay(from)

	var rows []struct {
		SlotDate string
		SlotTime string
		Total    int
	}
	err := db.gdb.WithContext(ctx).Model(&appointmentRow{}).
		Select("lesson_date AS slot_date, lesson_time AS slot_time, COUNT(*) AS total").
		Where("lesson_day >= ?", day).
		Group("lesson_date, lesson_time").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming lessons: %w", err)
	}

	slots := make([]models.LessonSlot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, models.LessonSlot{Date: r.SlotDate, Time: r.SlotTime, Count: r.Total})
	}
	storage.SortSlots(slots)
	return slots, nil
}

func (db *DB) today() time.Time {
	return storage.StartOfDay(db.now())
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func statusStrings(statuses []models.ProductStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ storage.Storage = (*DB)(nil)
