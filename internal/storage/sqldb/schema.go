package sqldb

import (
	"time"

	"inspira/internal/models"
)

// Row types mirror the goose migrations in migrations/

type userRow struct {
	ID              int64     `gorm:"column:id;primaryKey"`
	UserID          int64     `gorm:"column:user_id"`
	FullName        string    `gorm:"column:fullname"`
	Phone           string    `gorm:"column:phone"`
	Username        string    `gorm:"column:username"`
	RegisteredAt    time.Time `gorm:"column:date_register"`
	Active          bool      `gorm:"column:user_status"`
	StatusUpdatedAt time.Time `gorm:"column:user_status_date_upd"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) model() models.User {
	return models.User{
		ID:              r.ID,
		UserID:          r.UserID,
		FullName:        r.FullName,
		Phone:           r.Phone,
		Username:        r.Username,
		RegisteredAt:    r.RegisteredAt,
		Active:          r.Active,
		StatusUpdatedAt: r.StatusUpdatedAt,
	}
}

type productRow struct {
	ID              int64     `gorm:"column:id;primaryKey"`
	ProductID       string    `gorm:"column:product_id"`
	Status          string    `gorm:"column:status"`
	UserID          int64     `gorm:"column:user_id"`
	Group           string    `gorm:"column:group_number"`
	StatusUpdatedAt time.Time `gorm:"column:status_update_date"`
}

func (productRow) TableName() string { return "products" }

func (r productRow) model() models.Product {
	return models.Product{
		ID:              r.ID,
		ProductID:       r.ProductID,
		Status:          models.ProductStatus(r.Status),
		UserID:          r.UserID,
		Group:           r.Group,
		StatusUpdatedAt: r.StatusUpdatedAt,
	}
}

type referralRow struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	UserID    int64     `gorm:"column:user_id"`
	Source    string    `gorm:"column:source"`
	ArrivedAt time.Time `gorm:"column:date_arrival"`
}

func (referralRow) TableName() string { return "referrals" }

type bannedRow struct {
	ID       int64     `gorm:"column:id;primaryKey"`
	UserID   int64     `gorm:"column:user_id"`
	BannedAt time.Time `gorm:"column:date"`
}

func (bannedRow) TableName() string { return "limited_users" }

type adminRow struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	UserID    int64  `gorm:"column:user_id"`
	Clearance string `gorm:"column:security_clearance"`
	Active    bool   `gorm:"column:admin_status"`
}

func (adminRow) TableName() string { return "admins" }

type appointmentRow struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	UserID    int64     `gorm:"column:user_id"`
	Activity  string    `gorm:"column:activity"`
	Date      string    `gorm:"column:lesson_date"`
	Time      string    `gorm:"column:lesson_time"`
	Day       time.Time `gorm:"column:lesson_day"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (appointmentRow) TableName() string { return "appointments" }
