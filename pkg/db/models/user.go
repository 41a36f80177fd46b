package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

// User is the portal account row. The tracker service only reads it.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FullName  string         `gorm:"column:full_name;not null"`
	Barangay  string         `gorm:"column:barangay;not null"`
	BatchYear string         `gorm:"column:batch_year;not null"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Role      enums.UserRole `gorm:"column:role;not null;default:'scholar'"`
	Verified  bool           `gorm:"column:verified;not null;default:false"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
