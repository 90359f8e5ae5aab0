package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string         `gorm:"type:varchar(255);not null"`
	SessionID     string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	ProductType   string         `gorm:"type:varchar(255)"`
	Step          string         `gorm:"type:varchar(64);not null"`
	Messages      datatypes.JSON `gorm:"type:jsonb"`
	CollectedData datatypes.JSON `gorm:"type:jsonb"`
	Analysis      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (Project) TableName() string {
	return "projects"
}
