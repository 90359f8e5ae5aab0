package specification

import "gorm.io/gorm"

// BySessionID filters projects by their advisory session id.
type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// ByProductType filters projects by detected product type.
type ByProductType struct {
	ProductType string
}

func (s ByProductType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("product_type = ?", s.ProductType)
}
