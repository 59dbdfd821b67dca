package models

// Product represents a sellable item in the store.
type Product struct {
	ID    int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name  string  `json:"name" gorm:"type:text;not null"`
	Price float64 `json:"price" gorm:"type:double precision;not null"`
	Stock int     `json:"stock" gorm:"not null"`
}

// TableName pins the table name used by the storage contract.
func (Product) TableName() string {
	return "products"
}
