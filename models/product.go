package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int    `gorm:"primary_key" json:"id"`
	BusinessId  string `gorm:"index;not null" json:"business_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	ImageUrl    string `gorm:"size:512" json:"image_url"`
	// Cached external catalog metadata; refreshed opportunistically during
	// migration and considered stale after the possync cache window.
	ExternalSyncedAt *time.Time `json:"external_synced_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SupplierCost is a known historical unit cost per supplier for a product.
// Feeds the AVERAGE_COST basis and the supplier suggestion lookup.
type SupplierCost struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	SupplierName string          `gorm:"size:255;not null" json:"supplier_name"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CostDate     *time.Time      `json:"cost_date"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSupplierCosts(tx *gorm.DB, businessId string, productId int) ([]SupplierCost, error) {
	var costs []SupplierCost
	err := tx.Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("supplier_name").
		Find(&costs).Error
	return costs, err
}

// AverageSupplierCost returns the mean of known supplier costs.
// ok is false when no costs are known.
func AverageSupplierCost(costs []SupplierCost) (decimal.Decimal, bool) {
	if len(costs) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, c := range costs {
		sum = sum.Add(c.UnitCost)
	}
	return sum.Div(decimal.NewFromInt(int64(len(costs)))), true
}

// RefreshProductMetadata updates the cached external metadata on a product
// row. Empty fields are left untouched.
func RefreshProductMetadata(tx *gorm.DB, businessId string, productId int, name, description, imageUrl string, syncedAt time.Time) error {
	updates := map[string]interface{}{"external_synced_at": syncedAt}
	if name != "" {
		updates["name"] = name
	}
	if description != "" {
		updates["description"] = description
	}
	if imageUrl != "" {
		updates["image_url"] = imageUrl
	}
	return tx.Model(&Product{}).
		Where("business_id = ? AND id = ?", businessId, productId).
		Updates(updates).Error
}
