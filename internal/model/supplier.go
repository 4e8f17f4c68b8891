package model

// Supplier 供应商
// IdentityKey 由配置的身份方案生成（tax_mobile 或 name_location），唯一约束建立在该列上，
// 保证数据库约束与导入缓存使用同一个键
type Supplier struct {
	BaseModel
	IdentityKey string `gorm:"size:512;not null;uniqueIndex" json:"-"`
	Name        string `gorm:"size:255;not null;index" json:"name"`
	Location    string `gorm:"size:255;not null;default:''" json:"location"`
	TaxID       string `gorm:"column:tax_id;size:64;not null;default:''" json:"tax_id"` // 允许空串，不允许 NULL
	Mobile      string `gorm:"size:64;not null;index" json:"mobile"`
	Email       string `gorm:"size:255" json:"email"`
	Website     string `gorm:"size:512" json:"website"`
}

func (Supplier) TableName() string {
	return "suppliers"
}
