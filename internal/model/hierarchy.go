package model

// ==================== 行业层级 ====================
// Sector → Category → Subcategory，名称按字节精确比较，不做大小写/空白归一化

// Sector 行业（层级根节点）
type Sector struct {
	BaseModel
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

func (Sector) TableName() string {
	return "sectors"
}

// Category 类目，(sector_id, name) 唯一
type Category struct {
	BaseModel
	SectorID int64   `gorm:"not null;uniqueIndex:idx_category_sector_name,priority:1" json:"sector_id"`
	Sector   *Sector `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Name     string  `gorm:"size:255;not null;uniqueIndex:idx_category_sector_name,priority:2" json:"name"`
}

func (Category) TableName() string {
	return "categories"
}

// Subcategory 子类目，(category_id, name) 唯一；url 可随重复出现而刷新
type Subcategory struct {
	BaseModel
	CategoryID int64     `gorm:"not null;uniqueIndex:idx_subcategory_category_name,priority:1" json:"category_id"`
	Category   *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Name       string    `gorm:"size:255;not null;uniqueIndex:idx_subcategory_category_name,priority:2" json:"name"`
	URL        string    `gorm:"size:1024" json:"url"`
}

func (Subcategory) TableName() string {
	return "subcategories"
}
