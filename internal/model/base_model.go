package model

import "time"

// BaseModel 目录表公共字段
// 导入流程从不删除层级数据，因此不使用软删除（软删除会让唯一约束与缓存重载结果不一致）
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryID 返回数据库分配的主键
func (m *BaseModel) PrimaryID() int64 {
	return m.ID
}

// CatalogModels 导入流程需要的全部表，按外键依赖顺序排列
func CatalogModels() []interface{} {
	return []interface{}{
		&Sector{}, &Category{}, &Subcategory{},
		&Supplier{}, &Product{},
		&ImportRun{},
	}
}
