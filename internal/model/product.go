package model

import "gorm.io/datatypes"

// Product 商品
// 没有业务唯一键：重复导入会产生重复行（skip-duplicates 只拦截整行冲突）
type Product struct {
	BaseModel
	Name             string `gorm:"size:512;not null" json:"name"`
	ImageURL         string `gorm:"column:image_url;size:1024" json:"image_url"`
	Price            string `gorm:"size:64" json:"price"` // 数据源给的是格式化后的价格文本
	PriceUnit        string `gorm:"size:64" json:"price_unit"`
	Brand            string `gorm:"size:255" json:"brand"`
	ProductDetailURL string `gorm:"column:product_detail_url;size:1024" json:"product_detail_url"`

	// 规格参数，原样存储，导入流程不解析
	Specifications datatypes.JSONMap `json:"specifications"`

	SubcategoryID int64        `gorm:"not null;index" json:"subcategory_id"`
	Subcategory   *Subcategory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	SupplierID    int64        `gorm:"not null;index" json:"supplier_id"`
	Supplier      *Supplier    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

func (Product) TableName() string {
	return "products"
}
