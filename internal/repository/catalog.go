package repository

import "gorm.io/gorm"

// Catalog 导入流程使用的仓储集合
type Catalog struct {
	Sectors       SectorRepository
	Categories    CategoryRepository
	Subcategories SubcategoryRepository
	Suppliers     SupplierRepository
	Products      ProductRepository
	Runs          ImportRunRepository
}

// NewCatalog 基于同一个连接创建全部仓储
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{
		Sectors:       NewSectorRepository(db),
		Categories:    NewCategoryRepository(db),
		Subcategories: NewSubcategoryRepository(db),
		Suppliers:     NewSupplierRepository(db),
		Products:      NewProductRepository(db),
		Runs:          NewImportRunRepository(db),
	}
}
