package feed

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Format 数据文件布局
type Format string

const (
	// FormatGrouped 按子类目分组：[{sector, category, subcategory, products:[...]}]
	FormatGrouped Format = "grouped"
	// FormatFlat 扁平商品列表，每个商品自带 subcategory:{sector, category, name, url}
	FormatFlat Format = "flat"
)

// Text 兼容字符串、数字、布尔与 null 的文本字段（手机号、价格常以数字出现）
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")) {
		*t = Text(data)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("text field: unexpected value %s", data)
	}
	*t = Text(data)
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Specs 商品规格；部分数据源在没有规格时写成 [] 或 ""，非对象一律视为空
type Specs map[string]interface{}

func (s *Specs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*s = nil
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = m
	return nil
}

// ==================== 数据源结构 ====================

// Supplier 供应商原始数据；税号字段在不同数据源中叫 taxId 或 gst
type Supplier struct {
	Name     Text `json:"name"`
	Location Text `json:"location"`
	TaxID    Text `json:"taxId"`
	GST      Text `json:"gst"`
	Email    Text `json:"email"`
	Website  Text `json:"website"`
	Mobile   Text `json:"mobile"`
}

// Product 商品原始数据
type Product struct {
	Name             Text      `json:"name"`
	ImageURL         Text      `json:"imageUrl"`
	Price            Text      `json:"price"`
	PriceUnit        Text      `json:"priceUnit"`
	Brand            Text      `json:"brand"`
	Specifications   Specs     `json:"specifications"`
	ProductDetailURL Text      `json:"productDetailUrl"`
	Supplier         *Supplier `json:"supplier"`
}

// SubcategoryRef 子类目引用
type SubcategoryRef struct {
	Name Text `json:"name"`
	URL  Text `json:"url"`
}

// Entry grouped 布局中的一组
type Entry struct {
	Sector      Text           `json:"sector"`
	Category    Text           `json:"category"`
	Subcategory SubcategoryRef `json:"subcategory"`
	Products    []Product      `json:"products"`
}

// FlatProduct flat 布局中的一个商品
type FlatProduct struct {
	Product
	Subcategory struct {
		Sector   Text `json:"sector"`
		Category Text `json:"category"`
		Name     Text `json:"name"`
		URL      Text `json:"url"`
	} `json:"subcategory"`
}

// ==================== 归一化记录 ====================

// Record 一条商品记录及其完整层级，是导入流程的最小处理单元
type Record struct {
	Batch string
	File  string
	Index int // 在文件中的序号

	Sector         string
	Category       string
	Subcategory    string
	SubcategoryURL string

	Product  ProductFields
	Supplier SupplierFields
	// HasSupplier 为 false 表示数据中没有 supplier 对象
	HasSupplier bool

	// Err 非空表示该条原文无法解析，其余字段只有 Batch/File/Index 有效
	Err error
}

// ProductFields 商品字段
type ProductFields struct {
	Name             string
	ImageURL         string
	Price            string
	PriceUnit        string
	Brand            string
	Specifications   map[string]interface{}
	ProductDetailURL string
}

// SupplierFields 供应商字段，TaxID 已合并 taxId/gst，缺失时为空串
type SupplierFields struct {
	Name     string
	Location string
	TaxID    string
	Email    string
	Website  string
	Mobile   string
}

func newRecord(f File, index int, sector, category, subName, subURL Text, p Product) Record {
	rec := Record{
		Batch:          f.Batch,
		File:           f.Name,
		Index:          index,
		Sector:         sector.String(),
		Category:       category.String(),
		Subcategory:    subName.String(),
		SubcategoryURL: subURL.String(),
		Product: ProductFields{
			Name:             p.Name.String(),
			ImageURL:         p.ImageURL.String(),
			Price:            p.Price.String(),
			PriceUnit:        p.PriceUnit.String(),
			Brand:            p.Brand.String(),
			Specifications:   map[string]interface{}(p.Specifications),
			ProductDetailURL: p.ProductDetailURL.String(),
		},
	}
	if p.Supplier != nil {
		s := p.Supplier
		taxID := s.TaxID
		if taxID == "" {
			taxID = s.GST
		}
		rec.HasSupplier = true
		rec.Supplier = SupplierFields{
			Name:     s.Name.String(),
			Location: s.Location.String(),
			TaxID:    taxID.String(),
			Email:    s.Email.String(),
			Website:  s.Website.String(),
			Mobile:   s.Mobile.String(),
		}
	}
	return rec
}
