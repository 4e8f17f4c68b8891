package ingest

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"catalog_ingest_v1/internal/feed"
)

// SupplierKeyMode 供应商身份方案
type SupplierKeyMode string

const (
	// SupplierKeyTaxMobile (taxId, mobile)
	SupplierKeyTaxMobile SupplierKeyMode = "tax_mobile"
	// SupplierKeyNameLocation (name, location)
	SupplierKeyNameLocation SupplierKeyMode = "name_location"
)

// placeholderMobilePrefix 缺失手机号时生成的占位符前缀
const placeholderMobilePrefix = "NO-"

// SectorKey 行业的缓存键
func SectorKey(name string) string {
	return name
}

// CategoryKey 类目的缓存键 "sectorId:name"
func CategoryKey(sectorID int64, name string) string {
	return strconv.FormatInt(sectorID, 10) + ":" + name
}

// SubcategoryKey 子类目的缓存键 "categoryId:name"
func SubcategoryKey(categoryID int64, name string) string {
	return strconv.FormatInt(categoryID, 10) + ":" + name
}

// KeyBuilder 按配置的身份方案生成供应商键
// 所有键按字节精确比较，不做 trim 或大小写归一化
type KeyBuilder struct {
	mode SupplierKeyMode
}

// NewKeyBuilder 创建键生成器，未知方案回退到 tax_mobile
func NewKeyBuilder(mode SupplierKeyMode) KeyBuilder {
	if mode != SupplierKeyNameLocation {
		mode = SupplierKeyTaxMobile
	}
	return KeyBuilder{mode: mode}
}

// Mode 当前身份方案
func (k KeyBuilder) Mode() SupplierKeyMode {
	return k.mode
}

// SupplierKey 供应商的缓存键，同时作为 suppliers.identity_key 持久化
func (k KeyBuilder) SupplierKey(s feed.SupplierFields) string {
	if k.mode == SupplierKeyNameLocation {
		return composite(s.Name, s.Location)
	}
	return composite(s.TaxID, EffectiveMobile(s))
}

// EffectiveMobile 写入数据库的手机号
// 缺失时由 name+location 派生确定性的占位符，保证重复导入得到同一个键
func EffectiveMobile(s feed.SupplierFields) string {
	if s.Mobile != "" {
		return s.Mobile
	}
	h := xxhash.New()
	_, _ = h.WriteString(s.Name)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(s.Location)
	return fmt.Sprintf("%s%08x", placeholderMobilePrefix, uint32(h.Sum64()))
}

// composite 长度前缀拼接，避免 ("a:b","c") 与 ("a","b:c") 冲突
func composite(a, b string) string {
	return strconv.Itoa(len(a)) + ":" + a + ":" + b
}
