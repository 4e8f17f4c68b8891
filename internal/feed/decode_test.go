package feed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFile = File{Batch: "Group-1", Name: "aajjo-products-1.json"}

const groupedDoc = `[
  {
    "sector": "Industrial Machinery",
    "category": "Pumps",
    "subcategory": {"name": "Centrifugal Pumps", "url": "https://example.com/cp"},
    "products": [
      {
        "name": "CP-100",
        "imageUrl": "https://example.com/cp100.jpg",
        "price": "₹ 12,500",
        "priceUnit": "Piece",
        "brand": "Kirloskar",
        "specifications": {"Power": "1 HP", "Phase": "Single"},
        "productDetailUrl": "https://example.com/p/cp100",
        "supplier": {"name": "Acme Pumps", "location": "Pune", "taxId": "27AAAAA0000A1Z5", "mobile": 9876543210}
      },
      {
        "name": "CP-200",
        "price": 18000,
        "supplier": {"name": "Acme Pumps", "location": "Pune", "gst": "27AAAAA0000A1Z5", "mobile": "9876543210", "email": null}
      }
    ]
  },
  {
    "sector": "Industrial Machinery",
    "category": "Valves",
    "subcategory": {"name": "Ball Valves", "url": ""},
    "products": [
      {"name": "BV-1"}
    ]
  }
]`

func TestDecodeGrouped(t *testing.T) {
	records, err := Decode([]byte(groupedDoc), FormatGrouped, testFile)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "Group-1", first.Batch)
	assert.Equal(t, "aajjo-products-1.json", first.File)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "Industrial Machinery", first.Sector)
	assert.Equal(t, "Pumps", first.Category)
	assert.Equal(t, "Centrifugal Pumps", first.Subcategory)
	assert.Equal(t, "https://example.com/cp", first.SubcategoryURL)
	assert.Equal(t, "CP-100", first.Product.Name)
	assert.Equal(t, "₹ 12,500", first.Product.Price)
	assert.Equal(t, "1 HP", first.Product.Specifications["Power"])
	assert.True(t, first.HasSupplier)
	assert.Equal(t, "9876543210", first.Supplier.Mobile, "数字手机号按原文保留")

	second := records[1]
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, "18000", second.Product.Price)
	assert.Equal(t, "27AAAAA0000A1Z5", second.Supplier.TaxID, "gst 作为 taxId 的备选字段")
	assert.Equal(t, "", second.Supplier.Email)

	third := records[2]
	assert.Equal(t, "Valves", third.Category)
	assert.False(t, third.HasSupplier)
	assert.Equal(t, 2, third.Index)
}

func TestDecodeFlat(t *testing.T) {
	doc := `[
	  {
	    "name": "Drill X",
	    "brand": "Bosch",
	    "subcategory": {"sector": "Tools", "category": "Power Tools", "name": "Drills", "url": "https://example.com/drills"},
	    "supplier": {"name": "ToolMart", "location": "Delhi", "mobile": "9000000001"}
	  }
	]`

	records, err := Decode([]byte(doc), FormatFlat, testFile)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Tools", r.Sector)
	assert.Equal(t, "Power Tools", r.Category)
	assert.Equal(t, "Drills", r.Subcategory)
	assert.Equal(t, "https://example.com/drills", r.SubcategoryURL)
	assert.Equal(t, "Drill X", r.Product.Name)
	assert.Equal(t, "ToolMart", r.Supplier.Name)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"空文件", ""},
		{"截断的 JSON", `[{"sector": "A"`},
		{"顶层不是数组", `{"sector": "A"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), FormatGrouped, testFile)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestDecode_OddFieldTypes(t *testing.T) {
	doc := `[
	  {
	    "sector": "S",
	    "category": "C",
	    "subcategory": {"name": "Sub"},
	    "products": [
	      {"name": "ok-1", "supplier": {"name": "Acme"}},
	      {"name": "empty-specs", "specifications": [], "supplier": {"name": "Acme"}},
	      {"name": "bool-mobile", "supplier": {"name": "Acme", "mobile": true}},
	      {"name": "bad-price", "price": {"v": 1}},
	      "not an object",
	      {"name": "ok-2", "specifications": {"Power": "1 HP"}}
	    ]
	  },
	  {"sector": {"x": 1}, "products": [{"name": "a"}, {"name": "b"}]}
	]`

	records, err := Decode([]byte(doc), FormatGrouped, testFile)
	require.NoError(t, err)
	require.Len(t, records, 8)

	for i, r := range records {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, "aajjo-products-1.json", r.File)
	}

	assert.NoError(t, records[0].Err)

	assert.NoError(t, records[1].Err)
	assert.Empty(t, records[1].Product.Specifications, "非对象规格视为空")

	assert.NoError(t, records[2].Err)
	assert.Equal(t, "true", records[2].Supplier.Mobile)

	assert.Error(t, records[3].Err, "价格是对象")
	assert.Error(t, records[4].Err)

	assert.NoError(t, records[5].Err)
	assert.Equal(t, "ok-2", records[5].Product.Name)
	assert.Equal(t, "1 HP", records[5].Product.Specifications["Power"])

	// 分组头无效时整组按商品数作废
	assert.Error(t, records[6].Err)
	assert.Error(t, records[7].Err)
}

func TestDecodeFlat_OddFieldTypes(t *testing.T) {
	doc := `[
	  {"name": "a", "specifications": "", "subcategory": {"sector": "S", "category": "C", "name": "Sub"}},
	  {"name": {"en": "b"}, "subcategory": {"sector": "S", "category": "C", "name": "Sub"}},
	  {"name": "c", "subcategory": {"sector": "S", "category": "C", "name": "Sub"}}
	]`

	records, err := Decode([]byte(doc), FormatFlat, testFile)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.NoError(t, records[0].Err)
	assert.Nil(t, records[0].Product.Specifications)
	assert.Error(t, records[1].Err)
	assert.Equal(t, 1, records[1].Index)
	assert.NoError(t, records[2].Err)
	assert.Equal(t, "c", records[2].Product.Name)
}

func TestDecode_EmptyArray(t *testing.T) {
	records, err := Decode([]byte(`[]`), FormatGrouped, testFile)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecode_UnknownFormat(t *testing.T) {
	_, err := Decode([]byte(`[]`), Format("csv"), testFile)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformed))
}
