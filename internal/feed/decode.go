package feed

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrMalformed 文件无法按配置的布局解析
var ErrMalformed = errors.New("malformed feed file")

// Decode 按布局解析一个文件，返回按出现顺序排列的记录
// 文件本身不是 JSON 数组时返回 ErrMalformed；单个商品字段类型不符只影响该条记录，见 Record.Err
func Decode(data []byte, format Format, f File) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", ErrMalformed, f.Name)
	}

	switch format {
	case FormatGrouped, "":
		return decodeGrouped(data, f)
	case FormatFlat:
		return decodeFlat(data, f)
	default:
		return nil, fmt.Errorf("unsupported feed format %q", format)
	}
}

// rawEntry grouped 布局的一组，商品保留原文逐条解析
type rawEntry struct {
	Sector      Text              `json:"sector"`
	Category    Text              `json:"category"`
	Subcategory SubcategoryRef    `json:"subcategory"`
	Products    []json.RawMessage `json:"products"`
}

func decodeGrouped(data []byte, f File) ([]Record, error) {
	items, err := splitArray(data, f)
	if err != nil {
		return nil, err
	}

	var records []Record
	for i, item := range items {
		var e rawEntry
		if err := json.Unmarshal(item, &e); err != nil {
			// 分组头无法解析时整组作废，但仍按商品数计入记录
			var loose struct {
				Products []json.RawMessage `json:"products"`
			}
			n := 1
			if json.Unmarshal(item, &loose) == nil && len(loose.Products) > 0 {
				n = len(loose.Products)
			}
			for j := 0; j < n; j++ {
				records = append(records, invalidRecord(f, len(records), fmt.Errorf("entry %d: %v", i, err)))
			}
			continue
		}

		for _, raw := range e.Products {
			var p Product
			if err := json.Unmarshal(raw, &p); err != nil {
				records = append(records, invalidRecord(f, len(records), err))
				continue
			}
			records = append(records, newRecord(f, len(records), e.Sector, e.Category, e.Subcategory.Name, e.Subcategory.URL, p))
		}
	}
	return records, nil
}

func decodeFlat(data []byte, f File) ([]Record, error) {
	items, err := splitArray(data, f)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		var p FlatProduct
		if err := json.Unmarshal(item, &p); err != nil {
			records = append(records, invalidRecord(f, i, err))
			continue
		}
		sub := p.Subcategory
		records = append(records, newRecord(f, i, sub.Sector, sub.Category, sub.Name, sub.URL, p.Product))
	}
	return records, nil
}

// splitArray 顶层必须是数组，元素原文留给调用方逐条解析
func splitArray(data []byte, f File) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, f.Name, err)
	}
	return items, nil
}

func invalidRecord(f File, index int, err error) Record {
	return Record{
		Batch: f.Batch,
		File:  f.Name,
		Index: index,
		Err:   err,
	}
}
