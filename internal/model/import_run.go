package model

import "time"

// ImportRunStatus 导入批次状态
type ImportRunStatus string

const (
	ImportRunRunning   ImportRunStatus = "running"
	ImportRunCompleted ImportRunStatus = "completed"
	ImportRunFailed    ImportRunStatus = "failed"
)

// ImportRun 每次导入的审计记录，用于核对重复执行时的增量
type ImportRun struct {
	BaseModel
	RunID    string          `gorm:"size:36;not null;uniqueIndex" json:"run_id"`
	Strategy string          `gorm:"size:32;not null" json:"strategy"`
	Status   ImportRunStatus `gorm:"size:20;not null;index" json:"status"`

	// --- 记录计数 ---
	TotalRecords        int64 `gorm:"default:0" json:"total_records"`
	Inserted            int64 `gorm:"default:0" json:"inserted"`
	SkippedMissingField int64 `gorm:"default:0" json:"skipped_missing_field"`
	SkippedUnresolvable int64 `gorm:"default:0" json:"skipped_unresolvable"`
	SkippedRejected     int64 `gorm:"default:0" json:"skipped_rejected"`
	Errored             int64 `gorm:"default:0" json:"errored"`

	// --- 新建实体计数 ---
	SectorsCreated       int64 `gorm:"default:0" json:"sectors_created"`
	CategoriesCreated    int64 `gorm:"default:0" json:"categories_created"`
	SubcategoriesCreated int64 `gorm:"default:0" json:"subcategories_created"`
	SuppliersCreated     int64 `gorm:"default:0" json:"suppliers_created"`

	BatchesDone int    `gorm:"default:0" json:"batches_done"`
	FilesDone   int    `gorm:"default:0" json:"files_done"`
	ErrorMsg    string `gorm:"size:1024" json:"error_msg"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}
