package storage

import (
	"time"

	"github.com/chrissnell/flarewatch/internal/flare"
)

// Run is one execution of the detection pipeline over an uploaded light curve
type Run struct {
	ID          string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	Source      string    `gorm:"column:source;not null" json:"source"`
	SampleCount int       `gorm:"column:sample_count" json:"sample_count"`
	BinWidth    int       `gorm:"column:bin_width" json:"bin_width"`
	KernelWidth int       `gorm:"column:kernel_width" json:"kernel_width"`
	FlareCount  int       `gorm:"column:flare_count" json:"flare_count"`
	CreatedAt   time.Time `gorm:"column:created_at;index" json:"created_at"`

	Flares []Flare `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Run
func (Run) TableName() string {
	return "runs"
}

// Flare is a detected flare belonging to a run, ordered by Sequence
type Flare struct {
	ID              uint    `gorm:"primaryKey;autoIncrement;column:id"`
	RunID           string  `gorm:"column:run_id;size:36;not null;index"`
	Sequence        int     `gorm:"column:sequence;not null"`
	Class           string  `gorm:"column:flare_class"`
	StartTime       float64 `gorm:"column:start_time"`
	StartPoint      float64 `gorm:"column:start_point"`
	RiseRate        float64 `gorm:"column:rise_rate"`
	PeakTime        float64 `gorm:"column:peak_time"`
	PeakRate        float64 `gorm:"column:peak_rate"`
	BackgroundLevel float64 `gorm:"column:background_level"`
	EndTime         float64 `gorm:"column:end_time"`
}

// TableName specifies the table name for Flare
func (Flare) TableName() string {
	return "flares"
}

func newFlare(runID string, seq int, r flare.FlareRecord) Flare {
	return Flare{
		RunID:           runID,
		Sequence:        seq,
		Class:           r.Class,
		StartTime:       r.StartTime,
		StartPoint:      r.StartPoint,
		RiseRate:        r.RiseRate,
		PeakTime:        r.PeakTime,
		PeakRate:        r.PeakRate,
		BackgroundLevel: r.BackgroundLevel,
		EndTime:         r.EndTime,
	}
}

// Record converts the stored row back into a detection record
func (f Flare) Record() flare.FlareRecord {
	return flare.FlareRecord{
		StartTime:       f.StartTime,
		Class:           f.Class,
		StartPoint:      f.StartPoint,
		PeakTime:        f.PeakTime,
		EndTime:         f.EndTime,
		PeakRate:        f.PeakRate,
		BackgroundLevel: f.BackgroundLevel,
		RiseRate:        f.RiseRate,
	}
}
