package events

import "time"

// ConversionKind is the type of a listing conversion.
type ConversionKind string

const (
	ConversionKindView  ConversionKind = "VIEW"
	ConversionKindClick ConversionKind = "CLICK"
)

// Valid reports whether k is a known conversion kind.
func (k ConversionKind) Valid() bool {
	return k == ConversionKindView || k == ConversionKindClick
}

// TrafficEvent is one raw page hit recorded by the collector. Rows are
// append-only and never updated.
type TrafficEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp   time.Time `gorm:"index;not null"`
	IPAddress   string    `gorm:"size:64"`
	Fingerprint string    `gorm:"size:128"`
	UserAgent   string
	ReferrerURL string
	CountryCode string `gorm:"size:2"`
	Path        string `gorm:"not null;default:'/'"`
	CreatedAt   time.Time
}

func (TrafficEvent) TableName() string {
	return "traffic_events"
}

// ConversionEvent records a listing VIEW or outbound CLICK by a visitor.
type ConversionEvent struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	Timestamp  time.Time      `gorm:"index:idx_conversion_kind_timestamp;not null"`
	Kind       ConversionKind `gorm:"index:idx_conversion_kind_timestamp;size:8;not null"`
	ListingID  uint           `gorm:"index;not null"`
	VisitorKey string         `gorm:"index;size:128;not null"`
	CreatedAt  time.Time
}

func (ConversionEvent) TableName() string {
	return "conversion_events"
}
