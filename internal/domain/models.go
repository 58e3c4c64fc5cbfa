// Package domain defines the persistence models of the vehicle assistant:
// vehicles, invoices, maintenance entries, cached OCR text and the chat
// transcript. These types are mapped with GORM and shared by the repository,
// service and HTTP layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Maintenance entry statuses.
const (
	StatusDone    = "done"
	StatusDue     = "due"
	StatusOverdue = "overdue"
)

// DateLayout is the calendar date format used by invoices and maintenance
// entries (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Vehicle is a car tracked by the user.
//
// Fields:
//   - Mileage only ever moves upward when invoices or maintenance are recorded.
//   - CustomSchedule, once set, replaces the brand/default interval table.
type Vehicle struct {
	ID             string                           `json:"id"              gorm:"type:char(36);primaryKey"`
	Make           string                           `json:"make"            gorm:"type:varchar(64);not null"`
	Model          string                           `json:"model"           gorm:"type:varchar(64);not null"`
	Year           int                              `json:"year"`
	Mileage        int                              `json:"mileage"         gorm:"not null;default:0"`
	LicensePlate   string                           `json:"license_plate"   gorm:"type:varchar(32)"`
	VIN            string                           `json:"vin"             gorm:"type:varchar(17)"`
	CustomSchedule datatypes.JSONSlice[ScheduleItem] `json:"custom_schedule,omitempty"`
	CreatedAt      time.Time                        `json:"created_at"`
	UpdatedAt      time.Time                        `json:"updated_at"`
}

// TableName returns the database table name for Vehicle.
func (Vehicle) TableName() string { return "vehicles" }

// HasCustomSchedule reports whether a vehicle-specific interval table exists.
func (v Vehicle) HasCustomSchedule() bool { return len(v.CustomSchedule) > 0 }

// ScheduleItem is one row of a maintenance interval table. IntervalKm == 0
// means the item is due on time only.
type ScheduleItem struct {
	Type           Category `json:"type"`
	Label          string   `json:"label"`
	IntervalKm     int      `json:"interval_km"`
	IntervalMonths int      `json:"interval_months"`
}

// LineItem is a single billed position on an invoice.
type LineItem struct {
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Amount      float64  `json:"amount"`
}

// Invoice is a workshop bill recorded for a vehicle. The normalized image is
// kept either inline (ImageData) or in an object store (ImageKey).
type Invoice struct {
	ID               string                       `json:"id"                 gorm:"type:char(36);primaryKey"`
	VehicleID        string                       `json:"vehicle_id"         gorm:"type:char(36);not null;index:idx_vehicle_invoices,priority:1"`
	WorkshopName     string                       `json:"workshop_name"      gorm:"type:varchar(255)"`
	Date             string                       `json:"date"               gorm:"type:varchar(10);not null;index:idx_vehicle_invoices,priority:2"`
	TotalAmount      float64                      `json:"total_amount"`
	Currency         string                       `json:"currency"           gorm:"type:varchar(3);not null;default:'EUR'"`
	MileageAtService int                          `json:"mileage_at_service"`
	ImageData        []byte                       `json:"-"`
	ImageKey         string                       `json:"-"                  gorm:"type:varchar(255)"`
	ImageMIME        string                       `json:"-"                  gorm:"type:varchar(32)"`
	OCRCacheID       *string                      `json:"ocr_cache_id,omitempty" gorm:"type:char(64);index"`
	Items            datatypes.JSONSlice[LineItem] `json:"items"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`

	Vehicle Vehicle `json:"-" gorm:"foreignKey:VehicleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Invoice.
func (Invoice) TableName() string { return "invoices" }

// HasImage reports whether a normalized image is stored for the invoice.
func (i Invoice) HasImage() bool { return len(i.ImageData) > 0 || i.ImageKey != "" }

// MaintenanceEntry is a performed (or scheduled) piece of work. Entries derived
// from an invoice carry its id and disappear with it.
type MaintenanceEntry struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	VehicleID        string    `json:"vehicle_id"         gorm:"type:char(36);not null;index:idx_vehicle_maint,priority:1"`
	InvoiceID        *string   `json:"invoice_id,omitempty" gorm:"type:char(36);index"`
	Type             Category  `json:"type"               gorm:"type:varchar(32);not null"`
	Description      string    `json:"description"        gorm:"type:text"`
	DoneAt           string    `json:"done_at"            gorm:"type:varchar(10);index:idx_vehicle_maint,priority:2"`
	MileageAtService int       `json:"mileage_at_service"`
	Status           string    `json:"status"             gorm:"type:varchar(16);not null;default:'done';check:status IN ('done','due','overdue')"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Vehicle Vehicle  `json:"-" gorm:"foreignKey:VehicleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Invoice *Invoice `json:"-" gorm:"foreignKey:InvoiceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MaintenanceEntry.
func (MaintenanceEntry) TableName() string { return "maintenances" }

// OCRCacheEntry maps the SHA-256 of a normalized image to its OCR markdown.
// Rows are append-only.
type OCRCacheEntry struct {
	Hash      string    `json:"hash"       gorm:"type:char(64);primaryKey"`
	Markdown  string    `json:"markdown"   gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for OCRCacheEntry.
func (OCRCacheEntry) TableName() string { return "ocr_cache" }

// Chat represents a conversation owned by a user.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the chat owner; indexed for efficient retrieval.
//   - Title: human-readable chat title (auto-generated from the first message).
//   - DeletedAt: soft deletion marker.
type Chat struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"   gorm:"type:varchar(64);not null;index:idx_user_chats"`
	Title     string         `json:"title"     gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Attachment describes a file sent with a user message. Only a display name
// and a small preview are kept on the transcript.
type Attachment struct {
	Type    string `json:"type"` // "image" | "pdf"
	Name    string `json:"name"`
	Preview string `json:"preview,omitempty"` // data URI thumbnail
}

// Message is a single utterance within a chat. Assistant messages may carry
// the tool results produced while answering, rendered as cards by clients.
type Message struct {
	ID          string                          `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID      string                          `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role        string                          `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content     string                          `json:"content"   gorm:"type:text;not null"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments,omitempty"`
	ToolResults datatypes.JSONSlice[ToolResult] `json:"tool_results,omitempty"`
	CreatedAt   time.Time                       `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt   time.Time                       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt                  `json:"-"         gorm:"index"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
