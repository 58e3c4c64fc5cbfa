package domain

// ResultKind tags the outcome of a tool call so clients and the summarizer
// can switch on it instead of sniffing payload fields.
type ResultKind string

const (
	KindVehicleList         ResultKind = "vehicle_list"
	KindVehicleCreated      ResultKind = "vehicle_created"
	KindFieldsChanged       ResultKind = "fields_changed"
	KindRecordsDeleted      ResultKind = "records_deleted"
	KindVehicleDetails      ResultKind = "vehicle_details"
	KindMaintenanceStatus   ResultKind = "maintenance_status"
	KindScheduleSet         ResultKind = "schedule_set"
	KindInvoiceRecorded     ResultKind = "invoice_recorded"
	KindMaintenanceRecorded ResultKind = "maintenance_recorded"
	KindDuplicateFound      ResultKind = "duplicate_found"
	KindOCRText             ResultKind = "ocr_text"
	KindDocumentScanned     ResultKind = "document_scanned"
	KindSearchHits          ResultKind = "search_hits"
	KindNotFound            ResultKind = "not_found"
	KindInvalid             ResultKind = "invalid"
)

// ToolResult is the uniform outcome of a tool invocation. Data holds the
// kind-specific payload.
type ToolResult struct {
	Tool    string     `json:"tool"`
	Kind    ResultKind `json:"kind"`
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
}
