// Package services – Registry
//
// The Registry is the set of actions the model may take. Every tool declares
// a JSON Schema for its arguments; arguments are validated before the tool
// runs and invalid calls are answered with an Invalid result so the model can
// correct itself. Each tool commits its own writes.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vehicle-assistant/internal/domain"
	"github.com/tbourn/go-vehicle-assistant/internal/extract"
	"github.com/tbourn/go-vehicle-assistant/internal/llm"
	"github.com/tbourn/go-vehicle-assistant/internal/observability"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/storage"
)

// DocumentStore is the persistence seam of the tools. repo.Store implements it.
type DocumentStore interface {
	ListVehicles(ctx context.Context) ([]domain.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	CreateVehicle(ctx context.Context, v *domain.Vehicle) error
	UpdateVehicle(ctx context.Context, id string, patch map[string]any) (*domain.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) (repo.DeleteCounts, error)
	SetSchedule(ctx context.Context, vehicleID string, items []domain.ScheduleItem) error

	InsertInvoice(ctx context.Context, w repo.InvoiceWrite, check repo.DuplicateCheck) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, vehicleID string) ([]domain.Invoice, error)
	ListInvoicesWithOCR(ctx context.Context) ([]domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) (int64, error)

	InsertMaintenance(ctx context.Context, e *domain.MaintenanceEntry) error
	ListMaintenance(ctx context.Context, vehicleID string) ([]domain.MaintenanceEntry, error)

	ListOCR(ctx context.Context, hashes []string) ([]domain.OCRCacheEntry, error)
}

// Tool names.
const (
	ToolListVehicles      = "list_vehicles"
	ToolAddVehicle        = "add_vehicle"
	ToolUpdateVehicle     = "update_vehicle"
	ToolDeleteVehicle     = "delete_vehicle"
	ToolGetVehicle        = "get_vehicle"
	ToolMaintenanceStatus = "get_maintenance_status"
	ToolSetSchedule       = "set_maintenance_schedule"
	ToolAddInvoice        = "add_invoice"
	ToolAddMaintenance    = "add_maintenance"
	ToolDeleteInvoice     = "delete_invoice"
	ToolGetOCRText        = "get_ocr_text"
	ToolScanDocument      = "scan_document"
	ToolSearchDocuments   = "search_documents"
)

// Env is the per-turn state tools can see.
type Env struct {
	UserID  string
	ChatID  string
	Pending *Pending
	Now     time.Time
}

func (e *Env) scanAllowed() bool { return e == nil || e.Pending.Empty() }

// ToolFunc executes a tool with validated arguments. A returned error aborts
// the turn; expected failures are reported as a result instead.
type ToolFunc func(ctx context.Context, env *Env, args json.RawMessage) (domain.ToolResult, error)

// Tool is a registered action.
type Tool struct {
	Name        string
	Description string
	Params      map[string]any
	Run         ToolFunc

	schema *jsonschema.Schema
}

// Registry holds the tools and their dependencies.
type Registry struct {
	Store     DocumentStore
	Images    storage.ImageStore
	Extractor *extract.Extractor
	OCR       *ocr.Cache
	Now       func() time.Time

	tools  []*Tool
	byName map[string]*Tool
}

// NewRegistry registers every tool. images defaults to inline storage.
func NewRegistry(store DocumentStore, images storage.ImageStore, ex *extract.Extractor, cache *ocr.Cache) *Registry {
	if images == nil {
		images = storage.DBImageStore{}
	}
	if cache == nil {
		cache = ocr.NewCache(nil)
	}
	r := &Registry{
		Store:     store,
		Images:    images,
		Extractor: ex,
		OCR:       cache,
		Now:       time.Now,
		byName:    make(map[string]*Tool),
	}
	r.registerVehicleTools()
	r.registerRecordTools()
	r.registerDocumentTools()
	return r
}

func (r *Registry) add(t *Tool) {
	if _, dup := r.byName[t.Name]; dup {
		panic("services: duplicate tool " + t.Name)
	}
	t.schema = llm.MustCompileSchema("tool_"+t.Name, t.Params)
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// Names lists the registered tools in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Name
	}
	return out
}

// Definitions returns the tool declarations for a completion request.
// scan_document is left out when withScan is false.
func (r *Registry) Definitions(withScan bool) []openai.Tool {
	out := make([]openai.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if t.Name == ToolScanDocument && !withScan {
			continue
		}
		out = append(out, llm.FunctionTool(t.Name, t.Description, t.Params))
	}
	return out
}

// Invoke validates and runs one tool call.
func (r *Registry) Invoke(ctx context.Context, call openai.ToolCall, env *Env) (domain.ToolResult, error) {
	name := call.Function.Name
	ctx, span := otel.Tracer("services/Registry").Start(ctx, "Invoke",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	res, err := r.invoke(ctx, name, call.Function.Arguments, env)
	res.Tool = name

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Kind == domain.KindInvalid:
		outcome = "invalid"
	case !res.Success:
		outcome = "rejected"
	}
	observability.ToolCalls.WithLabelValues(name, outcome).Inc()
	span.SetAttributes(attribute.String("tool.outcome", outcome))
	return res, err
}

func (r *Registry) invoke(ctx context.Context, name, arguments string, env *Env) (domain.ToolResult, error) {
	t, ok := r.byName[name]
	if !ok {
		return invalid("unknown tool %q", name), nil
	}
	if name == ToolScanDocument && !env.scanAllowed() {
		return invalid("scan_document is not available while attachments are pending"), nil
	}
	if arguments == "" {
		arguments = "{}"
	}
	raw := json.RawMessage(llm.StripFences(arguments))
	if err := llm.ValidateJSON(t.schema, raw); err != nil {
		log.Debug().Str("tool", name).Err(err).Msg("tool arguments rejected")
		return invalid("invalid arguments: %v", err), nil
	}
	if env == nil {
		env = &Env{}
	}
	if env.Now.IsZero() {
		env.Now = r.now()
	}
	return t.Run(ctx, env, raw)
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func succeeded(kind domain.ResultKind, data any, format string, args ...any) domain.ToolResult {
	return domain.ToolResult{Kind: kind, Success: true, Message: fmt.Sprintf(format, args...), Data: data}
}

func invalid(format string, args ...any) domain.ToolResult {
	return domain.ToolResult{Kind: domain.KindInvalid, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) domain.ToolResult {
	return domain.ToolResult{Kind: domain.KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ----- schema helpers -----

func object(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func nonEmpty(desc string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "description": desc}
}

func integer(desc string, min int) map[string]any {
	return map[string]any{"type": "integer", "minimum": min, "description": desc}
}

func number(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func categoryEnum(desc string) map[string]any {
	return map[string]any{"type": "string", "enum": domain.CategoryIDs(), "description": desc}
}

// wholeNumber decodes integral JSON numbers written as 2015 or 2015.0.
type wholeNumber int

func (n *wholeNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = wholeNumber(math.Round(f))
	return nil
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func array(items map[string]any, desc string, minItems int) map[string]any {
	return map[string]any{"type": "array", "items": items, "minItems": minItems, "description": desc}
}
