package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/extract"
	"github.com/tbourn/go-vehicle-assistant/internal/llm"
	"github.com/tbourn/go-vehicle-assistant/internal/ocr"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/retry"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
	"github.com/tbourn/go-vehicle-assistant/internal/storage"
)

// pipeline is the assembled assistant: storage, providers and services.
type pipeline struct {
	db         *gorm.DB
	store      *repo.Store
	llm        *llm.Client
	recognizer ocr.Recognizer
	ocrCache   *ocr.Cache
	extractor  *extract.Extractor
	assistant  *services.Assistant
	vehicles   *services.VehicleService
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// newExtraction builds the document side only: model client, OCR and the
// extractor sharing the persistent OCR cache.
func newExtraction(ctx context.Context, cfg config.Config, store *repo.Store) (*pipeline, error) {
	policy := retry.PolicyFrom(cfg.Retry)
	client := llm.NewClient(llm.NewOpenAIClient(cfg.LLM), cfg.LLM, policy)
	rec, err := ocr.New(ctx, cfg.OCR, policy)
	if err != nil {
		return nil, fmt.Errorf("ocr provider %q: %w", cfg.OCR.Provider, err)
	}
	cache := ocr.NewCache(store)
	return &pipeline{
		store:      store,
		llm:        client,
		recognizer: rec,
		ocrCache:   cache,
		extractor:  extract.New(client, rec, cache, cfg.LLM, cfg.Assistant.Language),
	}, nil
}

func buildPipeline(ctx context.Context, cfg config.Config) (*pipeline, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	p, err := newExtraction(ctx, cfg, repo.NewStore(db))
	if err != nil {
		return nil, err
	}
	p.db = db

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("image store %q: %w", cfg.Storage.ImageStore, err)
	}
	reg := services.NewRegistry(p.store, images, p.extractor, p.ocrCache)
	p.assistant = services.NewAssistant(db, p.llm, reg, p.recognizer, p.ocrCache, cfg)
	p.vehicles = services.NewVehicleService(p.store, images)
	return p, nil
}

func (p *pipeline) close() {
	if p.db == nil {
		return
	}
	if sqlDB, err := p.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
