package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/labreport/internal/config"
	"github.com/jwalitptl/labreport/internal/email"
	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/render"
	"github.com/jwalitptl/labreport/internal/repository"
	"github.com/jwalitptl/labreport/internal/repository/file"
	"github.com/jwalitptl/labreport/internal/repository/memory"
	"github.com/jwalitptl/labreport/internal/repository/postgres"
	"github.com/jwalitptl/labreport/internal/repository/redis"
	"github.com/jwalitptl/labreport/internal/service/catalog"
	"github.com/jwalitptl/labreport/internal/service/report"
	"github.com/jwalitptl/labreport/internal/service/sequence"
	"github.com/jwalitptl/labreport/pkg/logger"
	"github.com/jwalitptl/labreport/pkg/metrics"
	"github.com/jwalitptl/labreport/pkg/validator"
)

// app holds what every command needs: configuration, logging, metrics and
// the sequencer with whichever store is configured.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	loc      *time.Location

	db    *sqlx.DB
	redis *goredis.Client

	seqRepo repository.SequenceRepository
	seq     *sequence.Service
	drafts  repository.DraftRepository
}

func loadConfig(path string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
		JSON:       cfg.Log.JSON,
	})
	logger.SetGlobal(log)
	return cfg, log, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  metrics.NewMetrics(cfg.Monitoring.Namespace, registry),
		loc:      loc,
	}

	if err := a.openSequenceStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.seq = sequence.NewService(a.seqRepo, loc, a.metrics,
		sequence.WithLogger(log.Zerolog().With().Str("component", "sequence").Logger()),
	)
	return a, nil
}

func (a *app) openSequenceStore(ctx context.Context) error {
	switch a.cfg.Sequence.Backend {
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		a.seqRepo = redis.NewSequenceRepository(client, a.cfg.Sequence.KeyPrefix)
	case "postgres":
		db, err := postgres.NewDB(a.cfg.Database)
		if err != nil {
			return err
		}
		a.db = db
		a.seqRepo = postgres.NewSequenceRepository(db)
	default:
		a.seqRepo = file.NewSequenceRepository(a.cfg.Sequence.Path)
	}
	a.log.Debug("sequence store ready", "backend", a.seqRepo.Backend())
	return nil
}

// redisClient connects on first use and shares the connection afterwards.
func (a *app) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := redis.NewClient(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return client, nil
}

func (a *app) letterhead() render.Letterhead {
	lab := a.cfg.Lab
	return render.Letterhead{
		Name:                   lab.Name,
		Address:                lab.Address,
		Phone:                  lab.Phone,
		Signatory:              lab.Signatory,
		SignatoryQualification: lab.SignatoryQualification,
		FooterGrade:            lab.FooterGrade,
		FooterNote:             lab.FooterNote,
		QRCode:                 a.cfg.Report.QRCode,
	}
}

func (a *app) catalog() (*catalog.Catalog, error) {
	if a.cfg.Report.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.Load(a.cfg.Report.CatalogPath)
}

// reportService wires the draft service. events may be nil.
func (a *app) reportService(events report.EventSink) (*report.Service, *catalog.Catalog, error) {
	cat, err := a.catalog()
	if err != nil {
		return nil, nil, err
	}

	renderer, err := render.NewRenderer(render.Config{
		PixelsPerMM: a.cfg.Report.PixelsPerMM,
		PageHeight:  a.cfg.Report.PageHeight,
		Letterhead:  a.letterhead(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	a.drafts = memory.NewDraftRepository(a.cfg.Drafts.TTL, a.cfg.Drafts.CleanupInterval)
	deps := report.Dependencies{
		Drafts:       a.drafts,
		Sequence:     a.seq,
		Catalog:      cat,
		Renderer:     renderer,
		Validator:    validator.New(validator.WithMessages(model.PatientMessages)),
		Doctors:      a.cfg.Lab.Doctors,
		Events:       events,
		EventChannel: a.cfg.Events.Channel,
		Metrics:      a.metrics,
		Logger:       a.log.Zerolog().With().Str("component", "report").Logger(),
	}
	if a.cfg.SMTP.Enabled() {
		deps.Mailer = email.NewSMTPService(a.cfg.SMTP)
	}
	return report.NewService(deps), cat, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", "error", err.Error())
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			a.log.Warn("failed to close redis", "error", err.Error())
		}
	}
}
