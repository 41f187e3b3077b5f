package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/models"
	"github.com/umworks/aurora-sync/internal/repository"
	"github.com/umworks/aurora-sync/internal/service"
	"github.com/umworks/aurora-sync/pkg/config"
	"github.com/umworks/aurora-sync/pkg/database"
	"github.com/umworks/aurora-sync/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "validate extracts without writing")
	requireValidLogin := flag.Bool("require-valid-login", false, "skip rows without a resolvable login")
	ignoreUnknownSections := flag.Bool("ignore-unknown-sections", false, "skip report rows for unknown sections")
	createSection := flag.Bool("create-section", false, "create the classlist section when missing")
	force := flag.Bool("force", false, "override the empty-import check")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: aurora-load [flags] extract.csv ...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	people := repository.NewPersonRepository(db)
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	terms := repository.NewTermRepository(db)
	sections := repository.NewSectionRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	history := repository.NewHistoryRepository(db)
	audit := repository.NewAuditRepository(db)
	importJobs := repository.NewImportJobRepository(db)

	runner := service.NewAuroraRunner(
		people, students, courses, terms, sections, registrations, history, audit,
		aurora.DomainUsernames(cfg.Aurora.UsernameDomains),
		aurora.DomainEmailTypes(cfg.Aurora.WorkEmailDomains),
		cfg.Aurora.HistoryAdminMirror,
		logr,
	)
	imports := service.NewImportService(db, runner, sections, importJobs, nil, nil, nil, nil, logr)

	options := models.ImportOptions{
		RequireValidLogin:     *requireValidLogin,
		IgnoreUnknownSections: *ignoreUnknownSections,
		CreateSection:         *createSection,
		Force:                 *force,
	}

	ctx := context.Background()
	failed := false
	for _, path := range files {
		if err := loadOne(ctx, imports, path, options, *dryRun); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func loadOne(ctx context.Context, imports *service.ImportService, path string, options models.ImportOptions, dryRun bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	job, err := imports.Import(ctx, service.ImportRequest{
		Filename:  filepath.Base(path),
		Options:   options,
		DryRun:    dryRun,
		CreatedBy: "aurora-load",
	}, file)
	if err != nil {
		return err
	}

	result := job.Result
	label := "imported"
	if dryRun {
		label = "validated"
	}
	fmt.Printf("%s: %s %s extract: %d rows, %d saved, %d ignored, %d de-registered\n",
		path, label, job.Kind, result.TotalRows, result.SavedRows, result.IgnoredRows, result.Deregistered)
	for _, diag := range result.InvalidLogins {
		fmt.Printf("  invalid login: %s\n", diag)
	}
	if result.SectionSlug != "" {
		fmt.Printf("  section: %s\n", result.SectionSlug)
	}
	return nil
}
