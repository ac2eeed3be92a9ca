package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"business-os/backend/internal/auth"
	"business-os/backend/internal/config"
	"business-os/backend/internal/logging"
	"business-os/backend/internal/repository"
	"business-os/backend/pkg/models"
)

var (
	configPath string
	domain     string
)

var rootCmd = &cobra.Command{
	Use:           "seed",
	Short:         "Seed a development tenant with sample projects, leads, deals and contracts",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml)")
	rootCmd.Flags().StringVar(&domain, "domain", "localhost", "Domain of the tenant to seed")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool, logger)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tenant, err := store.GetTenantByDomain(ctx, domain)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logger.Info("Creating tenant", "domain", domain)
		tenant = &models.Tenant{Name: "Local Dev Tenant", Domain: domain, Plan: models.PlanPro}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
	case err != nil:
		return fmt.Errorf("look up tenant: %w", err)
	default:
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	if err := seedProjects(ctx, store, tenant.ID, logger); err != nil {
		return err
	}

	reps, err := store.ListActiveReps(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("list reps: %w", err)
	}
	if len(reps) > 0 {
		logger.Info("Sales data already seeded, skipping", "reps", len(reps))
	} else if err := seedSales(ctx, store, tenant.ID, logger); err != nil {
		return err
	}

	logger.Info("Seeding complete!")
	return nil
}

func seedProjects(ctx context.Context, store *repository.PostgresStore, tenantID string, logger *logging.Logger) error {
	existing, err := store.ListProjects(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.Name] = true
	}

	now := time.Now().UTC()
	projects := []*models.Project{
		{Name: "Customer Portal", Description: str("Self-service portal for account management"), CurrentStage: "Discovery"},
		{Name: "Billing Revamp", Description: str("Move invoicing to usage-based plans"), Timeline: str("Q3"), CurrentStage: "Planning"},
		{
			Name: "Mobile App", Description: str("Field sales companion app"), Timeline: str("Q2"),
			DesignFiles: []string{"figma://mobile/v3"}, CurrentStage: "Development",
		},
		{
			Name: "Data Warehouse", Description: str("Consolidated reporting"), Timeline: str("Q1"),
			DesignFiles: []string{"docs/warehouse.pdf"}, TestResults: str("412 passed"),
			DeploymentURL: str("https://dw.internal.example"), CompletionDate: &now, CurrentStage: "Completed",
		},
		{Name: "Partner API", Description: str("Public API for resellers"), HoldReason: str("Waiting on legal review"), CurrentStage: "On Hold"},
	}

	for _, p := range projects {
		if seen[p.Name] {
			logger.Info("Skipping existing project", "name", p.Name)
			continue
		}
		p.TenantID = tenantID
		p.OwnerID = auth.DevUserID
		if err := store.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("create project %s: %w", p.Name, err)
		}
		logger.Info("Seeded project", "name", p.Name, "id", p.ID, "stage", p.CurrentStage)
	}
	return nil
}

func seedSales(ctx context.Context, store *repository.PostgresStore, tenantID string, logger *logging.Logger) error {
	for _, name := range []string{"Ada", "Grace", "Linus"} {
		rep := &models.SalesRep{TenantID: tenantID, Name: name, Active: true}
		if err := store.CreateSalesRep(ctx, rep); err != nil {
			return fmt.Errorf("create rep %s: %w", name, err)
		}
		logger.Info("Seeded sales rep", "name", name, "id", rep.ID)
	}

	leads := []*models.Lead{
		{Name: "Acme Corp", Email: "buyer@acme.example", Source: "webinar"},
		{Name: "Globex", Email: "it@globex.example", Source: "referral"},
		{Name: "Initech", Email: "ops@initech.example", Source: "website"},
	}
	for _, l := range leads {
		l.TenantID = tenantID
		if err := store.CreateLead(ctx, l); err != nil {
			return fmt.Errorf("create lead %s: %w", l.Name, err)
		}
		logger.Info("Seeded lead", "name", l.Name, "id", l.ID)
	}

	now := time.Now().UTC()
	recent := now.Add(-48 * time.Hour)
	stale := now.Add(-45 * 24 * time.Hour)
	deals := []*models.Deal{
		{Name: "Acme expansion", Stage: models.DealProposal, Amount: 48000, LastActivityAt: &recent, LastContactedAt: &recent},
		{Name: "Globex pilot", Stage: models.DealQualification, Amount: 12000, LastActivityAt: &stale},
		{Name: "Initech renewal", Stage: models.DealNegotiation, Amount: 90000, LastActivityAt: &recent},
	}
	for _, d := range deals {
		d.TenantID = tenantID
		d.OwnerID = auth.DevUserID
		if err := store.CreateDeal(ctx, d); err != nil {
			return fmt.Errorf("create deal %s: %w", d.Name, err)
		}
		logger.Info("Seeded deal", "name", d.Name, "id", d.ID)
	}

	contracts := []*models.Contract{
		{Title: "Acme support", StartDate: now.AddDate(-1, 0, 10), EndDate: now.AddDate(0, 0, 10), TermMonths: 12, AutoRenew: true},
		{Title: "Globex licence", StartDate: now.AddDate(0, -6, 0), EndDate: now.AddDate(0, 0, -2), TermMonths: 6},
		{Title: "Initech hosting", StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 11, 0), TermMonths: 12, AutoRenew: true},
	}
	for _, c := range contracts {
		c.TenantID = tenantID
		c.OwnerID = auth.DevUserID
		if err := store.CreateContract(ctx, c); err != nil {
			return fmt.Errorf("create contract %s: %w", c.Title, err)
		}
		logger.Info("Seeded contract", "title", c.Title, "id", c.ID, "end_date", c.EndDate.Format(time.DateOnly))
	}
	return nil
}

func str(s string) *string { return &s }
