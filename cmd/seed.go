package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/scriptguard/internal/api/auth"
	"github.com/scriptguard/internal/database"
	"github.com/scriptguard/internal/store"
	"github.com/scriptguard/pkg/models"
)

// SeedCommand creates a default product, script, license, and admin
// account for a fresh installation. Running against a non-empty
// database is a no-op.
func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Seed the database with a demo product and admin account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "admin-email",
				Usage: "Email for the initial admin account",
				Value: "admin@scriptguard.local",
			},
			&cli.StringFlag{
				Name:     "admin-password",
				Usage:    "Password for the initial admin account",
				Required: true,
			},
		},
		Action: runSeed,
	}
}

func runSeed(c *cli.Context) error {
	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	storage := store.NewStorage(db)

	products, err := storage.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		fmt.Println("Database already seeded, nothing to do")
		return nil
	}

	fmt.Println("Seeding database...")

	product, err := storage.CreateProduct(ctx, "Demo Hub",
		"Demo script hub for a fresh ScriptGuard install", "1.0.0", true)
	if err != nil {
		return err
	}

	if _, err := storage.UpsertScript(ctx, product.ID,
		"print(\"Hello from Demo Hub!\")\nwarn(\"Loaded successfully.\")", false); err != nil {
		return err
	}

	license, err := storage.CreateLicense(ctx, "", product.ID, models.LicenseStatusActive)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(c.String("admin-password"))
	if err != nil {
		return err
	}
	admin, err := storage.CreateAccount(ctx, c.String("admin-email"), hash, models.TierEnterprise, true)
	if err != nil {
		return err
	}

	fmt.Printf("Seeding complete!\n  product: %d\n  license key: %s\n  admin: %s\n", product.ID, license.Key, admin.Email)
	return nil
}
