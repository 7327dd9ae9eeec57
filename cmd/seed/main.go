// seed inserts development sample data for local testing, or hashes an admin
// key with -hash-admin-key for ADMIN_KEY_HASH.
// Idempotent: skips inserts if the dev profile already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"quillaborn/backend/internal/config"
	"quillaborn/backend/internal/db"
	notificationdomain "quillaborn/backend/internal/notification/domain"
	notificationrepo "quillaborn/backend/internal/notification/repository"
	profiledomain "quillaborn/backend/internal/profile/domain"
	profilerepo "quillaborn/backend/internal/profile/repository"
	"quillaborn/backend/internal/security"
	waitlistdomain "quillaborn/backend/internal/waitlist/domain"
	waitlistrepo "quillaborn/backend/internal/waitlist/repository"
)

const (
	devProfileID    = "dev-user-001"
	devEmail        = "dev@example.com"
	devPendingEmail = "pending@example.com"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "-hash-admin-key" {
		hashAdminKey(os.Args[2:])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer database.Close()

	if err := seed(context.Background(), database); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func hashAdminKey(args []string) {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -hash-admin-key <key>")
		os.Exit(1)
	}
	hash, err := security.NewHasher(0).Hash([]byte(args[0]))
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func seed(ctx context.Context, database *sql.DB) error {
	profiles := profilerepo.NewPostgresRepository(database)
	waitlist := waitlistrepo.NewPostgresRepository(database)
	notifications := notificationrepo.NewPostgresRepository(database)

	existing, err := profiles.GetByID(ctx, devProfileID)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Println("seed: dev profile exists, skipping")
		return nil
	}

	now := time.Now().UTC()

	// An admitted, onboarded dev user.
	if err := profiles.Create(ctx, &profiledomain.Profile{
		ID:          devProfileID,
		DisplayName: "Dev User",
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return err
	}
	if err := profiles.SetUsername(ctx, devProfileID, "devuser"); err != nil {
		return err
	}
	if err := profiles.SetInterests(ctx, devProfileID, []string{"comics", "worldbuilding"}); err != nil {
		return err
	}
	if err := profiles.SetEarlyAccess(ctx, devProfileID, true); err != nil {
		return err
	}
	if err := profiles.SetOnboardingComplete(ctx, devProfileID); err != nil {
		return err
	}

	// An approved waitlist entry with a redeemed token behind the dev user.
	if err := waitlist.InsertEntry(ctx, &waitlistdomain.Entry{
		Email:     devEmail,
		Status:    waitlistdomain.StatusPending,
		CreatedAt: now.Add(-48 * time.Hour),
	}); err != nil {
		return err
	}
	if _, err := waitlist.MarkApproved(ctx, devEmail); err != nil {
		return err
	}
	token, err := security.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := waitlist.InsertToken(ctx, &waitlistdomain.ApprovalToken{
		Token:     token,
		Email:     devEmail,
		CreatedAt: now.Add(-24 * time.Hour),
	}); err != nil {
		return err
	}
	if _, err := waitlist.RedeemToken(ctx, token, devEmail); err != nil {
		return err
	}

	// A still-pending entry for exercising the admin approval flow.
	if err := waitlist.InsertEntry(ctx, &waitlistdomain.Entry{
		Email:     devPendingEmail,
		Status:    waitlistdomain.StatusPending,
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := notifications.Create(ctx, &notificationdomain.Notification{
		ID:        uuid.New().String(),
		ProfileID: devProfileID,
		Kind:      notificationdomain.KindEarlyAccessGranted,
		Body:      "Your early access is active. Welcome to Quillaborn!",
		CreatedAt: now,
	}); err != nil {
		return err
	}

	log.Println("seed: done")
	return nil
}
