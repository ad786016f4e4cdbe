package main

import (
	"complaints/backend/internal/auth"
	"complaints/backend/internal/complaint"
	"complaints/backend/internal/config"
	"complaints/backend/internal/models"
	"complaints/backend/internal/storage"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var cfg config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Maintenance commands for the complaints backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		cfg, err = config.Load()
		return err
	},
	SilenceUsage: true,
}

// openStorage connects to PostgreSQL only. No Redis is needed here.
func openStorage() (*storage.Service, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return storage.NewStorageService(db, nil), nil
}

var unlockExpiredCmd = &cobra.Command{
	Use:   "unlock-expired",
	Short: "Release every expired claim on in_progress complaints",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage()
		if err != nil {
			return err
		}
		svc := complaint.NewService(complaint.Dependencies{Storage: s}, complaint.DefaultOptions())

		count, err := svc.UnlockExpiredComplaints(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Unlocked %d expired complaint(s).\n", count)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <tracking-number>",
	Short: "Print a complaint as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage()
		if err != nil {
			return err
		}
		c, err := s.FindComplaintByTrackingNumber(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("complaint %s not found", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStorage()
		if err != nil {
			return err
		}
		user, err := s.GetUserByID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("user %s: %w", args[0], err)
		}
		token, err := auth.NewTokenService(cfg.JWTSecret, config.DefaultTokenTTL).GenerateToken(user.ID, string(user.Role))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var (
	entityName   string
	entityNameAr string
	entityType   string
)

var createEntityCmd = &cobra.Command{
	Use:   "create-entity",
	Short: "Create a government entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if entityName == "" {
			return fmt.Errorf("--name is required")
		}
		s, err := openStorage()
		if err != nil {
			return err
		}
		e := &models.Entity{Name: entityName, NameAr: entityNameAr, Type: entityType}
		if err := s.SaveEntity(cmd.Context(), e); err != nil {
			return err
		}
		fmt.Printf("Entity %s created: %s\n", e.Name, e.ID)
		return nil
	},
}

var (
	userEmail    string
	userFullName string
	userRole     string
	userEntity   string
	userLanguage string
	userChatID   int64
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a citizen, employee or admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.UserRole(userRole)
		switch role {
		case models.RoleCitizen, models.RoleAdmin:
		case models.RoleEmployee:
			if userEntity == "" {
				return fmt.Errorf("employees need --entity")
			}
		default:
			return fmt.Errorf("unknown role %q", userRole)
		}
		if userEmail == "" {
			return fmt.Errorf("--email is required")
		}

		s, err := openStorage()
		if err != nil {
			return err
		}
		u := &models.User{
			Email:          userEmail,
			FullName:       userFullName,
			Role:           role,
			Language:       userLanguage,
			TelegramChatID: userChatID,
			IsActive:       true,
		}
		if userEntity != "" {
			if _, err := s.GetEntityByID(cmd.Context(), userEntity); err != nil {
				return fmt.Errorf("entity %s: %w", userEntity, err)
			}
			u.EntityID = &userEntity
		}
		if err := s.SaveUser(cmd.Context(), u); err != nil {
			return err
		}
		fmt.Printf("User %s created: %s\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	createEntityCmd.Flags().StringVar(&entityName, "name", "", "entity name")
	createEntityCmd.Flags().StringVar(&entityNameAr, "name-ar", "", "entity name in Arabic")
	createEntityCmd.Flags().StringVar(&entityType, "type", "", "entity type, e.g. ministry")

	createUserCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	createUserCmd.Flags().StringVar(&userFullName, "name", "", "full name")
	createUserCmd.Flags().StringVar(&userRole, "role", string(models.RoleCitizen), "citizen, employee or admin")
	createUserCmd.Flags().StringVar(&userEntity, "entity", "", "entity id (employees)")
	createUserCmd.Flags().StringVar(&userLanguage, "language", "en", "notification language")
	createUserCmd.Flags().Int64Var(&userChatID, "telegram-chat-id", 0, "Telegram chat id for notifications")

	rootCmd.AddCommand(unlockExpiredCmd, showCmd, tokenCmd, createEntityCmd, createUserCmd)
}
