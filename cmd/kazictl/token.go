package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/kazi-backend/internal/config"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Выпустить JWT для разработки",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.IsProduction() {
			return errors.New("выпуск токенов недоступен в production")
		}

		userID := uuid.New()
		if tokenUser != "" {
			if userID, err = uuid.Parse(tokenUser); err != nil {
				return fmt.Errorf("неверный --user: %w", err)
			}
		}
		switch tokenRole {
		case models.RoleAuthenticated, models.RoleAdmin, models.RoleServiceRole:
		default:
			return fmt.Errorf("неизвестная роль %q", tokenRole)
		}

		ttl := cfg.AccessTokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		token, expiresAt, err := service.NewTokenManager(cfg.JWTSecret, ttl).Issue(userID, tokenRole)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if output == "json" {
			return json.NewEncoder(w).Encode(map[string]any{
				"user_id":    userID,
				"role":       tokenRole,
				"token":      token,
				"expires_at": expiresAt,
			})
		}
		fmt.Fprintf(w, "user:    %s\nrole:    %s\nexpires: %s\n\n%s\n", userID, tokenRole, expiresAt.Format(time.RFC3339), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "UUID пользователя (по умолчанию случайный)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", models.RoleAuthenticated, "authenticated, admin или service_role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Срок жизни (по умолчанию ACCESS_TOKEN_TTL)")
}
