package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmaster/todos/cmd/api/commands"
)

// @title Todo API
// @version 1.0
// @description Multi-tenant todo service with role-based access

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:           "todos",
		Short:         "Todo API server",
		Long:          `Multi-tenant todo service: accounts with member and admin roles, per-owner todos, paginated search.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
