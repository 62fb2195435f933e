package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/goodtune/endolog/internal/auth"
	"github.com/goodtune/endolog/internal/config"
	"github.com/goodtune/endolog/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	usersActAs       string
	usersActPassword string
	usersRole        string
	usersNewPassword string
	usersOldPassword string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
	Long: `Manage Endolog user accounts. Mutating subcommands act under the
credentials given with --as and --password; the acting account needs the
user management permission (admin role).`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Create an account",
	Example: `  endolog users add tech1 --role user --new-password s3cret --as admin --password admin123`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersAdd,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove USERNAME",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

var usersPasswdCmd = &cobra.Command{
	Use:   "passwd USERNAME",
	Short: "Change a password (requires the old password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersPasswd,
}

var usersResetCmd = &cobra.Command{
	Use:   "reset USERNAME",
	Short: "Reset a password without the old one (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersReset,
}

var usersToggleCmd = &cobra.Command{
	Use:   "toggle USERNAME",
	Short: "Enable or disable an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersToggle,
}

func init() {
	usersCmd.PersistentFlags().StringVar(&usersActAs, "as", "", "Account to act as")
	usersCmd.PersistentFlags().StringVar(&usersActPassword, "password", "", "Password of the acting account")

	usersAddCmd.Flags().StringVar(&usersRole, "role", "user", "Role for the new account (guest, user, admin)")
	usersAddCmd.Flags().StringVar(&usersNewPassword, "new-password", "", "Password for the new account")
	usersPasswdCmd.Flags().StringVar(&usersOldPassword, "old-password", "", "Current password of the target account")
	usersPasswdCmd.Flags().StringVar(&usersNewPassword, "new-password", "", "New password")
	usersResetCmd.Flags().StringVar(&usersNewPassword, "new-password", "", "New password")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersRemoveCmd)
	usersCmd.AddCommand(usersPasswdCmd)
	usersCmd.AddCommand(usersResetCmd)
	usersCmd.AddCommand(usersToggleCmd)
	rootCmd.AddCommand(usersCmd)
}

// openAuthority loads configuration, opens storage, and logs in the acting
// account. The caller must close the returned store.
func openAuthority(ctx context.Context) (*auth.Authority, storage.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Quiet logger for CLI mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := auth.EnsureDefaultAccounts(ctx, store.Accounts(), logger); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to seed default accounts: %w", err)
	}

	authority := auth.New(store.Accounts(), auth.Config{
		SessionTimeout: cfg.SessionTimeout(),
	}, nil, logger)

	if usersActAs == "" {
		store.Close()
		return nil, nil, fmt.Errorf("--as is required for this command")
	}
	if !authority.Login(ctx, usersActAs, usersActPassword) {
		store.Close()
		return nil, nil, fmt.Errorf("login failed for %q", usersActAs)
	}

	return authority, store, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	accounts, err := store.Accounts().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tSTATUS\tLAST LOGIN")
	for _, account := range accounts {
		status := green.Sprint("active")
		if !account.Active {
			status = red.Sprint("disabled")
		}
		lastLogin := "never"
		if account.LastLogin != nil {
			lastLogin = account.LastLogin.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", account.Username, account.Role, status, lastLogin)
	}
	return w.Flush()
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	username := args[0]

	if usersNewPassword == "" {
		return fmt.Errorf("--new-password is required")
	}

	authority, store, err := openAuthority(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := authority.AddUser(ctx, username, usersNewPassword, auth.ParseRole(usersRole)); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	color.New(color.FgGreen).Printf("✅ Account %q created with role %s\n", username, usersRole)
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	username := args[0]

	authority, store, err := openAuthority(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := authority.RemoveUser(ctx, username); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	color.New(color.FgGreen).Printf("✅ Account %q removed\n", username)
	return nil
}

func runUsersPasswd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	username := args[0]

	if usersNewPassword == "" {
		return fmt.Errorf("--new-password is required")
	}

	authority, store, err := openAuthority(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := authority.ChangePassword(ctx, username, usersOldPassword, usersNewPassword); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	color.New(color.FgGreen).Printf("✅ Password changed for %q\n", username)
	return nil
}

func runUsersReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	username := args[0]

	if usersNewPassword == "" {
		return fmt.Errorf("--new-password is required")
	}

	authority, store, err := openAuthority(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := authority.ResetPassword(ctx, username, usersNewPassword); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	color.New(color.FgGreen).Printf("✅ Password reset for %q\n", username)
	return nil
}

func runUsersToggle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	username := args[0]

	authority, store, err := openAuthority(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := authority.ToggleActive(ctx, username); err != nil {
		return fmt.Errorf("failed to toggle account: %w", err)
	}

	account, err := store.Accounts().Get(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to read back account: %w", err)
	}

	if account.Active {
		color.New(color.FgGreen).Printf("✅ Account %q enabled\n", username)
	} else {
		color.New(color.FgYellow).Printf("⚠️  Account %q disabled\n", username)
	}
	return nil
}
