package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timesage/timesage/internal/auth"
)

func loginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the account refresh token in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Print("Refresh token: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return fmt.Errorf("no token provided")
			}
			if err := auth.StoreRefreshToken(token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Println("Signed in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "refresh token (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.ClearRefreshToken(); err != nil {
				return fmt.Errorf("clear token: %w", err)
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}
