package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvcrn/adboard/internal/auth"
	"github.com/spf13/cobra"
)

// readPassword takes the password from the flag, ADBOARD_PASSWORD, or the
// first line of stdin, in that order.
func readPassword(flag string, in io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("ADBOARD_PASSWORD"); env != "" {
		return env, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			resp, err := c.client.Login(cmd.Context(), auth.LoginRequest{
				UsernameOrEmail: username,
				Password:        pw,
			})
			if err != nil {
				return err
			}
			if resp.Member != nil {
				return c.print(resp.Member)
			}
			return c.print(map[string]string{"status": "logged in"})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (default: $ADBOARD_PASSWORD or stdin)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var req auth.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new member account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(req.Password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			req.Password = pw
			resp, err := c.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.print(resp.Member)
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.About, "about", "", "Short description")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password, at least 8 characters (default: $ADBOARD_PASSWORD or stdin)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.client.Logout(cmd.Context())
			return c.print(map[string]string{"status": "logged out"})
		},
	}
}

func (c *cli) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.client.RefreshStored(cmd.Context()); err != nil {
				return explain(err)
			}
			status, err := c.client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(status)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the session store holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := c.client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(status)
		},
	}
}
