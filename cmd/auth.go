package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// loginCmd 登录并持久化 token
var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and persist the access token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		password, err := readPassword("Password: ")
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		user, err := app.session.Login(ctx, args[0], password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		fmt.Printf("Signed in as %s <%s>\n", user.Username, user.Email)
	},
}

// registerCmd 注册账号
var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		password, err := readPassword("Password: ")
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		if password != confirm {
			log.Fatal("Passwords do not match")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.session.Register(ctx, args[0], args[1], password); err != nil {
			log.Fatalf("Registration failed: %v", err)
		}
		fmt.Println("Account created. Run 'album-client login' to sign in.")
	},
}

// logoutCmd 清除本地会话
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		app.session.Logout()
		fmt.Println("Signed out.")
	},
}

// whoamiCmd 显示当前会话状态
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.session.Restore(ctx); err != nil {
			log.Fatalf("Failed to restore session: %v", err)
		}

		sess := app.session.Current()
		switch {
		case sess.IsAuthenticated:
			fmt.Printf("Signed in as %s <%s>\n", sess.User.Username, sess.User.Email)
			if expiry, ok := app.session.TokenExpiry(); ok {
				fmt.Printf("Token expires at %s\n", expiry.Local().Format(time.RFC1123))
			}
		case sess.IsInvitedMode:
			fmt.Printf("Invited mode (shared album %s). Sign in for full access.\n", sess.InvitedAlbum)
		default:
			fmt.Println("Not signed in.")
		}
	},
}

// readPassword 从终端读取密码；非终端输入退回逐行读取
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		data, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
