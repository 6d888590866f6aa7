package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"accessgate/internal/database"
	"accessgate/internal/platform/audit"
	"accessgate/internal/platform/user"
	"accessgate/pkg/utils"
)

var (
	apiBaseURL string
	token      string
)

type ResponseError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

var apiServiceBase = func() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL).
		SetHeader("Accept", "application/json").
		SetAuthToken(token).
		SetTimeout(30 * time.Second).
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				if e, ok := resp.Error().(*ResponseError); ok && e.Message != "" {
					return fmt.Errorf("%s (%s)", e.Message, e.Code)
				}
				return fmt.Errorf("request failed with status %d", resp.StatusCode())
			}

			return nil
		})
}

func printUser(u *database.User) {
	fmt.Println("User ID   :", u.ID)
	fmt.Println("Email     :", u.Email)
	fmt.Println("Name      :", u.Name)
	fmt.Println("Admin     :", u.IsAdmin)
	fmt.Println("Active    :", u.IsActive)
	if u.ExpiryDate != nil {
		fmt.Println("Expires   :", u.ExpiryDate.Format(time.RFC3339))
	}
	if u.PhoneNumber != nil {
		fmt.Println("Phone     :", *u.PhoneNumber)
	}
	fmt.Println("Logins    :", u.LoginCount)
	if u.LastLogin != nil {
		fmt.Println("Last login:", u.LastLogin.Format(time.RFC3339))
	}
	if len(u.WebsitePermissions) > 0 {
		fmt.Println("\nWebsites")
		for _, p := range u.WebsitePermissions {
			fmt.Printf("  - %-30s access=%t\n", p.Website, p.HasAccess)
		}
	}
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and print a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("AG_PASSWORD")
		}

		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"email":    args[0],
				"password": password,
			}).
			SetResult(&user.AuthResult{}).
			Post("/auth/signin")
		if err != nil {
			return err
		}

		result := resp.Result().(*user.AuthResult)

		fmt.Println("Token      :", result.Token)
		fmt.Println("Expires at :", result.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var users []database.User
		_, err := apiServiceBase().R().
			SetResult(&users).
			Get("/admin/users")
		if err != nil {
			return err
		}

		for _, u := range users {
			fmt.Printf("%s  %-35s admin=%-5t active=%-5t websites=%d\n", u.ID, u.Email, u.IsAdmin, u.IsActive, len(u.WebsitePermissions))
		}
		return nil
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a new user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		admin, _ := cmd.Flags().GetBool("admin")
		password := utils.GenerateSecret(12)

		resp, err := apiServiceBase().R().
			SetBody(user.CreateUserInput{
				Email:    args[0],
				Password: password,
				Name:     name,
				IsAdmin:  admin,
			}).
			SetResult(&database.User{}).
			Post("/admin/users")
		if err != nil {
			return err
		}

		if resp.StatusCode() != 201 {
			fmt.Println("User already exists")
			return nil
		}

		printUser(resp.Result().(*database.User))
		fmt.Println("Password  :", password)
		return nil
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get <user_id>",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Get("/admin/users/" + args[0])
		if err != nil {
			return err
		}

		printUser(resp.Result().(*database.User))
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update <user_id>",
	Short: "Update a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input user.UpdateUserInput

		flags := cmd.Flags()
		if flags.Changed("name") {
			v, _ := flags.GetString("name")
			input.Name = &v
		}
		if flags.Changed("phone") {
			v, _ := flags.GetString("phone")
			input.PhoneNumber = &v
		}
		if flags.Changed("expiry") {
			v, _ := flags.GetString("expiry")
			if v == "" {
				input.ClearExpiryDate = true
			} else {
				t, err := time.Parse(time.DateOnly, v)
				if err != nil {
					return fmt.Errorf("invalid expiry date %q, expected YYYY-MM-DD", v)
				}
				input.ExpiryDate = &t
			}
		}

		var password string
		if reset, _ := flags.GetBool("reset-password"); reset {
			password = utils.GenerateSecret(12)
			input.Password = &password
		}

		resp, err := apiServiceBase().R().
			SetBody(input).
			SetResult(&database.User{}).
			Put("/admin/users/" + args[0])
		if err != nil {
			return err
		}

		printUser(resp.Result().(*database.User))
		if password != "" {
			fmt.Println("Password  :", password)
		}
		return nil
	},
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user_id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Modified int64 `json:"modified"`
			}

			_, err := apiServiceBase().R().
				SetBody(map[string]any{
					"user_ids":  args,
					"is_active": active,
				}).
				SetResult(&result).
				Post("/admin/users/bulk-active")
			if err != nil {
				return err
			}

			fmt.Printf("Modified %d of %d users\n", result.Modified, len(args))
			return nil
		},
	}
}

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Manage website permissions",
}

var permissionGrantCmd = &cobra.Command{
	Use:   "grant <user_id> <website>",
	Short: "Grant a user access to a website",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Put(fmt.Sprintf("/admin/users/%s/permissions/%s", args[0], args[1]))
		if err != nil {
			return err
		}

		printUser(resp.Result().(*database.User))
		return nil
	},
}

var permissionRevokeCmd = &cobra.Command{
	Use:   "revoke <user_id> <website>",
	Short: "Revoke a user's access to a website",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Delete(fmt.Sprintf("/admin/users/%s/permissions/%s", args[0], args[1]))
		if err != nil {
			return err
		}

		printUser(resp.Result().(*database.User))
		return nil
	},
}

var permissionSetCmd = &cobra.Command{
	Use:   "set <user_id> <website=true|false>...",
	Short: "Replace the full permission set of a user",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		permissions := make([]map[string]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			website, access, ok := strings.Cut(arg, "=")
			if !ok {
				return errors.New("permissions must be given as website=true|false")
			}
			hasAccess, err := strconv.ParseBool(access)
			if err != nil {
				return fmt.Errorf("invalid access flag for %s: %w", website, err)
			}
			permissions = append(permissions, map[string]any{
				"website":    website,
				"has_access": hasAccess,
			})
		}

		resp, err := apiServiceBase().R().
			SetBody(permissions).
			SetResult(&database.User{}).
			Put(fmt.Sprintf("/admin/users/%s/permissions", args[0]))
		if err != nil {
			return err
		}

		printUser(resp.Result().(*database.User))
		return nil
	},
}

var websiteCmd = &cobra.Command{
	Use:   "website",
	Short: "Inspect websites",
}

var websiteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every website with a permission entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		var websites []struct {
			Website string `json:"website"`
		}

		_, err := apiServiceBase().R().
			SetResult(&websites).
			Get("/admin/websites")
		if err != nil {
			return err
		}

		for _, w := range websites {
			fmt.Println(w.Website)
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditShowCmd = &cobra.Command{
	Use:   "show <user_id>",
	Short: "Show logins and cookie insertions of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiServiceBase().R().
			SetResult(&audit.History{}).
			Get(fmt.Sprintf("/admin/users/%s/audit", args[0]))
		if err != nil {
			return err
		}

		h := resp.Result().(*audit.History)

		fmt.Println("Logins               :", h.Stats.LoginCount)
		fmt.Println("Insertions           :", h.Stats.TotalInsertions)
		fmt.Println("Successful insertions:", h.Stats.SuccessfulInsertions)

		fmt.Println("\nRecent logins")
		for _, l := range h.Logins {
			fmt.Printf("  %s  %-15s %s\n", l.Timestamp.Format(time.RFC3339), l.IPAddress, l.ClientSignature)
		}

		fmt.Println("\nCookie insertions")
		for _, ci := range h.CookieInsertions {
			fmt.Printf("  %s  %-30s success=%t\n", ci.Timestamp.Format(time.RFC3339), ci.Website, ci.Success)
		}
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export <user_id>",
	Short: "Export the audit log of a user to the export bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Key string `json:"key"`
		}

		_, err := apiServiceBase().R().
			SetResult(&result).
			Post(fmt.Sprintf("/admin/users/%s/audit/export", args[0]))
		if err != nil {
			return err
		}

		fmt.Println("Exported to:", result.Key)
		return nil
	},
}

func main() {
	loginCmd.Flags().StringP("password", "p", "", "Password (defaults to $AG_PASSWORD)")

	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().Bool("admin", false, "Grant administrator rights")
	userUpdateCmd.Flags().String("name", "", "Display name")
	userUpdateCmd.Flags().String("phone", "", "Phone number")
	userUpdateCmd.Flags().String("expiry", "", "Account expiry date (YYYY-MM-DD, empty to clear)")
	userUpdateCmd.Flags().Bool("reset-password", false, "Generate a new password")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(setActiveCmd("activate", "Activate users", true))
	userCmd.AddCommand(setActiveCmd("deactivate", "Deactivate users", false))
	permissionCmd.AddCommand(permissionGrantCmd)
	permissionCmd.AddCommand(permissionRevokeCmd)
	permissionCmd.AddCommand(permissionSetCmd)
	websiteCmd.AddCommand(websiteListCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditExportCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(permissionCmd)
	rootCmd.AddCommand(websiteCmd)
	rootCmd.AddCommand(auditCmd)

	rootCmd.PersistentFlags().StringVarP(&apiBaseURL, "url", "u", envOr("AG_API_URL", "http://localhost:3000/api"), "API base URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("AG_TOKEN"), "Session token (defaults to $AG_TOKEN)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "accessgate",
	Short:        "accessgate admin CLI",
	SilenceUsage: true,
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
