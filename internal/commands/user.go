package commands

import (
	"context"
	"fmt"
	"gymbook/internal/domain"
	"gymbook/internal/service"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var (
	newUserRole        string
	newUserUsername    string
	newUserPassword    string
	newUserName        string
	newUserEmail       string
	newUserRating      float64
	newUserMaxVisitors int
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a visitor, trainer or manager",
	Example: `  gymctl user create --role manager --username boss --password 's3cret!!'
  gymctl user create --role visitor --username ann --password 'hunter22' --name "Ann Lee"`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
		accounts, err := e.accounts()
		if err != nil {
			return err
		}
		principal, err := accounts.Provision(ctx, service.NewAccount{
			Role:        domain.Role(newUserRole),
			Username:    newUserUsername,
			Password:    newUserPassword,
			Name:        newUserName,
			Email:       newUserEmail,
			Rating:      newUserRating,
			MaxVisitors: newUserMaxVisitors,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q with id %s\n", principal.Role, newUserUsername, principal.ID.Hex())
		return nil
	}),
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&newUserRole, "role", string(domain.RoleVisitor), "visitor, trainer or manager")
	f.StringVar(&newUserUsername, "username", "", "login name, unique across all roles")
	f.StringVar(&newUserPassword, "password", "", "initial password")
	f.StringVar(&newUserName, "name", "", "display name")
	f.StringVar(&newUserEmail, "email", "", "contact email")
	f.Float64Var(&newUserRating, "rating", 0, "trainer rating")
	f.IntVar(&newUserMaxVisitors, "max-visitors", 0, "trainer capacity hint")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
}
