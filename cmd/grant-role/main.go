// Package main 按邮箱修改账号角色
//
// 用法：
//
//	grant-role --email someone@example.com [--role admin|expert|user]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/config"
	"mindcare/internal/shared/infra"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/shared/storage/dbutil"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "grant-role:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("grant-role", pflag.ContinueOnError)
	email := flagSet.String("email", "", "account email (required)")
	role := flagSet.String("role", string(model.RoleAdmin), "role to grant: admin, expert or user")
	configDir := flagSet.String("config", "", "directory containing {env}.yaml")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}
	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := infra.OpenStorage(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	account, err := grantRole(ctx, store, *email, model.Role(*role))
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s) is now %s\n", account.Email, account.ID, account.Role)
	return nil
}

// grantRole 修改角色并返回更新后的账号
func grantRole(ctx context.Context, accounts storage.AccountStore, email string, role model.Role) (*model.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	account, err := accounts.GetAccountByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("no account with email %s", email)
	}
	if account.Role == role {
		return account, nil
	}
	if err := accounts.UpdateAccount(ctx, account.ID, model.AccountUpdate{Role: &role}); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	account.Role = role
	return account, nil
}
