package main

import (
	"fmt"

	"tip-ledger/internal/handlers"

	"github.com/urfave/cli/v2"
)

var _FlagTOTPAccount = &cli.StringFlag{
	Name:  "account",
	Usage: "account name shown in the authenticator app",
	Value: "owner",
}

var TOTPSecretCommand = &cli.Command{
	Name:  "totp-secret",
	Usage: "generates a TOTP secret for the owner login",
	Flags: []cli.Flag{
		_FlagTOTPAccount,
	},
	Action: func(ctx *cli.Context) error {
		key, err := handlers.GenerateTOTPKey(ctx.String("account"))
		if err != nil {
			return err
		}
		fmt.Println("============================================================")
		fmt.Println("Owner TOTP secret")
		fmt.Println("============================================================")
		fmt.Printf("Secret: %s\n", key.Secret())
		fmt.Printf("URL:    %s\n", key.URL())
		fmt.Println()
		fmt.Println("Set auth.totp_secret (or OWNER_TOTP_SECRET) to the secret above.")
		return nil
	},
}
