package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/sheikh-saqib/deskbank/internal/app"
	"github.com/sheikh-saqib/deskbank/internal/config"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app.App, args []string) (any, error)
}

var commands = map[string]command{
	"register":           {"-username U -password P [-email E] [-name N]", register},
	"create-manager":     {"-token T -username U -password P [-email E] [-name N] [-employee-id ID] [-department D]", createManager},
	"login":              {"-username U -password P", login},
	"open-account":       {"-token T -type Savings|Checking|Business [-initial AMOUNT]", openAccount},
	"accounts":           {"-token T", listAccounts},
	"deposit":            {"-token T -account N -amount AMOUNT [-description D]", deposit},
	"withdraw":           {"-token T -account N -amount AMOUNT [-description D]", withdraw},
	"transfer":           {"-token T -from N -to N -amount AMOUNT [-description D]", transfer},
	"balance":            {"-token T -account N", balance},
	"history":            {"-token T -account N [-limit L]", history},
	"daily-limit":        {"-token T -account N -amount AMOUNT", dailyLimit},
	"summary":            {"-token T", summary},
	"stats":              {"-token T", stats},
	"search":             {"-token T -term TERM", search},
	"deactivate-account": {"-token T -account N", deactivateAccount},
	"activate-account":   {"-token T -account N", activateAccount},
	"close-account":      {"-token T -account N", closeAccount},
	"delete-customer":    {"-token T -customer ID", deleteCustomer},
	"change-password":    {"-token T -old P -new P", changePassword},
	"backup":             {"-token T [-name NAME]", createBackup},
	"backups":            {"-token T", listBackups},
	"verify-backup":      {"-token T -file PATH", verifyBackup},
	"restore":            {"-token T -file PATH", restoreBackup},
}

func main() {
	loadLocalEnv()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Printf("Error: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("load data: %v", err)
	}

	result, runErr := cmd.run(ctx, a, os.Args[2:])
	if err := a.Close(ctx); err != nil {
		log.Printf("close: %v", err)
	}
	if runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("%s: %v", os.Args[1], runErr)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(output))
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("usage: deskbank <command> [flags]")
	for _, name := range names {
		fmt.Printf("  %-19s %s\n", name, commands[name].usage)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
