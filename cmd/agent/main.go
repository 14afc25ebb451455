package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/dmitrijs2005/cardsync/internal/agent"
	"github.com/dmitrijs2005/cardsync/internal/agent/config"
	"github.com/dmitrijs2005/cardsync/internal/flagx"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if hasSetupFlag() {
		if err := runSetup(); err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	app, err := agent.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func hasSetupFlag() bool {
	var setup bool
	args := flagx.FilterArgs(os.Args[1:], []string{"-setup"})
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	fs.BoolVar(&setup, "setup", false, "prompt for the endpoint password and print the export line")
	_ = fs.Parse(args)
	return setup
}

// runSetup prompts for the endpoint password without echoing it and stores
// it in the JSON config named by -c/-config, creating the file if needed.
// Without a config file it prints the environment line to paste into the
// service unit instead, so the password never lands in shell history.
func runSetup() error {
	fmt.Println("Enter endpoint password")
	password, err := readPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	configFile := flagx.JsonConfigFlags()
	if configFile == "" {
		fmt.Printf("CARDSYNC_ENDPOINT_PASSWORD=%s\n", string(password))
		return nil
	}

	values := make(map[string]any)
	if data, err := os.ReadFile(configFile); err == nil {
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parse config %s: %w", configFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", configFile, err)
	}
	values["endpoint_password"] = string(password)

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", configFile, err)
	}
	fmt.Printf("Password stored in %s\n", configFile)
	return nil
}
