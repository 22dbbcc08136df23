package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/quickchat/qc/internal/app"
	"github.com/quickchat/qc/internal/identity"
	"github.com/quickchat/qc/internal/session"
	"github.com/quickchat/qc/internal/tui"
)

func main() {
	_ = godotenv.Load()

	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if flag.Arg(0) == "login" {
		if err := runLogin(sessionName, flag.Args()[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var ui *tui.App
	fxApp := fx.New(
		app.Module(app.Params{SessionName: sessionName}),
		fx.Populate(&ui),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

// runLogin records who this session belongs to. Authentication itself
// happens elsewhere; the client only needs the resulting identity.
func runLogin(sessionName string, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	id := fs.String("id", "", "user id")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	avatar := fs.String("avatar", "", "avatar URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *email == "" {
		return fmt.Errorf("login requires --id and --email")
	}

	p := identity.Profile{ID: *id, Name: *name, Email: *email, AvatarURL: *avatar}
	if err := identity.SaveProfile(sessionName, p); err != nil {
		return err
	}
	fmt.Printf("session %q now belongs to %s (%s)\n", sessionName, p.Name, p.Email)
	return nil
}
