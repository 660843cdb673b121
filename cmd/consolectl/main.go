package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/campus-admin-console/internal/repository"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/service"
	"github.com/noah-isme/campus-admin-console/pkg/config"
	"github.com/noah-isme/campus-admin-console/pkg/logger"
)

const usage = `usage: consolectl <command> [flags]

commands:
  entities                          list managed entities
  list <entity>                     list records (-search, -page, -page-size)
  create <entity> -set k=v ...      create a record
  update <entity> <id> -set k=v ... update a record
  delete <entity> <id>              delete a record
  activate <entity> <id>            activate a record
  deactivate <entity> <id>          deactivate a record

The bearer token is read from CONSOLE_TOKEN or prompted for.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.NewCLI(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	if cmd == "entities" {
		printEntities(os.Stdout, schema.Default())
		return
	}

	token, err := readToken(os.Stdin, os.Stderr)
	if err != nil {
		logr.Fatal("no token", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	sessions := service.NewSessionService(repository.NewMemorySessionRepository(), metrics, service.SessionConfig{}, logr)
	session, err := sessions.Login(ctx, token)
	if err != nil {
		logr.Fatal("login failed", zap.Error(err))
	}
	workspaces := service.NewWorkspaceService(schema.Default(), sessions, nil, metrics, service.WorkspaceConfig{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		DefaultPageSize: cfg.Console.DefaultPageSize,
		MaxPageSize:     cfg.Console.MaxPageSize,
	}, logr)
	defer workspaces.Release(session.ID)

	runner := &runner{workspaces: workspaces, session: session, out: os.Stdout}
	if err := runner.run(ctx, cmd, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// readToken prefers CONSOLE_TOKEN and falls back to an unechoed prompt on a terminal.
func readToken(in *os.File, prompt io.Writer) (string, error) {
	if token := strings.TrimSpace(os.Getenv("CONSOLE_TOKEN")); token != "" {
		return token, nil
	}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Bearer token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return nonEmpty(string(raw))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return nonEmpty(line)
}

func nonEmpty(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return "", errors.New("token is empty")
	}
	return token, nil
}
