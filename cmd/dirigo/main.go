// Package main provides the main entry point for Dirigo
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dirigo-idm/dirigo/api"
	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/core"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/logger"
	"github.com/dirigo-idm/dirigo/pkg/metrics"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Version information (set by build process)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Command line flags
var (
	configFile  = flag.String("config", "", "Path to configuration file")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	showVersion = flag.Bool("version", false, "Show version information")
	apiMode     = flag.Bool("api", false, "Run in API server mode")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Dirigo %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.NewConsoleLogger(cfg.LogLevel)
	appLogger.Info("Starting Dirigo", map[string]interface{}{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})

	appMetrics := initializeMetrics(cfg)

	identityCore, err := core.NewIdentityCore(cfg, appLogger, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create identity core: %w", err)
	}

	if err := identityCore.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize identity core: %w", err)
	}
	defer func() {
		if closeErr := identityCore.Close(); closeErr != nil {
			appLogger.Error("Failed to close identity core", closeErr)
		}
	}()

	if *apiMode {
		return runAPIServer(ctx, identityCore, cfg, appLogger)
	}
	return runCLIMode(ctx, identityCore)
}

func loadConfig() (*config.CoreConfig, error) {
	cfg := config.NewCoreConfig()

	if *configFile != "" {
		ext := filepath.Ext(*configFile)
		switch ext {
		case ".json":
			if err := cfg.FromJSONFile(*configFile); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
		case ".yaml", ".yml":
			if err := cfg.FromYAMLFile(*configFile); err != nil {
				return nil, fmt.Errorf("failed to load YAML config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config file format: %s", ext)
		}
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if secret := os.Getenv("DIRIGO_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func initializeMetrics(cfg *config.CoreConfig) interfaces.Metrics {
	if !cfg.MetricsEnabled {
		return metrics.NewNoOpMetrics()
	}
	return metrics.NewDevMetrics()
}

func runAPIServer(ctx context.Context, identityCore *core.IdentityCore, cfg *config.CoreConfig, appLogger interfaces.Logger) error {
	appLogger.Info("Starting API server mode")

	server := api.NewServer(identityCore, identityCore.Operators(), cfg, appLogger)

	// Blocks until the context is cancelled
	return server.Start(ctx)
}

func runCLIMode(ctx context.Context, identityCore *core.IdentityCore) error {
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("no command specified, use --help for usage information")
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "activate":
		return executeActivateCommand(ctx, identityCore, commandArgs)
	case "deactivate":
		return executeDeactivateCommand(ctx, identityCore, commandArgs)
	case "status":
		return executeStatusCommand(ctx, identityCore, commandArgs)
	case "get":
		return executeGetCommand(ctx, identityCore, commandArgs)
	case "group":
		return executeGroupCommand(ctx, identityCore, commandArgs)
	case "trust":
		return executeTrustCommand(ctx, identityCore, commandArgs)
	case "operator":
		return executeOperatorCommand(ctx, identityCore, commandArgs)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func executeActivateCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("account name required")
	}

	request := &interfaces.ActivationRequest{
		UID: args[0],
	}
	if len(args) > 1 {
		uidNumber, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid uid number: %s", args[1])
		}
		request.UIDNumber = &uidNumber
	}

	account, err := identityCore.ActivateAccount(ctx, request)
	if err != nil {
		return fmt.Errorf("activation failed: %w", err)
	}

	fmt.Printf("Activated account: %s\n", account.UID)
	fmt.Printf("  uidNumber:     %d\n", account.UIDNumber)
	fmt.Printf("  gidNumber:     %d\n", account.GIDNumber)
	fmt.Printf("  homeDirectory: %s\n", account.HomeDirectory)
	fmt.Printf("  loginShell:    %s\n", account.LoginShell)
	return nil
}

func executeDeactivateCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("account name required")
	}

	if err := identityCore.DeactivateAccount(ctx, args[0], true); err != nil {
		return fmt.Errorf("deactivation failed: %w", err)
	}

	fmt.Printf("Deactivated account: %s\n", args[0])
	return nil
}

func executeStatusCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("account name required")
	}

	status, err := identityCore.AccountStatus(ctx, args[0])
	if err != nil {
		return fmt.Errorf("status lookup failed: %w", err)
	}

	fmt.Printf("%s: %s\n", args[0], status)
	return nil
}

func executeGetCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("account name required")
	}

	account, err := identityCore.GetAccount(ctx, args[0])
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	if account == nil {
		fmt.Printf("Account '%s' has no POSIX attributes\n", args[0])
		return nil
	}

	fmt.Printf("Account: %s\n", account.UID)
	fmt.Printf("  uidNumber:     %d\n", account.UIDNumber)
	fmt.Printf("  gidNumber:     %d\n", account.GIDNumber)
	fmt.Printf("  homeDirectory: %s\n", account.HomeDirectory)
	fmt.Printf("  loginShell:    %s\n", account.LoginShell)
	if account.GECOS != "" {
		fmt.Printf("  gecos:         %s\n", account.GECOS)
	}
	return nil
}

func executeGroupCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("group subcommand required (create, delete, get)")
	}

	subcommand := args[0]
	switch subcommand {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("group name required")
		}
		group, err := identityCore.CreateGroup(ctx, &interfaces.GroupCreateRequest{CN: args[1]})
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		fmt.Printf("Created group: %s (gidNumber %d)\n", group.CN, group.GIDNumber)
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("group name required")
		}
		deleted, err := identityCore.DeleteGroup(ctx, args[1])
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		if !deleted {
			fmt.Printf("Group '%s' was not deleted: missing or still has members\n", args[1])
			return nil
		}
		fmt.Printf("Deleted group: %s\n", args[1])
		return nil
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("group name required")
		}
		group, err := identityCore.GetGroup(ctx, args[1])
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
		if group == nil {
			fmt.Printf("Group '%s' not found\n", args[1])
			return nil
		}
		fmt.Printf("Group: %s (gidNumber %d)\n", group.CN, group.GIDNumber)
		for _, member := range group.MemberUIDs {
			fmt.Printf("  member: %s\n", member)
		}
		return nil
	default:
		return fmt.Errorf("unknown group subcommand: %s", subcommand)
	}
}

func executeTrustCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: trust <uid> <mode> [host ...]")
	}

	uid := args[0]
	mode := types.TrustMode(args[1])
	hosts := args[2:]

	if err := identityCore.SetUserTrust(ctx, uid, mode, hosts); err != nil {
		return fmt.Errorf("failed to set trust: %w", err)
	}

	fmt.Printf("Trust scope on '%s' set to %s\n", uid, mode)
	return nil
}

func executeOperatorCommand(ctx context.Context, identityCore *core.IdentityCore, args []string) error {
	manager := identityCore.Operators()
	if manager == nil {
		return fmt.Errorf("operator management is disabled (no JWT secret configured)")
	}

	if len(args) == 0 {
		return fmt.Errorf("operator subcommand required (create)")
	}

	subcommand := args[0]
	switch subcommand {
	case "create":
		if len(args) < 4 {
			return fmt.Errorf("usage: operator create <username> <email> <password> [role]")
		}
		role := string(types.RoleOperator)
		if len(args) > 4 {
			role = args[4]
		}
		operator, err := manager.CreateOperator(ctx, args[1], args[2], args[3], types.OperatorRole(role))
		if err != nil {
			return fmt.Errorf("failed to create operator: %w", err)
		}
		fmt.Printf("Created operator: %s (ID: %s, role: %s)\n", operator.Username, operator.OperatorID, operator.Role)
		return nil
	default:
		return fmt.Errorf("unknown operator subcommand: %s", subcommand)
	}
}
