package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/4thel00z/barwatch/internal"
	"github.com/charmbracelet/fang"
	"go.uber.org/zap"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	if tryExternalCommand(ctx) {
		return
	}

	rootCmd := NewRootCmd(version, &app{})
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "barwatch %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

// app holds the services every subcommand reaches through a getter. It is
// filled in by the root command once the logger exists.
type app struct {
	logger   *zap.Logger
	resolver *internal.ScopeResolver

	initUC     *internal.InitUseCase
	runUC      *internal.RunUseCase
	validateUC *internal.ValidateUseCase
	commitUC   *internal.CommitUseCase
	logUC      *internal.LogUseCase

	historySvc  *internal.HistoryService
	memorySvc   *internal.MemoryService
	statusSvc   *internal.StatusService
	bankSvc     *internal.BankService
	newsSvc     *internal.NewsService
	postsSvc    *internal.PostsService
	healthSvc   *internal.HealthService
	providerSvc *internal.ProviderService
}

func (a *app) setup(logger *zap.Logger) {
	resolver := internal.NewScopeResolver()

	histFor := func(scope internal.Scope) (internal.HistoryRepository, error) {
		return internal.NewStateRepository(scope)
	}
	storeFor := func(scope internal.Scope) *internal.MemoryStore {
		var history internal.HistoryRepository
		if repo, err := internal.NewStateRepository(scope); err == nil {
			history = repo
		}
		return internal.NewMemoryStore(scope.MemoryPath(), history, logger)
	}

	a.logger = logger
	a.resolver = resolver

	a.initUC = internal.NewInitUseCase(resolver)
	a.runUC = internal.NewRunUseCase(resolver, logger)
	a.validateUC = internal.NewValidateUseCase(resolver)
	a.commitUC = internal.NewCommitUseCase(resolver, histFor)
	a.logUC = internal.NewLogUseCase(resolver, histFor)

	a.historySvc = internal.NewHistoryService(resolver, histFor)
	a.memorySvc = internal.NewMemoryService(resolver, storeFor)
	a.statusSvc = internal.NewStatusService(resolver)
	a.bankSvc = internal.NewBankService(resolver)
	a.newsSvc = internal.NewNewsService(resolver, &http.Client{Timeout: 30 * time.Second}, logger)
	a.postsSvc = internal.NewPostsService(resolver)
	a.healthSvc = internal.NewHealthService(resolver, logger)
	a.providerSvc = internal.NewProviderService(resolver)
}
