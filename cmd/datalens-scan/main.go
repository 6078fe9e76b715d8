// Command datalens-scan runs the extraction pipeline over one repository
// and commits the results to the knowledge base
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"datalens/internal/core/schema"
	"datalens/internal/modkit"
	"datalens/internal/modkit/module"
	"datalens/internal/platform/config"
	"datalens/internal/platform/logger"
	"datalens/internal/platform/store"

	factsmod "datalens/internal/services/facts/module"
	runsmod "datalens/internal/services/runs/module"
	samplesmod "datalens/internal/services/samples/module"
	scandom "datalens/internal/services/scan/domain"
	scanmod "datalens/internal/services/scan/module"
)

func main() {
	_ = godotenv.Load()

	var (
		repo       = flag.String("repo", ".", "path to the repository to scan")
		mode       = flag.String("mode", "incremental", "scan mode: incremental, full or integrity")
		since      = flag.String("since", "", "baseline commit sha override for incremental mode")
		policyPath = flag.String("policy", "", "explicit policy file (default <repo>/.datalens.yaml)")
		workers    = flag.Int("workers", 0, "extraction concurrency (default 4)")
	)
	flag.Parse()

	m, err := schema.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	l := logger.Get()

	chURL := chCfg.MayString("DBURL", "")
	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:    chURL != "",
			URL:        chURL,
			ClientName: "datalens",
			ClientTag:  "scan",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, Log: *l}

	rm := runsmod.New(deps)
	fm := factsmod.New(deps)

	ports := scandom.Ports{
		Runs:        module.MustPortsOf[runsmod.Ports](rm).Lifecycle,
		History:     module.MustPortsOf[runsmod.Ports](rm).Query,
		FactsWriter: module.MustPortsOf[factsmod.Ports](fm).Writer,
	}
	module.Register(rm.Name(), rm.Ports())
	module.Register(fm.Name(), fm.Ports())

	// sampling needs the sample store; without ClickHouse the run proceeds
	// scan-only
	if st.CH != nil {
		sm := samplesmod.New(deps)
		ports.Samples = module.MustPortsOf[samplesmod.Ports](sm).Writer
		module.Register(sm.Name(), sm.Ports())
	}

	sc := scanmod.New(deps, scanmod.Options{Workers: *workers}, modkit.WithPorts(ports))
	module.Register(sc.Name(), sc.Ports())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := module.MustPortsOf[scanmod.Ports](sc).Orchestrator.Run(ctx, scandom.Options{
		RepoPath:    *repo,
		Mode:        m,
		BaselineSHA: *since,
		PolicyPath:  *policyPath,
	})
	if err != nil {
		l.Error().Err(err).Msg("scan failed")
	}
	printSummary(run)

	// close before exiting; os.Exit skips defers
	if cerr := st.Close(context.Background()); cerr != nil {
		l.Error().Err(cerr).Msg("failed to close store")
	}
	os.Exit(run.ExitCode())
}

func printSummary(run schema.ScanRun) {
	fmt.Printf("run %s (%s) on %s@%s: %s\n", run.ID, run.Mode, run.Repository, short(run.CommitSHA), run.Status)
	fmt.Printf("  files scanned %d, skipped %d\n", run.FilesScanned, run.FilesSkipped)
	fmt.Printf("  facts added %d, retired %d, drifted %d\n", run.FactsAdded, run.FactsRetired, run.Drifted)
	fmt.Printf("  unresolved %d, low-confidence edges %d\n", run.Unresolved, run.LowConfEdges)
	if run.Status == schema.RunFailed {
		fmt.Printf("  failed at stage %s\n", run.FailedStage)
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
