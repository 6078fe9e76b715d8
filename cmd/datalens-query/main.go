// Command datalens-query reads the knowledge base from the command line
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"datalens/internal/core/schema"
	"datalens/internal/modkit"
	"datalens/internal/modkit/module"
	"datalens/internal/platform/config"
	"datalens/internal/platform/logger"
	"datalens/internal/platform/store"

	factsdomain "datalens/internal/services/facts/domain"
	factsmod "datalens/internal/services/facts/module"
	runsdomain "datalens/internal/services/runs/domain"
	runsmod "datalens/internal/services/runs/module"
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: datalens-query <command> [flags]

commands:
  search <query>     ranked search over records, operations and collections
  get-type <symbol>  newest record shape with collection binding and deep link
  runs               recent scan runs with counters

run "datalens-query <command> -h" for the command's flags
`)
	os.Exit(2)
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		usage()
	}

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:  true,
			URL:      pgCfg.MustString("DBURL"),
			MaxConns: int32(pgCfg.MayInt("MAX_CONNS", 2)),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() { _ = st.Close(context.Background()) }()

	deps := modkit.Deps{Cfg: root, PG: st.PG, Log: *l}
	facts := module.MustPortsOf[factsmod.Ports](factsmod.New(deps)).Query
	runs := module.MustPortsOf[runsmod.Ports](runsmod.New(deps)).Query

	ctx := context.Background()
	switch os.Args[1] {
	case "search":
		cmdSearch(ctx, facts, os.Args[2:])
	case "get-type":
		cmdGetType(ctx, facts, os.Args[2:])
	case "runs":
		cmdRuns(ctx, runs, os.Args[2:])
	default:
		usage()
	}
}

func cmdSearch(ctx context.Context, kb factsdomain.QueryPort, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max hits")
	asJSON := fs.Bool("json", false, "print raw JSON")
	_ = fs.Parse(args)

	q := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if q == "" {
		fatal("search needs a query")
	}
	hits, err := kb.Search(ctx, q, *limit)
	if err != nil {
		fatalErr(err)
	}
	if *asJSON {
		dumpJSON(hits)
		return
	}
	if len(hits) == 0 {
		fmt.Println("no matches")
		return
	}
	for i, h := range hits {
		fmt.Printf("%2d. %-28s %-12s %s/%s:%d\n", i+1, h.SymbolName, h.Kind, h.Repository, h.FilePath, h.StartLine)
		switch {
		case h.Collection != "":
			fmt.Printf("    collection %s (%.2f via %s)\n", h.Collection, h.Confidence, h.Method)
		case h.Kind.Operation():
			fmt.Println("    collection unresolved")
		}
	}
}

func cmdGetType(ctx context.Context, kb factsdomain.QueryPort, args []string) {
	fs := flag.NewFlagSet("get-type", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print raw JSON")
	_ = fs.Parse(args)

	symbol := strings.TrimSpace(fs.Arg(0))
	if symbol == "" {
		fatal("get-type needs a symbol name")
	}
	det, err := kb.GetType(ctx, symbol)
	if err != nil {
		fatalErr(err)
	}
	if *asJSON {
		dumpJSON(det)
		return
	}

	rec := det.Record
	fmt.Printf("%s  (%s/%s:%d-%d)\n",
		rec.SymbolName, rec.Provenance.Repository, rec.Provenance.FilePath,
		rec.Provenance.StartLine, rec.Provenance.EndLine)
	if det.Collection != "" {
		fmt.Printf("collection: %s (confidence %.2f)\n", det.Collection, det.Confidence)
	} else {
		fmt.Println("collection: unresolved")
	}
	if rec.Annotation != "" {
		fmt.Printf("annotation: %s\n", rec.Annotation)
	}
	fmt.Println("fields:")
	for _, f := range rec.Fields {
		null := ""
		if f.Nullable {
			null = "  nullable"
		}
		fmt.Printf("  %-24s %s%s\n", f.Name, f.DeclaredType, null)
	}
	fmt.Printf("link: %s\n", det.DeepLink)
}

func cmdRuns(ctx context.Context, q runsdomain.QueryPort, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	repo := fs.String("repo", "", "filter to one repository")
	limit := fs.Int("limit", 20, "max runs")
	asJSON := fs.Bool("json", false, "print raw JSON")
	_ = fs.Parse(args)

	rows, err := q.List(ctx, strings.TrimSpace(*repo), *limit)
	if err != nil {
		fatalErr(err)
	}
	if *asJSON {
		dumpJSON(rows)
		return
	}
	if len(rows) == 0 {
		fmt.Println("no runs recorded")
		return
	}
	for _, r := range rows {
		fmt.Printf("%s  %s  %-11s %-7s files %d/%d  facts +%d/-%d  unresolved %d\n",
			r.StartedAt.UTC().Format("2006-01-02 15:04"), r.ID, r.Mode, r.Status,
			r.FilesScanned, r.FilesSkipped, r.FactsAdded, r.FactsRetired, r.Unresolved)
		if r.Status == schema.RunFailed {
			fmt.Printf("    failed at %s\n", r.FailedStage)
		}
	}
}

func dumpJSON(v any) {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalErr(err)
	}
	fmt.Println(string(enc))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(2)
}

func fatalErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
