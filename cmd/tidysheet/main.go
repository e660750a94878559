package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tidysheet/internal/config"
	"tidysheet/internal/inspect"
	"tidysheet/internal/logging"
	"tidysheet/internal/pipeline"
	"tidysheet/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Validate())

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = log.Sync() }()

	cmd := os.Args[1]
	switch cmd {
	case "inspect":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file")
		sheet := fs.String("sheet", "", "worksheet name")
		rng := fs.String("range", "", "cell range, e.g. A1:G20")
		_ = fs.Parse(os.Args[2:])
		requireFlag("input", *input)
		t, err := pipeline.LoadFile(*input, pipeline.LoadOptions{Sheet: *sheet, Range: *rng, NAValues: cfg.NAValues})
		must(err)
		inspect.RenderGlimpse(os.Stdout, t)
		inspect.RenderMissing(os.Stdout, t)
		inspect.RenderDescribe(os.Stdout, t)
		fmt.Printf("incomplete rows: %d\n", len(inspect.IncompleteRows(t)))
	case "validate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file")
		rulesPath := fs.String("rules", "", "YAML rule file")
		_ = fs.Parse(os.Args[2:])
		requireFlag("input", *input)
		requireFlag("rules", *rulesPath)
		t, err := pipeline.LoadFile(*input, pipeline.LoadOptions{NAValues: cfg.NAValues})
		must(err)
		rules, err := inspect.LoadRules(*rulesPath)
		must(err)
		violations, err := inspect.Validate(t, rules)
		must(err)
		if len(violations) == 0 {
			fmt.Printf("all %d rules pass\n", len(rules))
			return
		}
		inspect.RenderViolations(os.Stdout, violations)
		fmt.Printf("violations=%d\n", len(violations))
		os.Exit(2)
	case "similar":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file")
		column := fs.String("column", "", "text or category column")
		threshold := fs.Float64("threshold", cfg.SimilarityThreshold, "minimum Dice similarity")
		_ = fs.Parse(os.Args[2:])
		requireFlag("input", *input)
		requireFlag("column", *column)
		t, err := pipeline.LoadFile(*input, pipeline.LoadOptions{NAValues: cfg.NAValues})
		must(err)
		pairs, err := inspect.SimilarLevels(pipeline.CleanNames(t), *column, *threshold)
		must(err)
		inspect.RenderPairs(os.Stdout, pairs)
	case "convert":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file")
		out := fs.String("out", "", "output file (.csv|.tsv|.xlsx|.gob|.db)")
		sheet := fs.String("sheet", "", "worksheet name")
		rng := fs.String("range", "", "cell range")
		_ = fs.Parse(os.Args[2:])
		requireFlag("input", *input)
		requireFlag("out", *out)
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		svc := pipeline.NewService(db, cfg, log)
		t, err := svc.Convert(*input, *out, pipeline.LoadOptions{Sheet: *sheet, Range: *rng})
		must(err)
		fmt.Printf("converted rows=%d columns=%d output=%s\n", t.NumRows(), t.NumCols(), *out)
	case "clean:bp":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "blood-pressure workbook or delimited file")
		sheet := fs.String("sheet", "", "worksheet name")
		rng := fs.String("range", "", "cell range")
		outs := fs.String("out", "", "comma-separated output paths")
		studyDate := fs.String("study-date", cfg.StudyDate, "study date (YYYY-MM-DD)")
		_ = fs.Parse(os.Args[2:])
		requireFlag("input", *input)
		requireFlag("out", *outs)
		study, err := time.Parse("2006-01-02", *studyDate)
		must(err)
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		svc := pipeline.NewService(db, cfg, log)
		res, err := svc.CleanBloodPressure(pipeline.BPOptions{
			Input:     *input,
			Load:      pipeline.LoadOptions{Sheet: *sheet, Range: *rng},
			Outputs:   splitList(*outs),
			StudyDate: study,
		})
		must(err)
		for _, issue := range res.Issues {
			fmt.Fprintf(os.Stderr, "warning: %v\n", issue)
		}
		fmt.Printf("clean:bp done run=%s rows=%d issues=%d\n", res.RunID, res.Table.NumRows(), len(res.Issues))
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		var rows [][]string
		for _, r := range runs {
			rows = append(rows, []string{
				fmt.Sprint(r.ID), r.TraceID, r.Flow, r.Input, strings.Join(r.Outputs, ","),
				fmt.Sprint(r.Counts["rowsOut"]), fmt.Sprintf("%.1f", r.Timings["totalMs"]), r.CreatedAt.Format(time.RFC3339),
			})
		}
		inspect.Render(os.Stdout, []string{"id", "trace", "flow", "input", "outputs", "rows", "ms", "created"}, rows)
		tables, err := db.ListTables()
		must(err)
		if len(tables) > 0 {
			log.Debug("workspace tables", zap.Int("count", len(tables)))
			rows = rows[:0]
			for _, t := range tables {
				rows = append(rows, []string{t.Name, fmt.Sprint(t.Columns), fmt.Sprint(t.Rows), t.UpdatedAt})
			}
			inspect.Render(os.Stdout, []string{"table", "columns", "rows", "updated"}, rows)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requireFlag(name, value string) {
	if strings.TrimSpace(value) == "" {
		must(fmt.Errorf("--%s is required", name))
	}
}

func usage() {
	fmt.Println("usage: tidysheet <command>")
	fmt.Println("commands:")
	fmt.Println("  inspect --input=data.xlsx [--sheet=Sheet1 --range=A1:G20]")
	fmt.Println("  validate --input=data.csv --rules=rules.yaml")
	fmt.Println("  similar --input=data.csv --column=race [--threshold=0.8]")
	fmt.Println("  convert --input=data.xlsx --out=./out/data.csv")
	fmt.Println("  clean:bp --input=bp.xlsx --out=./out/bp.csv,./out/bp.xlsx [--study-date=2020-10-20]")
	fmt.Println("  runs [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
