// Command insightsctl runs single operations against the configured stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"SocialInsights/internal/app"
	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/logging"
	"SocialInsights/internal/usecase"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func usage() {
	fmt.Fprintln(os.Stderr, bold("usage: insightsctl <command> [flags]"))
	fmt.Fprintln(os.Stderr, "\n"+cyan("Commands:"))
	fmt.Fprintln(os.Stderr, "  report    generate the weekly report (current week by default)")
	fmt.Fprintln(os.Stderr, "  enrich    classify pending comments or posts")
	fmt.Fprintln(os.Stderr, "  targets   list, add, activate, deactivate or delete monitoring targets")
	fmt.Fprintln(os.Stderr, "  collect   scrape hashtags, or every active target with -targets")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logCfg := cfg.Logging
	if os.Getenv("LOG_LEVEL") == "" {
		logCfg.Level = "warn"
	}
	logger := logging.NewWithWriter(os.Stderr, logCfg)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
		os.Exit(1)
	}
	defer application.Close()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "report":
		err = runReport(ctx, application, args)
	case "enrich":
		err = runEnrich(ctx, application, args)
	case "targets":
		err = runTargets(ctx, application, args)
	case "collect":
		err = runCollect(ctx, application, cfg.Collection, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "%s unknown command: %s\n", red("✗"), cmd)
		usage()
		application.Close()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", red("✗"), cmd, err)
		application.Close()
		os.Exit(1)
	}
}

func runReport(ctx context.Context, a *app.Application, args []string) error {
	year, week := usecase.CurrentWeek(time.Now())
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	fs.IntVar(&year, "year", year, "report year")
	fs.IntVar(&week, "week", week, "week number (1-53)")
	_ = fs.Parse(args)

	r, err := a.Reporter.GenerateReport(ctx, year, week)
	if err != nil {
		return err
	}
	fmt.Printf("%s report %d-W%02d (%s to %s)\n", green("✓"), r.Year, r.WeekNumber,
		r.WeekStart.Format("2006-01-02"), r.WeekEnd.Format("2006-01-02"))
	fmt.Printf("  posts: %d  comments: %d\n", r.PostCount, r.CommentCount)
	fmt.Printf("  sentiment: %s (%d)  +%d =%d -%d\n", labelColor(r.SentimentLabel), int(r.SentimentScore),
		r.Breakdown.Positive, r.Breakdown.Neutral, r.Breakdown.Negative)
	if r.Summary != "" {
		fmt.Printf("  %s %s\n", cyan("summary:"), r.Summary)
	}
	return nil
}

func labelColor(l domain.SentimentLabel) string {
	switch l {
	case domain.Positive:
		return green(string(l))
	case domain.Negative:
		return red(string(l))
	default:
		return yellow(string(l))
	}
}

func runEnrich(ctx context.Context, a *app.Application, args []string) error {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)
	kindFlag := fs.String("kind", "comment", "entity kind: comment or post")
	batch := fs.Int("batch", 50, "batch size")
	_ = fs.Parse(args)

	kind, err := domain.ParseEnrichableKind(*kindFlag)
	if err != nil {
		return err
	}
	res, err := a.Enricher.EnrichSentiment(ctx, kind, *batch)
	if err != nil {
		return err
	}
	status := green("✓")
	if res.Failed > 0 {
		status = yellow("!")
	}
	fmt.Printf("%s %s sentiment: %d processed, %d failed\n", status, kind, res.Processed, res.Failed)
	fmt.Printf("  %s %d  %s %d  %s %d\n", green("positive"), res.Breakdown.Positive,
		yellow("neutral"), res.Breakdown.Neutral, red("negative"), res.Breakdown.Negative)
	return nil
}

func runTargets(ctx context.Context, a *app.Application, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("expected list, add, activate, deactivate or delete")
	}
	action, rest := args[0], args[1:]

	fs := flag.NewFlagSet("targets "+action, flag.ExitOnError)
	kindFlag := fs.String("kind", "hashtag", "target kind: hashtag, user or place")
	all := fs.Bool("all", false, "include inactive targets")
	priority := fs.Int("priority", domain.DefaultPriority, "priority for added targets (1 is highest)")
	notes := fs.String("notes", "", "notes for added targets")
	_ = fs.Parse(rest)

	kind, err := domain.ParseTargetKind(*kindFlag)
	if err != nil {
		return err
	}
	keys := fs.Args()

	switch action {
	case "list":
		ts, err := a.Targets.List(ctx, kind, *all)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d %s targets\n", cyan("•"), len(ts), kind)
		for _, t := range ts {
			state := green("active")
			if !t.IsActive {
				state = yellow("inactive")
			}
			last := "never"
			if t.LastScrapedAt != nil {
				last = t.LastScrapedAt.Format(time.RFC3339)
			}
			fmt.Printf("  [%d] %-30s %s  last scraped: %s\n", t.Priority, t.Key, state, last)
		}
		return nil
	case "add":
		if len(keys) == 0 {
			return fmt.Errorf("no keys given")
		}
		specs := make([]domain.TargetSpec, 0, len(keys))
		for _, k := range keys {
			specs = append(specs, domain.TargetSpec{Key: k})
		}
		res, err := a.Targets.Add(ctx, kind, specs, usecase.AddOptions{Priority: *priority, Notes: *notes})
		if err != nil {
			return err
		}
		fmt.Printf("%s %s targets: %d added, %d skipped\n", green("✓"), kind, res.Added, res.Skipped)
		return nil
	case "activate", "deactivate", "delete":
		if len(keys) == 0 {
			return fmt.Errorf("no keys given")
		}
		for _, k := range keys {
			var err error
			switch action {
			case "activate":
				_, err = a.Targets.Activate(ctx, kind, k)
			case "deactivate":
				_, err = a.Targets.Deactivate(ctx, kind, k)
			default:
				err = a.Targets.Delete(ctx, kind, k)
			}
			if err != nil {
				fmt.Printf("%s %s %s: %v\n", red("✗"), action, k, err)
				continue
			}
			fmt.Printf("%s %s %s\n", green("✓"), action, k)
		}
		return nil
	default:
		return fmt.Errorf("unknown targets action %q", action)
	}
}

func runCollect(ctx context.Context, a *app.Application, cfg config.CollectionConfig, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	hashtags := fs.String("hashtags", "", "comma-separated hashtags to scrape")
	limit := fs.Int("limit", 50, "posts per hashtag")
	targets := fs.Bool("targets", false, "collect every active target instead")
	_ = fs.Parse(args)

	if *targets {
		res, err := a.Collector.RunTargets(ctx, usecase.TargetRunRequest{
			PostsPerTarget:      cfg.PostsPerTarget,
			MaxPostsForComments: cfg.MaxPostsForComment,
			CommentsPerPost:     cfg.CommentsPerPost,
			UpdateMetadata:      true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s targets run: %d posts added, %d skipped, %d comments added\n", green("✓"),
			res.Posts.Added, res.Posts.Skipped, res.Comments.Comments.Added)
		for _, k := range res.SkippedKinds {
			fmt.Printf("  %s %s targets have no collection strategy\n", yellow("!"), k)
		}
		return nil
	}

	var tags []string
	for _, t := range strings.Split(*hashtags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	res, err := a.Collector.CollectHashtags(ctx, tags, *limit)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d added, %d skipped, %d dropped\n", green("✓"), strings.Join(res.Hashtags, ", "),
		res.Posts.Added, res.Posts.Skipped, res.Posts.Dropped)
	return nil
}
