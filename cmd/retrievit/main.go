// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/retrievit"
	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/ai/openai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/fusion"
	"github.com/poiesic/retrievit/search"
)

func main() {
	app := &cli.App{
		Name:  "retrievit",
		Usage: "Hybrid sparse/dense retrieval engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Index documents from a file, one document per line",
				Action: indexCommand,
				Flags: append(dbFlags(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the input file",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "append",
						Usage: "Append to the existing namespace instead of replacing it",
					},
				),
			},
			{
				Name:   "search",
				Usage:  "Search a namespace; the query is the remaining arguments",
				Action: searchCommand,
				Flags: append(dbFlags(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
						Value:   search.DefaultTopK,
					},
					&cli.BoolFlag{
						Name:  "hybrid",
						Usage: "Fuse dense vector results with the sparse ranking",
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "Fusion method (rrf or weighted)",
						Value: string(fusion.MethodRRF),
					},
					&cli.Float64Flag{
						Name:  "alpha",
						Usage: "Dense-side weight in [0, 1]",
						Value: fusion.DefaultAlpha,
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rerank fused candidates with the relevance scorer",
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show document count and average length for a namespace",
				Action: statsCommand,
				Flags:  dbFlags(),
			},
			{
				Name:   "namespaces",
				Usage:  "List namespaces with a persisted index",
				Action: namespacesCommand,
				Flags:  storeFlags(),
			},
			{
				Name:   "delete",
				Usage:  "Delete a namespace's persisted index",
				Action: deleteCommand,
				Flags:  dbFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name; enables the dense leg",
		},
		&cli.StringFlag{
			Name:  "scorer-host",
			Usage: "Relevance scoring service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "scorer-model",
			Usage: "Relevance scoring model name; enables reranking",
		},
	}
}

func dbFlags() []cli.Flag {
	return append(storeFlags(),
		&cli.StringFlag{
			Name:     "namespace",
			Aliases:  []string{"n"},
			Usage:    "Target namespace",
			Required: true,
		},
	)
}

// openEngine builds an engine from the command's flags, wiring the dense leg
// and the scorer only when their models are named.
func openEngine(c *cli.Context) (*retrievit.Engine, error) {
	var opts []retrievit.Option

	if model := c.String("embedding-model"); model != "" {
		embedder, err := openai.NewEmbedder(ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(model),
		))
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		opts = append(opts, retrievit.WithEmbedder(embedder))
	}
	if model := c.String("scorer-model"); model != "" {
		scorer, err := openai.NewScorer(ai.NewConfig(
			ai.WithScorerHost(c.String("scorer-host")),
			ai.WithScorerModel(model),
		))
		if err != nil {
			return nil, fmt.Errorf("creating scorer: %w", err)
		}
		opts = append(opts, retrievit.WithScorer(scorer))
	}

	return retrievit.NewEngine(c.String("db"), opts...)
}

func indexCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	file, err := os.Open(c.String("file"))
	if err != nil {
		return err
	}
	defer file.Close()

	var documents []core.Document
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		documents = append(documents, core.Document{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(documents) == 0 {
		return fmt.Errorf("no documents in %s", c.String("file"))
	}

	namespace := c.String("namespace")
	ctx := c.Context

	if c.Bool("append") {
		// Restore the persisted snapshot so the append lands on it.
		if _, err := engine.LoadIndex(ctx, namespace); err != nil && core.Kind(err) != "not_found" {
			return err
		}
	}

	result, err := engine.IndexDocuments(ctx, namespace, documents, c.Bool("append"))
	if err != nil {
		return err
	}
	if _, err := engine.SaveIndex(ctx, namespace); err != nil {
		return err
	}

	fmt.Printf("indexed %d documents into %q (%d filtered)\n",
		result.DocumentCount, namespace, result.FilteredCount)
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no query given")
	}
	query := strings.Join(c.Args().Slice(), " ")

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	namespace := c.String("namespace")
	ctx := c.Context
	if _, err := engine.LoadIndex(ctx, namespace); err != nil {
		return err
	}

	params := search.DefaultParams()
	params.TopK = c.Int("top-k")
	params.Method = fusion.Method(c.String("method"))
	params.Alpha = c.Float64("alpha")

	if c.Bool("hybrid") || c.Bool("rerank") {
		var result *search.Result
		if c.Bool("rerank") {
			result, err = engine.HybridQueryWithRerank(ctx, namespace, query, params)
		} else {
			result, err = engine.HybridQuery(ctx, namespace, query, params)
		}
		if err != nil {
			return err
		}
		for i, match := range result.Matches {
			fmt.Printf("%2d. %s [%0.4f] %s\n", i+1, match.ID, match.Score, snippetOf(match.Metadata))
		}
		return nil
	}

	result, err := engine.Query(ctx, namespace, query, params.TopK)
	if err != nil {
		return err
	}
	for _, match := range result.Matches {
		fmt.Printf("%2d. %s [%0.4f] %s\n", match.Rank, match.ID, match.Score, snippetOf(match.Metadata))
	}
	return nil
}

func snippetOf(metadata map[string]string) string {
	for _, key := range []string{core.MetadataFullText, core.MetadataTextSnippet, core.MetadataText} {
		if text := metadata[key]; text != "" {
			if len(text) > 80 {
				return text[:80] + "..."
			}
			return text
		}
	}
	return ""
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	namespace := c.String("namespace")
	if _, err := engine.LoadIndex(c.Context, namespace); err != nil {
		return err
	}

	stats, err := engine.Stats(namespace)
	if err != nil {
		return err
	}
	fmt.Printf("namespace:        %s\n", stats.Namespace)
	fmt.Printf("documents:        %d\n", stats.DocumentCount)
	fmt.Printf("avg doc length:   %0.2f tokens\n", stats.AvgDocLength)
	return nil
}

func namespacesCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	names, err := engine.ListSavedIndexes(c.Context)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	namespace := c.String("namespace")
	if err := engine.DeleteSavedIndex(c.Context, namespace); err != nil {
		return err
	}
	fmt.Printf("deleted saved index for %q\n", namespace)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
