package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-form-rag/internal/config"
	"pdf-form-rag/internal/embedding"
	"pdf-form-rag/internal/helper"
	"pdf-form-rag/internal/llmservice"
	"pdf-form-rag/internal/models"
	"pdf-form-rag/internal/rag"
	"pdf-form-rag/internal/server"
)

const configFilePath = "./configs/config.yaml"

// fileList collects repeated -file flags.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	var files fileList
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Var(&files, "file", "Path to a PDF document (repeatable)")
	query := flag.String("query", "", "Question to be answered")
	serve := flag.Bool("serve", false, "Serve the HTTP API")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Debug().Interface("rag", cfg.RAG).Str("embed_provider", cfg.EmbedLLM.Provider).
		Str("chat_provider", cfg.ChatLLM.Provider).Msg("Loaded config")

	r, err := newRAG(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing providers")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := runServer(ctx, r, &cfg.Server); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
		return
	}

	if len(files) == 0 {
		log.Fatal().Msg("Please provide PDF documents using the -file flag, or -serve to start the HTTP API")
	}
	if err := runCLI(ctx, r, files, *query); err != nil {
		log.Fatal().Err(err).Msg("Error")
	}
}

func newRAG(cfg *config.Config) (*rag.RAG, error) {
	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	client, err := llmservice.NewClient(&cfg.ChatLLM)
	if err != nil {
		return nil, err
	}
	return rag.NewRAG(embedder, client, cfg.RAG), nil
}

func runServer(ctx context.Context, r *rag.RAG, cfg *config.ServerConfig) error {
	srv := server.NewServer(r, cfg)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	}
}

func runCLI(ctx context.Context, r *rag.RAG, files []string, query string) error {
	docs, err := readDocuments(files)
	if err != nil {
		return err
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	session := rag.NewSession(id, r)

	index, err := session.ProcessDocuments(ctx, docs)
	if err != nil {
		return err
	}
	log.Info().Int("documents", len(docs)).Int("chunks", index.Count()).Msg("Documents ready, ask your questions")

	if query != "" {
		return ask(ctx, session, query)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return printHistory(ctx, session)
		}
		if err := ask(ctx, session, question); err != nil {
			var genErr *models.GenerationError
			if errors.As(err, &genErr) && ctx.Err() == nil {
				log.Error().Err(err).Msg("Error answering question")
				continue
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read questions: %w", err)
	}
	return printHistory(ctx, session)
}

func ask(ctx context.Context, session *rag.Session, question string) error {
	response, err := session.AskQuestion(ctx, question)
	if err != nil {
		return err
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range response.Source {
		log.Debug().Int("chunk", src.Chunk.Index).Float32("similarity", src.Similarity).Msg(src.Chunk.Content)
	}
	fmt.Printf("%d chunks\n\n", len(response.Source))

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
	return nil
}

func printHistory(ctx context.Context, session *rag.Session) error {
	turns, err := session.History(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("turns", len(turns)).Msg("Conversation history")
	return helper.PrettyPrint(os.Stdout, turns)
}

func readDocuments(paths []string) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, models.Document{Name: filepath.Base(p), Data: data})
	}
	return docs, nil
}
