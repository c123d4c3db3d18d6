package cli

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ragqa/internal/chunker"
	"ragqa/internal/completion"
	"ragqa/internal/config"
	"ragqa/internal/embedding"
	"ragqa/internal/logger"
	"ragqa/internal/metrics"
	"ragqa/internal/server"
	"ragqa/internal/service"
	"ragqa/internal/vectorstore"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if address != "" {
				cfg.Server.Address = address
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			return serve(cmd.Context(), cfg, opts.log)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Listen address (overrides server.address)")
	return cmd
}

func serve(ctx context.Context, cfg *config.AppConfig, log logger.Logger) error {
	m := metrics.New()
	svc, closeStore, err := buildService(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(context.WithoutCancel(ctx)); err != nil {
			log.Warn("closing vector store", "error", err)
		}
	}()
	log.Info("components ready",
		"embedder", cfg.Embedder.Type,
		"completer", cfg.Completer.Type,
		"vector_store", cfg.VectorStore.Type,
	)
	return server.New(cfg.Server, svc, m, log).Run(ctx)
}

// buildService assembles the collaborators selected by cfg.
func buildService(
	ctx context.Context,
	cfg *config.AppConfig,
	m *metrics.Metrics,
) (*service.RAGService, func(context.Context) error, error) {
	ch, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, nil, err
	}
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, nil, err
	}
	comp, err := completion.New(cfg.Completer)
	if err != nil {
		return nil, nil, err
	}
	store, err := vectorstore.New(ctx, cfg.VectorStore)
	if err != nil {
		return nil, nil, err
	}
	svc := service.NewRAGService(emb, store, comp,
		service.WithChunker(ch),
		service.WithEmbedConcurrency(cfg.Embedder.Concurrency),
		service.WithMetrics(m),
	)
	return svc, store.Close, nil
}
