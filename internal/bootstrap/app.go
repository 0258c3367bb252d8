package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docexplorer/internal/ai"
	"docexplorer/internal/app"
	"docexplorer/internal/cache"
	"docexplorer/internal/config"
	"docexplorer/internal/keyword"
	"docexplorer/internal/model"
	"docexplorer/internal/pkg/jwtutil"
	mysqlClient "docexplorer/internal/platform/mysql"
	"docexplorer/internal/platform/objectstore"
	rabbitmqClient "docexplorer/internal/platform/rabbitmq"
	redisClient "docexplorer/internal/platform/redis"
	"docexplorer/internal/repository"
	"docexplorer/internal/vectorstore"
	"docexplorer/internal/vision"
	"docexplorer/internal/warehouse"
	"docexplorer/internal/worker"
)

// fallbackEmbeddingDims sizes the local hash embedder used when no LLM key
// is configured.
const fallbackEmbeddingDims = 384

type Services struct {
	Auth       *app.AuthService
	Explorer   *app.ExplorerService
	RAG        *app.RAGService
	Summaries  *app.SummarizationService
	Notes      *app.ResearchNoteService
	Validation *app.ValidationService
	Search     *app.SearchService
	Reports    *app.ReportService
}

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	NoteWorker  *worker.NotePersistWorker
	Signer      *jwtutil.Signer
	VectorStore *vectorstore.Store
	Keywords    *keyword.Index
	Images      *vision.ImageEncoder
	Services    Services

	StartedAt time.Time
	// snapshotPath is where Close writes the vector snapshot.
	snapshotPath string
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	creds, err := cfg.LoadStorageCredentials()
	if err != nil {
		return fmt.Errorf("load storage credentials failed: %w", err)
	}
	objects, err := objectstore.New(objectstore.Options{
		Endpoint:     cfg.Storage.Endpoint,
		AccessKey:    creds.AccessKey,
		SecretKey:    creds.Secret,
		Region:       cfg.Storage.Region,
		UseSSL:       cfg.Storage.UseSSL,
		SignedURLTTL: time.Duration(cfg.Storage.SignedURLTTLSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	signer, err := jwtutil.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	if err != nil {
		return fmt.Errorf("init token signer failed: %w", err)
	}
	a.Signer = signer

	a.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.DefaultPool())
	if err != nil {
		return err
	}
	if err := a.MySQL.AutoMigrate(
		&model.User{},
		&model.ResearchNote{},
		&model.QAInteraction{},
		&model.DocumentSummary{},
		&model.Report{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		ClientName: cfg.App.Name,
	})
	if err != nil {
		return err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, rabbitmqClient.Options{
		ConnectionName: cfg.App.Name,
		Heartbeat:      time.Duration(cfg.RabbitMQ.HeartbeatSeconds) * time.Second,
		Queues:         []string{cfg.RabbitMQ.NoteQueue},
	})
	if err != nil {
		return err
	}

	catalog, err := warehouse.NewClient(
		warehouse.NewMySQLOpener(cfg.WarehouseDSN(), time.Duration(cfg.Warehouse.TimeoutSeconds)*time.Second),
		warehouse.Options{
			Schema:   cfg.Warehouse.Schema,
			Table:    cfg.Warehouse.Table,
			IDColumn: cfg.Warehouse.IDColumn,
			Name:     cfg.Warehouse.Name,
			Timeout:  time.Duration(cfg.Warehouse.TimeoutSeconds) * time.Second,
		},
		a.Logger.Named("warehouse"),
	)
	if err != nil {
		return fmt.Errorf("init warehouse client failed: %w", err)
	}

	textModel, embedder := a.languageModel()
	a.Images = vision.NewImageEncoder(cfg.Model.Path, cfg.Model.LabelsPath, cfg.Model.ONNXSharedLibPath, cfg.Model.TopK)
	mm := app.NewMultimodalService(textModel, embedder, a.Images)

	a.VectorStore = vectorstore.New(embedder, vectorstore.Options{
		ChunkWords: cfg.VectorStore.ChunkWords,
		Shards:     cfg.VectorStore.Shards,
		Logger:     a.Logger.Named("vectorstore"),
	})
	loadErr := a.VectorStore.Load(cfg.VectorStore.SnapshotPath)
	a.snapshotPath = snapshotTarget(cfg.VectorStore.SnapshotPath, loadErr, a.StartedAt)
	if loadErr != nil {
		a.Logger.Warn("vector snapshot not loaded, starting empty",
			zap.String("path", cfg.VectorStore.SnapshotPath),
			zap.String("save_path", a.snapshotPath),
			zap.Error(loadErr))
	}
	a.Keywords, err = keyword.NewMemIndex()
	if err != nil {
		return err
	}
	if n, err := app.RebuildKeywordIndex(a.VectorStore, a.Keywords); err != nil {
		a.Logger.Warn("keyword index rebuild failed", zap.Error(err))
	} else {
		a.Logger.Info("keyword index rebuilt", zap.Int("indices", n))
	}

	userRepo := repository.NewUserRepository(a.MySQL)
	noteRepo := repository.NewResearchNoteRepository(a.MySQL)
	qaRepo := repository.NewQAInteractionRepository(a.MySQL)
	summaryRepo := repository.NewSummaryRepository(a.MySQL)
	reportRepo := repository.NewReportRepository(a.MySQL)

	source := app.NewStorageDocumentSource(catalog, objects, cfg.Storage.MaxObjectBytes)
	publisher := rabbitmqClient.NewNotePublisher(a.MQConn, cfg.RabbitMQ.NoteQueue)
	summaryCache := cache.NewSummaryCache(a.Redis, time.Duration(cfg.Redis.SummaryTTLSeconds)*time.Second)

	summaries := app.NewSummarizationService(mm, source, summaryRepo, summaryCache, qaRepo, a.Logger.Named("summaries"))
	notes := app.NewResearchNoteService(noteRepo, a.VectorStore, a.Keywords, summaries, a.Logger.Named("notes"))
	a.Services = Services{
		Auth:       app.NewAuthService(userRepo, signer),
		Explorer:   app.NewExplorerService(catalog, objects, a.Logger.Named("explorer")),
		RAG:        app.NewRAGService(mm, a.VectorStore, a.Keywords, source, qaRepo, publisher, cfg.VectorStore.DefaultTopK, a.Logger.Named("rag")),
		Summaries:  summaries,
		Notes:      notes,
		Validation: app.NewValidationService(noteRepo),
		Search:     app.NewSearchService(mm, a.VectorStore, a.Keywords, noteRepo),
		Reports:    app.NewReportService(mm, source, reportRepo, cfg.LLM.Model, cfg.App.BackendURL),
	}

	if err := notes.ReindexAll(ctx); err != nil {
		a.Logger.Warn("notes reindex failed", zap.Error(err))
	}

	a.NoteWorker = worker.NewNotePersistWorker(a.MQConn, noteRepo, notes, cfg.RabbitMQ.NoteQueue, a.Logger.Named("note-worker"))
	if err := a.NoteWorker.Start(ctx); err != nil {
		return fmt.Errorf("start note worker failed: %w", err)
	}

	a.Logger.Info("application initialised",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("warehouse", cfg.Warehouse.Name),
	)
	return nil
}

// snapshotTarget keeps an unreadable snapshot in place and saves next to it.
func snapshotTarget(path string, loadErr error, startedAt time.Time) string {
	if loadErr == nil {
		return path
	}
	return path + ".recovered-" + startedAt.UTC().Format("20060102T150405")
}

// languageModel returns the remote model, and the hash embedder in place of
// remote embeddings when no API key is set.
func (a *App) languageModel() (app.TextModel, app.TextEmbedder) {
	cfg := a.Config.LLM
	llm := ai.NewModel(
		ai.NewOpenAICompatibleClient(),
		ai.ChatConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model},
		ai.EmbeddingConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.EmbeddingModel},
		ai.GenerationParams{
			MaxTokens:   cfg.MaxOutputTokens,
			Temperature: ai.Float(cfg.Temperature),
			TopK:        cfg.TopK,
			TopP:        cfg.TopP,
		},
		time.Duration(cfg.TimeoutSeconds)*time.Second,
	)
	if cfg.APIKey == "" {
		a.Logger.Warn("LLM_API_KEY not set, using local hash embeddings")
		return llm, vectorstore.NewHashEmbedder(fallbackEmbeddingDims)
	}
	return llm, llm
}

// Close stops the worker, writes the vector snapshot and releases
// connections. It is safe on a partially initialised App.
func (a *App) Close() error {
	var closeErr error
	if a.NoteWorker != nil {
		a.NoteWorker.Close()
	}
	if a.VectorStore != nil && a.snapshotPath != "" {
		if err := a.VectorStore.Save(a.snapshotPath); err != nil {
			a.Logger.Error("save vector snapshot failed", zap.Error(err))
			closeErr = err
		}
	}
	if a.Keywords != nil {
		if err := a.Keywords.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Images != nil {
		a.Images.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
