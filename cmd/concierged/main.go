package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/northstar-market/concierge/internal/attachments"
	"github.com/northstar-market/concierge/internal/cache"
	"github.com/northstar-market/concierge/internal/config"
	"github.com/northstar-market/concierge/internal/eventlog"
	"github.com/northstar-market/concierge/internal/facade"
	"github.com/northstar-market/concierge/internal/facade/memfacade"
	"github.com/northstar-market/concierge/internal/facade/pgfacade"
	llmpkg "github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/llm/providers"
	"github.com/northstar-market/concierge/internal/nodes"
	"github.com/northstar-market/concierge/internal/objectstore"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/retrieval"
	"github.com/northstar-market/concierge/internal/router"
	"github.com/northstar-market/concierge/internal/sessionstore"
	"github.com/northstar-market/concierge/internal/sse"
	"github.com/northstar-market/concierge/internal/state"
	"github.com/northstar-market/concierge/internal/summarizer"
	"github.com/northstar-market/concierge/internal/tools"
	"github.com/northstar-market/concierge/internal/validation"
	"github.com/northstar-market/concierge/internal/workflow"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		log.Fatal().Err(err).Msg("failed to load config")
	}

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	httpClient := observability.NewHTTPClient(nil)
	llmpkg.ConfigureLogging(cfg.LogPayloads, cfg.LogTruncateBytes)

	mainLLM, err := providers.Build(cfg.Main, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build main llm provider")
	}
	intentLLM, err := providers.Build(cfg.Intent, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build intent llm provider")
	}

	fc := buildFacade(context.Background(), cfg.Facade)

	registry := tools.NewRegistry()
	tools.RegisterCanonical(registry, fc)

	index, err := retrieval.Build(cfg.Retrieval, "data/retrieval")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build retrieval index")
	}
	embedder := retrieval.NewEmbedder(httpClient, cfg.Main.OpenAI.BaseURL, cfg.Main.OpenAI.APIKey, "text-embedding-3-small")
	retriever := retrieval.NewRetriever(index, embedder, mainLLM)

	store := sessionstore.Build(cfg.Session)

	intentCache := cache.New(cache.Config{MaxSize: cfg.Intents.CacheMaxSize, TTL: cfg.Intents.CacheTTL})

	extractor := attachments.NewExtractor(cfg.Attachments)
	fc.Attachments = extractor

	objStore, err := objectstore.Build(context.Background(), cfg.ObjectStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build object store")
	}

	summ := &summarizer.Summarizer{
		Provider: mainLLM,
		Config:   summarizer.Config{TriggerThreshold: cfg.Summary.TriggerThreshold, MaxContextTokens: cfg.Summary.ContextMaxTokens},
	}

	var audit *eventlog.Logger
	if cfg.Kafka.Brokers != "" {
		producer, err := eventlog.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		if err != nil {
			log.Warn().Err(err).Msg("kafka producer init failed, continuing without it")
		}
		sink, err := eventlog.NewClickHouseSink(context.Background(), cfg.ClickHouse)
		if err != nil {
			log.Warn().Err(err).Msg("clickhouse sink init failed, continuing without it")
		}
		audit = eventlog.NewLogger(producer, sink)
	}

	engine := workflow.NewEngine(
		&nodes.ContextNode{Store: store},
		&nodes.IntentRecognitionNode{LLM: intentLLM, Cache: intentCache, HistorySize: cfg.Intents.HistorySize, FallbackThreshold: cfg.Intents.FallbackThreshold},
		&nodes.FunctionCallingNode{LLM: mainLLM, Registry: registry},
		&nodes.SaveContextNode{Store: store, Summarizer: summ},
		map[string]nodes.Node{
			router.NodeQA:                &nodes.QANode{LLM: mainLLM, Retriever: retriever, Attachments: fc.Attachments, TopK: cfg.Retrieval.TopK},
			router.NodeDocument:          &nodes.DocumentNode{LLM: mainLLM, Attachments: fc.Attachments},
			router.NodeTicket:            &nodes.TicketNode{LLM: mainLLM},
			router.NodeClarify:           &nodes.ClarifyNode{LLM: mainLLM},
			router.NodeProductRecommend:  &nodes.ProductRecommendationNode{LLM: mainLLM, Products: fc.Products},
			router.NodeProductInquiry:    &nodes.ProductInquiryNode{LLM: mainLLM, Products: fc.Products},
			router.NodePersonalized:      &nodes.PersonalizedRecommendNode{LLM: mainLLM, Browse: fc.Browse, Recommendations: fc.Recommendations},
			router.NodeOrderQuery:        &nodes.OrderQueryNode{Orders: fc.Orders},
			router.NodePurchaseGuide:     &nodes.PurchaseGuideNode{LLM: mainLLM},
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ready")
	})
	mux.HandleFunc("/chat/message", handleChatMessage(engine, audit, cfg.RequestTimeout))
	mux.HandleFunc("/chat/stream", handleChatStream(engine, audit, cfg.RequestTimeout))
	mux.HandleFunc("/knowledge/upload", handleKnowledgeUpload(objStore))

	log.Info().Str("addr", cfg.ListenAddr).Msg("concierged listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func buildFacade(ctx context.Context, cfg config.FacadeConfig) facade.Facade {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("no POSTGRES_DSN configured, falling back to the in-memory demo facade")
		return memfacade.New()
	}
	pool, err := pgfacade.OpenPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	return pgfacade.New(pool)
}

type chatRequest struct {
	SessionID   string             `json:"session_id"`
	Message     string             `json:"message"`
	Locale      string             `json:"locale,omitempty"`
	Attachments []state.Attachment `json:"attachments,omitempty"`
}

type chatResponse struct {
	MessageID           string              `json:"message_id"`
	Content             string              `json:"content"`
	Sources             []any               `json:"sources,omitempty"`
	Intent              state.Intent        `json:"intent,omitempty"`
	TicketID            string              `json:"ticket_id,omitempty"`
	ProcessingTime       time.Duration       `json:"processing_time,omitempty"`
	QuickActions        []state.QuickAction `json:"quick_actions,omitempty"`
	RecommendedProducts []string            `json:"recommended_products,omitempty"`
}

func userIDFromRequest(r *http.Request) string {
	if u := r.Header.Get("X-User-ID"); u != "" {
		return u
	}
	return "anonymous"
}

func handleChatMessage(engine *workflow.Engine, audit *eventlog.Logger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sessionID, err := validation.SessionID(req.SessionID)
		if err != nil {
			http.Error(w, "invalid session_id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		s, err := engine.ProcessMessage(ctx, userIDFromRequest(r), sessionID, req.Message, req.Locale, req.Attachments)
		if err != nil {
			log.Error().Err(err).Msg("process_message_failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		audit.Log(ctx, eventlog.Event{
			Type: eventlog.EventSave, SessionID: s.SessionID, UserID: s.UserID, Timestamp: time.Now().UTC(),
			Payload: map[string]any{"intent": s.Intent, "tool_used": s.ToolUsed},
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{
			MessageID: s.MessageID, Content: s.Response, Sources: s.Sources, Intent: s.Intent,
			TicketID: s.TicketID, ProcessingTime: s.ProcessingTime, QuickActions: s.QuickActions,
			RecommendedProducts: s.RecommendedProducts,
		})
	}
}

func handleChatStream(engine *workflow.Engine, audit *eventlog.Logger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sessionID, err := validation.SessionID(req.SessionID)
		if err != nil {
			http.Error(w, "invalid session_id", http.StatusBadRequest)
			return
		}

		writer, err := sse.NewWriter(w)
		if err != nil {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		userID := userIDFromRequest(r)
		engine.ProcessMessageStream(ctx, userID, sessionID, req.Message, req.Locale, req.Attachments, func(ev workflow.Event) {
			if werr := writer.WriteEvent(ev); werr != nil {
				log.Warn().Err(werr).Msg("sse_write_failed")
				return
			}
			if ev.Type == workflow.EventEnd {
				audit.Log(ctx, eventlog.Event{
					Type: eventlog.EventSave, SessionID: sessionID, UserID: userID, Timestamp: time.Now().UTC(),
					Payload: map[string]any{"intent": ev.Intent},
				})
			}
		})
		writer.Close()
	}
}

// knowledgeMetadata is the sidecar object stored alongside every uploaded
// knowledge/attachment file, under knowledge/<doc_id>/metadata.json (the
// file's own key without its extension, plus "/metadata.json").
type knowledgeMetadata struct {
	DocID       string    `json:"doc_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// handleKnowledgeUpload stores an uploaded multipart file under
// knowledge/<doc_id>.<ext> with a sibling metadata.json object, and returns
// the generated doc_id so callers can reference it from a later
// attachment-bearing chat message.
func handleKnowledgeUpload(store objectstore.ObjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		docID := uuid.NewString()
		ext := strings.ToLower(filepath.Ext(header.Filename))
		key := fmt.Sprintf("knowledge/%s%s", docID, ext)
		contentType := header.Header.Get("Content-Type")

		ctx := r.Context()
		if _, err := store.Put(ctx, key, file, objectstore.PutOptions{ContentType: contentType}); err != nil {
			log.Error().Err(err).Msg("knowledge_upload_put_failed")
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}

		meta := knowledgeMetadata{
			DocID: docID, FileName: header.Filename, ContentType: contentType,
			Size: header.Size, UploadedAt: time.Now().UTC(),
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		metaKey := fmt.Sprintf("knowledge/%s/metadata.json", docID)
		if _, err := store.Put(ctx, metaKey, strings.NewReader(string(metaBytes)), objectstore.PutOptions{ContentType: "application/json"}); err != nil {
			log.Error().Err(err).Msg("knowledge_metadata_put_failed")
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(meta)
	}
}
