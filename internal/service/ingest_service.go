package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/ingest"
	"docchat/internal/observability"
	"docchat/internal/repository"
)

// IngestService handles the upload path: it validates size limits, stores
// the raw file, runs the streaming processor, and hands the resulting
// fragments to the retrieval index. It does not stream events; the upload
// endpoint answers with a plain JSON body.
type IngestService struct {
	cfg       *config.Config
	sessions  *repository.SessionRepository
	files     *repository.FileStore
	processor *ingest.Processor
	indexer   Indexer
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	cfg *config.Config,
	sessions *repository.SessionRepository,
	files *repository.FileStore,
	processor *ingest.Processor,
	indexer Indexer,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		cfg:       cfg,
		sessions:  sessions,
		files:     files,
		processor: processor,
		indexer:   indexer,
		metrics:   metrics,
		logger:    logger,
	}
}

// UploadDocument ingests one uploaded file for a session. An empty
// sessionID starts a new session. The whole file is validated against the
// configured maximum before any work happens; afterwards a single corrupt
// slice only reduces the fragment yield, it does not fail the upload.
func (s *IngestService) UploadDocument(ctx context.Context, sessionID string, file *multipart.FileHeader) (*domain.UploadResult, error) {
	if file.Size > s.cfg.Ingest.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes, maximum is %d",
			domain.ErrTooLarge, file.Size, s.cfg.Ingest.MaxUploadBytes)
	}
	if !repository.ValidFileName(file.Filename) {
		return nil, fmt.Errorf("%w: invalid file name", domain.ErrInvalidRequest)
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	if _, err := s.files.Save(sessionID, file.Filename, data); err != nil {
		return nil, err
	}

	estimate := ingest.EstimateMemory(file.Size, s.cfg.Ingest.StreamingThreshold)
	s.logger.Info("ingesting document",
		zap.String("session_id", sessionID),
		zap.String("file", file.Filename),
		zap.Int64("size", file.Size),
		zap.Int64("estimated_memory", estimate.Estimated),
		zap.Bool("streaming", estimate.Streaming),
	)

	result, err := s.processor.Process(ctx, ingest.Input{
		Data:      data,
		MediaType: file.Header.Get("Content-Type"),
		FileName:  file.Filename,
		SessionID: sessionID,
	}, nil)
	if err != nil {
		return nil, err
	}

	if err := s.indexer.Index(ctx, result.Fragments); err != nil {
		return nil, fmt.Errorf("%w: index fragments: %v", domain.ErrUpstream, err)
	}

	// The document-count bump is a read-modify-write; it must go through
	// the store's atomic update so a concurrent chat turn cannot lose it.
	if _, err := s.sessions.Update(sessionID, func(sess *domain.Session) {
		sess.DocumentCount++
	}); err != nil {
		return nil, err
	}

	s.metrics.UploadsTotal.Inc()
	s.metrics.FragmentsTotal.Add(float64(len(result.Fragments)))
	s.metrics.SliceErrorsTotal.Add(float64(len(result.SliceErrors)))

	message := fmt.Sprintf("ingested %d fragments from %s", len(result.Fragments), file.Filename)
	if n := len(result.SliceErrors); n > 0 {
		message = fmt.Sprintf("%s (%d slices skipped)", message, n)
	}

	return &domain.UploadResult{SessionID: sessionID, Message: message}, nil
}
