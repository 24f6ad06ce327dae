package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"twils-assistant/config"
	"twils-assistant/models"
	"twils-assistant/storage"
)

// UploadService stores user-contributed paper PDFs in S3 and tracks them in
// the database.
type UploadService struct {
	cfg      *config.Config
	db       *gorm.DB
	s3Client *s3.Client
	logger   *zap.Logger
}

// NewUploadService creates an upload service.
func NewUploadService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, logger *zap.Logger) *UploadService {
	return &UploadService{cfg: cfg, db: db, s3Client: s3Client, logger: logger}
}

// UploadInput carries the metadata submitted alongside the file.
type UploadInput struct {
	UploaderID  string
	Title       string
	Authors     string
	Institution string
	Language    string
	Category    string
	Abstract    string
	Filename    string
	Data        []byte
}

// Store uploads the file and persists the metadata row. The S3 key embeds a
// timestamp so repeated uploads of the same filename never collide.
func (u *UploadService) Store(ctx context.Context, in UploadInput) (*models.UploadedPaper, error) {
	if in.Title == "" || len(in.Data) == 0 {
		return nil, fmt.Errorf("upload requires a title and a non-empty file")
	}

	ext := filepath.Ext(in.Filename)
	base := strings.TrimSuffix(filepath.Base(in.Filename), ext)
	key := fmt.Sprintf("uploads/%d_%s%s", time.Now().UnixMilli(), base, ext)

	link, err := storage.UploadFile(ctx, u.s3Client, u.cfg.S3Bucket, key, in.Data, u.cfg)
	if err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}

	paper := models.UploadedPaper{
		UploaderID:  in.UploaderID,
		Title:       in.Title,
		Authors:     in.Authors,
		Institution: in.Institution,
		Language:    in.Language,
		Category:    in.Category,
		Abstract:    in.Abstract,
		S3Link:      link,
	}
	if err := u.db.WithContext(ctx).Create(&paper).Error; err != nil {
		return nil, fmt.Errorf("persisting upload: %w", err)
	}

	u.logger.Info("Paper uploaded",
		zap.Uint("id", paper.ID),
		zap.String("uploader_id", in.UploaderID),
		zap.String("s3_key", key))
	return &paper, nil
}

// List returns uploads, newest first, optionally filtered by uploader.
func (u *UploadService) List(ctx context.Context, uploaderID string, limit int) ([]models.UploadedPaper, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := u.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if uploaderID != "" {
		q = q.Where("uploader_id = ?", uploaderID)
	}
	var papers []models.UploadedPaper
	if err := q.Find(&papers).Error; err != nil {
		return nil, err
	}
	return papers, nil
}
