package service

import (
	"bytes"
	"context"
	"image"
	"path"

	// Header decoders for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"goconverse/internal/chat/repository"
	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
	"goconverse/internal/logger"
)

const (
	attachmentDisk        = "media"
	fallbackMimeType      = "application/octet-stream"
	attachmentVisibility  = "private"
	attachmentPathSegment = "attachments"
)

// AttachmentInput describes one temporary upload to promote.
type AttachmentInput struct {
	UploadID string                 `json:"upload_id"`
	FileName string                 `json:"file_name,omitempty"`
	Inline   bool                   `json:"inline,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AttachmentService promotes temporary uploads into permanent,
// conversation-scoped storage. Descriptors that fail promotion are skipped,
// not reported: the result holds only the attachments that survived.
type AttachmentService interface {
	AttachFromTemporary(ctx context.Context, msg *dbmysql.Message, conv *dbmysql.Conversation, uploaderID uint64, inputs []AttachmentInput) []*dbmysql.MessageAttachment
}

type attachmentService struct {
	messages repository.MessageRepository
	uploads  common.TempUploadStore
	storage  common.ObjectStorage
}

func NewAttachmentService(
	messages repository.MessageRepository,
	uploads common.TempUploadStore,
	storage common.ObjectStorage,
) AttachmentService {
	return &attachmentService{messages: messages, uploads: uploads, storage: storage}
}

func (s *attachmentService) AttachFromTemporary(ctx context.Context, msg *dbmysql.Message, conv *dbmysql.Conversation, uploaderID uint64, inputs []AttachmentInput) []*dbmysql.MessageAttachment {
	destPrefix := path.Join("conversations", conv.Token, attachmentPathSegment)

	var attached []*dbmysql.MessageAttachment
	for _, input := range inputs {
		if input.UploadID == "" {
			continue
		}

		stored, err := s.uploads.Promote(ctx, input.UploadID, destPrefix, input.FileName, attachmentVisibility)
		if err != nil || stored == "" {
			logger.Warn("attachment promotion skipped",
				zap.String("upload_id", input.UploadID),
				zap.Uint64("message_id", msg.ID),
				zap.Error(err))
			continue
		}

		mimeType, err := s.storage.MimeType(ctx, stored)
		if err != nil || mimeType == "" {
			mimeType = fallbackMimeType
		}
		kind := dbmysql.DetectMediaKind(mimeType)

		size, err := s.storage.Size(ctx, stored)
		if err != nil {
			size = 0
		}

		var width, height *int
		if kind == dbmysql.MediaKindImage {
			width, height = s.imageDimensions(ctx, stored)
		}

		fileName := input.FileName
		if fileName == "" {
			fileName = path.Base(stored)
		}

		att := &dbmysql.MessageAttachment{
			MessageID:  msg.ID,
			UploaderID: uploaderID,
			Kind:       kind,
			Disk:       attachmentDisk,
			Path:       stored,
			FileName:   fileName,
			MimeType:   mimeType,
			Size:       size,
			Width:      width,
			Height:     height,
			Ordering:   len(attached),
			IsPrimary:  len(attached) == 0,
			Inline:     input.Inline,
			Metadata:   input.Metadata,
		}
		if err := s.messages.CreateAttachment(ctx, att); err != nil {
			logger.Warn("attachment row create failed",
				zap.String("upload_id", input.UploadID),
				zap.Uint64("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		attached = append(attached, att)
	}
	return attached
}

// imageDimensions reads the promoted bytes and parses the image header.
// Any failure degrades to unknown dimensions rather than failing the attach.
func (s *attachmentService) imageDimensions(ctx context.Context, stored string) (*int, *int) {
	data, err := s.storage.Get(ctx, stored)
	if err != nil {
		return nil, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	w, h := cfg.Width, cfg.Height
	return &w, &h
}
