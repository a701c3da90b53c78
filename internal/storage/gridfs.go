package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tempPrefix = "tmp/"

// GridFSStore keeps attachment objects in a GridFS bucket, addressed by
// path-shaped filenames. Temporary uploads live under tmp/<uuid> until
// they are promoted into a conversation-scoped path or garbage collected.
// It implements both common.TempUploadStore and common.ObjectStorage.
type GridFSStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSStore(mc *MongoClient) *GridFSStore {
	return &GridFSStore{bucket: mc.GridFS}
}

// StoreTemporary writes an incoming upload under a fresh temporary id and
// returns that id for a later Promote call.
func (s *GridFSStore) StoreTemporary(ctx context.Context, fileName, mimeType string, content io.Reader) (string, error) {
	uploadID := uuid.NewString()
	metadata := bson.M{
		"mime_type":     mimeType,
		"original_name": fileName,
		"uploaded_at":   time.Now().UTC(),
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := s.bucket.OpenUploadStream(tempPrefix+uploadID, opts)
	if err != nil {
		return "", fmt.Errorf("temp upload failed: %w", err)
	}
	defer stream.Close()

	if _, err := io.Copy(stream, content); err != nil {
		return "", fmt.Errorf("temp upload copy failed: %w", err)
	}
	return uploadID, nil
}

// Promote moves a temporary upload to a permanent path under destPrefix.
// Returns "" (no error) when the upload id does not resolve, which callers
// treat as a skipped descriptor.
func (s *GridFSStore) Promote(ctx context.Context, uploadID, destPrefix, fileName, visibility string) (string, error) {
	tempName := tempPrefix + uploadID

	fileID, meta, err := s.lookup(ctx, tempName)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", err
	}

	data, err := s.Get(ctx, tempName)
	if err != nil {
		return "", err
	}

	name := fileName
	if name == "" {
		name = stringFromMeta(meta, "original_name")
	}
	if name == "" {
		name = uploadID
	}
	dest := path.Join(destPrefix, uploadID+"-"+path.Base(name))

	metadata := bson.M{
		"mime_type":     stringFromMeta(meta, "mime_type"),
		"original_name": name,
		"visibility":    visibility,
		"promoted_at":   time.Now().UTC(),
	}
	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := s.bucket.OpenUploadStream(dest, opts)
	if err != nil {
		return "", fmt.Errorf("promote upload failed: %w", err)
	}
	if _, err := stream.Write(data); err != nil {
		stream.Close()
		return "", fmt.Errorf("promote copy failed: %w", err)
	}
	if err := stream.Close(); err != nil {
		return "", err
	}

	// Best effort: the temp object is unreachable once promoted.
	_ = s.bucket.Delete(fileID)

	return dest, nil
}

func (s *GridFSStore) URL(p string) string {
	return "/media/" + p
}

func (s *GridFSStore) Size(ctx context.Context, p string) (int64, error) {
	var doc struct {
		Length int64 `bson:"length"`
	}
	err := s.bucket.GetFilesCollection().
		FindOne(ctx, bson.M{"filename": p}).
		Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Length, nil
}

func (s *GridFSStore) MimeType(ctx context.Context, p string) (string, error) {
	_, meta, err := s.lookup(ctx, p)
	if err != nil {
		return "", err
	}
	if mt := stringFromMeta(meta, "mime_type"); mt != "" {
		return mt, nil
	}
	if mt := mime.TypeByExtension(path.Ext(p)); mt != "" {
		return mt, nil
	}

	// Last resort: sniff the stored bytes.
	data, err := s.Get(ctx, p)
	if err != nil {
		return "", err
	}
	return http.DetectContentType(data), nil
}

func (s *GridFSStore) Get(ctx context.Context, p string) ([]byte, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(p)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return io.ReadAll(stream)
}

func (s *GridFSStore) lookup(ctx context.Context, name string) (primitive.ObjectID, bson.M, error) {
	var doc struct {
		ID       primitive.ObjectID `bson:"_id"`
		Metadata bson.M             `bson:"metadata"`
	}
	err := s.bucket.GetFilesCollection().
		FindOne(ctx, bson.M{"filename": name}).
		Decode(&doc)
	if err != nil {
		return primitive.NilObjectID, nil, err
	}
	return doc.ID, doc.Metadata, nil
}

func stringFromMeta(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
