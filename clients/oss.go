package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"DigitalHuman-server/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// 媒体类型，同时是对象存储中的目录前缀
const (
	MediaImage = "image"
	MediaVideo = "video"
	MediaAudio = "audio"
)

// Rehoster 把第三方返回的临时链接转存到自己的对象存储
type Rehoster interface {
	Rehost(ctx context.Context, sourceURL, kind string) (string, error)
	UploadBytes(ctx context.Context, data []byte, kind, ext string) (string, error)
}

// ObjectStore 基于 MinIO 的对象存储
type ObjectStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	http   *http.Client
	log    *zap.Logger
}

var _ Rehoster = (*ObjectStore)(nil)

func NewObjectStore(cfg config.MinIOConfig, log *zap.Logger) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIO 初始化失败: %w", err)
	}
	log.Info("MinIO 连接成功", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		expiry: cfg.PresignExpiry,
		http:   &http.Client{Timeout: 5 * time.Minute},
		log:    log.Named("oss"),
	}, nil
}

// ObjectName 生成云端路径，例如 image/2024/05/01/<uuid>.png
func ObjectName(kind, ext string, now time.Time) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%s/%s%s", kind, now.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

// ContentType 根据扩展名确定 ContentType
func ContentType(objectName string) string {
	switch strings.ToLower(filepath.Ext(objectName)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	return "application/octet-stream"
}

// Upload 从 io.Reader 上传，返回预签名 URL；size 为 -1 表示未知大小
func (s *ObjectStore) Upload(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return "", fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("创建 Bucket 失败: %w", err)
		}
		s.log.Info("Bucket 已创建", zap.String("bucket", s.bucket))
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: ContentType(objectName),
	})
	if err != nil {
		return "", fmt.Errorf("上传到 MinIO 失败: %w", err)
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}
	s.log.Debug("文件已上传", zap.String("object", objectName))
	return presignedURL.String(), nil
}

func (s *ObjectStore) UploadBytes(ctx context.Context, data []byte, kind, ext string) (string, error) {
	return s.Upload(ctx, bytes.NewReader(data), ObjectName(kind, ext, time.Now()), int64(len(data)))
}

// Rehost 下载 sourceURL 再上传
func (s *ObjectStore) Rehost(ctx context.Context, sourceURL, kind string) (string, error) {
	resp, err := download(ctx, s.http, sourceURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return s.Upload(ctx, resp.Body, ObjectName(kind, extFromURL(sourceURL, kind), time.Now()), resp.ContentLength)
}

func download(ctx context.Context, client *http.Client, sourceURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建下载请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download status: %d", resp.StatusCode)
	}
	return resp, nil
}

// downloadBytes 读取整个响应体
func downloadBytes(ctx context.Context, client *http.Client, sourceURL string) ([]byte, error) {
	resp, err := download(ctx, client, sourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func extFromURL(sourceURL, kind string) string {
	if u, err := url.Parse(sourceURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch kind {
	case MediaImage:
		return ".png"
	case MediaVideo:
		return ".mp4"
	case MediaAudio:
		return ".mp3"
	}
	return ""
}
