package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/storage"
)

// VoucherConfig constrains uploaded proof files.
type VoucherConfig struct {
	APIPrefix    string
	MaxSizeBytes int64
	AllowedMIMEs []string
}

// StoredVoucher describes an uploaded voucher file.
type StoredVoucher struct {
	RelativePath string
	URL          string
	ExpiresAt    time.Time
}

// VoucherService stores uploaded transfer proofs on disk and hands out
// signed download URLs. The signed path is what gets persisted on the
// payment as comprobante_url.
type VoucherService struct {
	files  fileStorage
	signer *storage.SignedURLSigner
	cfg    VoucherConfig
	logger *zap.Logger
}

// NewVoucherService constructs VoucherService.
func NewVoucherService(files fileStorage, signer *storage.SignedURLSigner, cfg VoucherConfig, logger *zap.Logger) *VoucherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = 5 << 20
	}
	return &VoucherService{files: files, signer: signer, cfg: cfg, logger: logger}
}

// Store validates and persists an uploaded voucher file.
func (s *VoucherService) Store(originalName, contentType string, data []byte) (*StoredVoucher, error) {
	if int64(len(data)) > s.cfg.MaxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("voucher file exceeds %d bytes", s.cfg.MaxSizeBytes))
	}
	if len(s.cfg.AllowedMIMEs) > 0 && !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "voucher file type is not allowed")
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	fileID := uuid.NewString()
	filename := fmt.Sprintf("vouchers/%s/%s%s", time.Now().UTC().Format("2006/01"), fileID, ext)

	relPath, err := s.files.Save(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store voucher file")
	}

	token, expiresAt, err := s.signer.Generate(fileID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign voucher link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &StoredVoucher{
		RelativePath: relPath,
		URL:          fmt.Sprintf("%s/vouchers/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// Open resolves a signed token to a file handle.
func (s *VoucherService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid voucher link")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher file not found")
	}
	return file, nil
}

func (s *VoucherService) mimeAllowed(contentType string) bool {
	for _, m := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(m), contentType) {
			return true
		}
	}
	return false
}
