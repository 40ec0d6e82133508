package service

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/storage"
)

func newVoucherService(t *testing.T, cfg VoucherConfig) *VoucherService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("voucher-secret", time.Hour)
	return NewVoucherService(files, signer, cfg, nil)
}

func TestVoucherStoreAndOpenRoundTrip(t *testing.T) {
	svc := newVoucherService(t, VoucherConfig{
		APIPrefix:    "/api/v1",
		MaxSizeBytes: 1 << 20,
		AllowedMIMEs: []string{"image/png", "application/pdf"},
	})

	payload := []byte("fake png bytes")
	stored, err := svc.Store("comprobante.png", "image/png", payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.URL, "/api/v1/vouchers/"))
	assert.True(t, strings.HasSuffix(stored.RelativePath, ".png"))
	assert.True(t, stored.ExpiresAt.After(time.Now()))

	token := strings.TrimPrefix(stored.URL, "/api/v1/vouchers/")
	file, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	got, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestVoucherStoreRejectsOversizedFile(t *testing.T) {
	svc := newVoucherService(t, VoucherConfig{MaxSizeBytes: 16})

	_, err := svc.Store("big.pdf", "application/pdf", make([]byte, 32))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVoucherStoreRejectsDisallowedMIME(t *testing.T) {
	svc := newVoucherService(t, VoucherConfig{
		MaxSizeBytes: 1 << 20,
		AllowedMIMEs: []string{"image/png", "image/jpeg", "application/pdf"},
	})

	_, err := svc.Store("script.svg", "image/svg+xml", []byte("<svg/>"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVoucherStoreAllowsAnyMIMEWhenUnrestricted(t *testing.T) {
	svc := newVoucherService(t, VoucherConfig{MaxSizeBytes: 1 << 20})

	stored, err := svc.Store("anything.bin", "application/octet-stream", []byte("data"))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.RelativePath)
}

func TestVoucherOpenRejectsForgedToken(t *testing.T) {
	svc := newVoucherService(t, VoucherConfig{MaxSizeBytes: 1 << 20})

	_, err := svc.Open("not.a.real.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestVoucherOpenRejectsTokenFromAnotherSecret(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewVoucherService(files, storage.NewSignedURLSigner("secret-a", time.Hour), VoucherConfig{MaxSizeBytes: 1 << 20}, nil)

	other := storage.NewSignedURLSigner("secret-b", time.Hour)
	token, _, err := other.Generate("job-1", "vouchers/2026/01/x.png")
	require.NoError(t, err)

	_, err = svc.Open(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
