package azure

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MemoryBlobStorage keeps reports in process memory. It is used when no
// storage account is configured and in tests.
type MemoryBlobStorage struct {
	mu      sync.RWMutex
	storage map[string][]byte
	logger  *zap.Logger
}

// NewMemoryBlobStorage creates a new MemoryBlobStorage
func NewMemoryBlobStorage(logger *zap.Logger) *MemoryBlobStorage {
	return &MemoryBlobStorage{
		storage: make(map[string][]byte),
		logger:  logger,
	}
}

// UploadPDF stores a copy of data
func (m *MemoryBlobStorage) UploadPDF(ctx context.Context, filename string, data []byte) (string, error) {
	blobName, err := ReportBlobName(filename)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage[blobName] = append([]byte(nil), data...)

	m.logger.Debug("report stored in memory", zap.String("blob_name", blobName))
	return blobName, nil
}

// DownloadPDF returns a stored report
func (m *MemoryBlobStorage) DownloadPDF(ctx context.Context, blobName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.storage[blobName]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", blobName)
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored reports
func (m *MemoryBlobStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.storage)
}
