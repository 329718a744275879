package azure

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

const reportPrefix = "reports/"

// BlobStorageClient stores adherence report PDFs in Azure Blob Storage
type BlobStorageClient struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
}

// NewBlobStorageClient creates a new Azure Blob Storage client
func NewBlobStorageClient(accountName, accountKey, containerName string, logger *zap.Logger) (*BlobStorageClient, error) {
	if accountName == "" || accountKey == "" || containerName == "" {
		return nil, fmt.Errorf("accountName, accountKey, and containerName are required")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobStorageClient{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// ReportBlobName returns the blob name a report file is stored under
func ReportBlobName(filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "..") || path.Base(filename) != filename {
		return "", fmt.Errorf("invalid report filename %q", filename)
	}
	return reportPrefix + filename, nil
}

// UploadPDF uploads a report PDF and returns its blob name
func (c *BlobStorageClient) UploadPDF(ctx context.Context, filename string, data []byte) (string, error) {
	blobName, err := ReportBlobName(filename)
	if err != nil {
		return "", err
	}

	c.logger.Info("uploading report to blob storage",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	_, err = blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		Metadata: map[string]*string{
			"contenttype": toPtr("application/pdf"),
		},
	})
	if err != nil {
		c.logger.Error("failed to upload report",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload PDF: %w", err)
	}

	return blobName, nil
}

// DownloadPDF downloads a report PDF by blob name
func (c *BlobStorageClient) DownloadPDF(ctx context.Context, blobName string) ([]byte, error) {
	if !strings.HasPrefix(blobName, reportPrefix) {
		return nil, fmt.Errorf("blob %q is not a report", blobName)
	}

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		c.logger.Error("failed to download report",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download PDF: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}

	return data, nil
}

func toPtr(s string) *string {
	return &s
}
