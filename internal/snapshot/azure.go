package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// AzureBackend stores snapshot blobs in an Azure Blob Storage container.
//
// Grounded on the teacher's storage.AzureBackend (internal/storage/azure.go),
// including its three-way auth selection (connection string, SAS token,
// shared key).
type AzureBackend struct {
	client        *azblob.Client
	containerName string
}

type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ContainerName    string
	SASToken         string
	ConnectionString string
}

func NewAzureBackend(ctx context.Context, cfg AzureConfig) (*AzureBackend, error) {
	var client *azblob.Client
	var err error

	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.SASToken != "":
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/?%s", cfg.AccountName, cfg.SASToken)
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "create azure shared key credential", err)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	default:
		return nil, apperrors.InvalidInput("azure backend requires a connection string, sas token, or account key", nil)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "create azure client", err)
	}

	if _, err := client.ServiceClient().NewContainerClient(cfg.ContainerName).GetProperties(ctx, nil); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "access azure container", err)
	}
	log.Info("azure snapshot backend initialized: container=%s", cfg.ContainerName)
	return &AzureBackend{client: client, containerName: cfg.ContainerName}, nil
}

func (a *AzureBackend) Type() string { return "azure" }

func (a *AzureBackend) Get(ctx context.Context, key string) ([]byte, error) {
	blob := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(key)
	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "download azure blob", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataCorruption, "read azure blob", err)
	}
	return data, nil
}

func (a *AzureBackend) Put(ctx context.Context, key string, data []byte) error {
	blob := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlockBlobClient(key)
	_, err := blob.Upload(ctx, &readSeekCloser{bytes.NewReader(data)}, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "upload azure blob", err)
	}
	return nil
}

func (a *AzureBackend) Exists(ctx context.Context, key string) (bool, error) {
	blob := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(key)
	_, err := blob.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeResourceExhausted, "get azure blob properties", err)
	}
	return true, nil
}

func (a *AzureBackend) Delete(ctx context.Context, key string) error {
	blob := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(key)
	_, err := blob.Delete(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "delete azure blob", err)
	}
	return nil
}

func (a *AzureBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	container := a.client.ServiceClient().NewContainerClient(a.containerName)
	pager := container.NewListBlobsFlatPager(&azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "list azure blobs", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return false
}

// readSeekCloser adapts a ReadSeeker for azblob's upload API, which wants a
// ReadSeekCloser.
type readSeekCloser struct {
	io.ReadSeeker
}

func (r *readSeekCloser) Close() error { return nil }
