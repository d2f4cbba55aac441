package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/shardsnap/shardsnap/internal/compression"
)

// AzureBlobSink uploads artifacts to an Azure Blob Storage container.
type AzureBlobSink struct {
	account     string
	container   string
	prefix      string
	compression string
	accessKey   string
}

func NewAzureBlobSink(opts map[string]interface{}) (Sink, error) {
	account, _ := opts["account"].(string)
	container, _ := opts["container"].(string)
	prefix, _ := opts["prefix"].(string)
	compression, _ := opts["compression"].(string)
	accessKey, _ := opts["access_key"].(string)
	if account == "" || container == "" || accessKey == "" {
		return nil, fmt.Errorf("azureblob sink requires 'account', 'container' and 'access_key' options")
	}
	return &AzureBlobSink{
		account:     account,
		container:   container,
		prefix:      prefix,
		compression: compression,
		accessKey:   accessKey,
	}, nil
}

func (a *AzureBlobSink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	cred, err := azblob.NewSharedKeyCredential(a.account, a.accessKey)
	if err != nil {
		return nil, fmt.Errorf("azure shared key credential error: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", a.account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client init error: %w", err)
	}
	blobName := a.prefix + name + compression.Ext(a.compression)
	blobClient := client.ServiceClient().NewContainerClient(a.container).NewBlockBlobClient(blobName)

	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		defer pr.Close()
		_, err := blobClient.UploadStream(ctx, pr, nil)
		if err != nil {
			_ = pr.CloseWithError(err)
		}
		errCh <- err
	}()

	w, err := compression.NewWriter(pw, a.compression)
	if err != nil {
		pw.Close()
		return nil, err
	}
	return &uploadWriter{compressor: w, pipe: pw, errCh: errCh}, nil
}

func init() {
	Register("azureblob", NewAzureBlobSink)
}
