// Table export and import over local files, HTTP and S3.
package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// S3Options holds credentials for s3:// locations. Empty fields fall back
// to the default AWS configuration chain.
type S3Options struct {
	AccessKey string
	SecretKey string
	Region    string
	// Endpoint selects an S3-compatible service and enables path-style addressing.
	Endpoint string
}

type urlScheme string

const (
	schemeFile  urlScheme = "file"
	schemeS3    urlScheme = "s3"
	schemeHTTP  urlScheme = "http"
	schemeHTTPS urlScheme = "https"
	schemeLocal urlScheme = "local"
)

func detectScheme(path string) urlScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"):
		return schemeHTTPS
	case strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// ExportTable writes the schema and rows of a table as a JSON table document.
func (engine *Engine) ExportTable(ctx context.Context, name sql.TableName, location string, opts *S3Options) (int, error) {
	engine.database.RLock()
	table, err := engine.database.ResolveTable(name.Schema, name.Name)
	if err != nil {
		engine.database.RUnlock()
		return 0, err
	}
	document := table.Document()
	engine.database.RUnlock()

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode table '%s': %w", name, err)
	}

	writer, err := openRemoteWriter(ctx, location, opts)
	if err != nil {
		return 0, err
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return 0, fmt.Errorf("failed to write %s: %w", location, err)
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}
	engine.logger.Debug("table exported", "table", name.String(), "location", location, "rows", len(document.Rows))
	return len(document.Rows), nil
}

// ImportTable reads a JSON table document and creates the table it
// describes in the given schema, or the default schema when empty.
func (engine *Engine) ImportTable(ctx context.Context, schemaName, location string, opts *S3Options) (*ps.Table, error) {
	reader, err := openRemoteReader(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	document, err := ps.DecodeTableDocument(data)
	if err != nil {
		return nil, err
	}

	engine.database.Lock()
	defer engine.database.Unlock()

	schema := engine.database.DefaultSchema()
	if schemaName != "" {
		schema = engine.database.CreateSchema(schemaName)
	}
	table, err := schema.LoadDocument(document)
	if err != nil {
		return nil, err
	}
	if err := schema.LoadForeignKeys(document); err != nil {
		schema.DropTable(table.Name)
		return nil, err
	}
	engine.logger.Debug("table imported", "table", table.Name, "location", location, "rows", table.Count())
	return table, nil
}

func openRemoteReader(ctx context.Context, path string, opts *S3Options) (io.ReadCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return osOpen(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return openHTTPReader(ctx, path)
	case schemeS3:
		return openS3Reader(ctx, path, opts)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openRemoteWriter(ctx context.Context, path string, opts *S3Options) (io.WriteCloser, error) {
	switch scheme := detectScheme(path); scheme {
	case schemeLocal, schemeFile:
		return osCreate(strings.TrimPrefix(path, "file://"))
	case schemeHTTP, schemeHTTPS:
		return nil, fmt.Errorf("HTTP/HTTPS does not support writing")
	case schemeS3:
		return openS3Writer(ctx, path, opts)
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", path)
	}
}

func openHTTPReader(ctx context.Context, url string) (io.ReadCloser, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP request: %w", err)
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(url string) (bucket, key string, err error) {
	path := strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return parts[0], parts[1], nil
}

func getS3Client(ctx context.Context, opts *S3Options) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts != nil && opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts != nil && opts.AccessKey != "" && opts.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if opts != nil && opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func openS3Reader(ctx context.Context, url string, opts *S3Options) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}
	client, err := getS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	return resp.Body, nil
}

// s3Writer buffers a document and uploads it on Close.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buffer bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buffer.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func openS3Writer(ctx context.Context, url string, opts *S3Options) (io.WriteCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}
	client, err := getS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, client: client, bucket: bucket, key: key}, nil
}

// osOpen and osCreate are swapped in tests.
var osOpen = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

var osCreate = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}
