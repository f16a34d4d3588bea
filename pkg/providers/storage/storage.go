// Package storage is an in-process object storage provider: buckets of keyed objects, scoped by region.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/morezero/invocation-gateway/pkg/provider"
)

const (
	// Name is the provider name used in Invoke requests.
	Name    = "storage"
	Version = "1.0.0"
)

var (
	ErrMissingCredentials = errors.New("storage: missing access key id")
	ErrNoSuchBucket       = errors.New("NoSuchBucket: the specified bucket does not exist")
	ErrNoSuchKey          = errors.New("NoSuchKey: the specified key does not exist")
	ErrBucketExists       = errors.New("BucketAlreadyExists: the requested bucket name is not available")
	ErrBucketNotEmpty     = errors.New("BucketNotEmpty: the bucket you tried to delete is not empty")
)

type object struct {
	body     string
	modified time.Time
}

type bucket struct {
	created time.Time
	objects map[string]object
}

// Backend holds the buckets of every region. One Backend is shared by all clients.
type Backend struct {
	mu      sync.RWMutex
	regions map[string]map[string]*bucket
}

// NewBackend creates an empty Backend.
func NewBackend() *Backend {
	return &Backend{regions: make(map[string]map[string]*bucket)}
}

// Client is the per-invocation handle, bound to one region.
type Client struct {
	backend *Backend
	region  string
}

// Close does nothing; the backend outlives the client.
func (c *Client) Close() error { return nil }

func (c *Client) buckets(create bool) map[string]*bucket {
	b, ok := c.backend.regions[c.region]
	if !ok && create {
		b = make(map[string]*bucket)
		c.backend.regions[c.region] = b
	}
	return b
}

// New returns the storage provider bound to backend.
func New(backend *Backend) *provider.Provider {
	return &provider.Provider{
		Name:        Name,
		Version:     Version,
		Description: "In-process object storage (buckets and objects per region)",
		New: func(_ context.Context, cfg provider.Config) (provider.Client, error) {
			if cfg.AccessKeyID == "" {
				return nil, ErrMissingCredentials
			}
			region := cfg.Region
			if region == "" {
				return nil, fmt.Errorf("storage: region is required")
			}
			return &Client{backend: backend, region: region}, nil
		},
		Operations: map[string]provider.Operation{
			"listBuckets":  provider.Bind(listBuckets),
			"createBucket": provider.Bind(createBucket),
			"deleteBucket": provider.Bind(deleteBucket),
			"putObject":    provider.Bind(putObject),
			"getObject":    provider.Bind(getObject),
			"listObjects":  provider.Bind(listObjects),
			"deleteObject": provider.Bind(deleteObject),
		},
	}
}

// Bucket is one entry of ListBucketsOutput.
type Bucket struct {
	Name         string    `json:"Name"`
	CreationDate time.Time `json:"CreationDate"`
}

// ListBucketsOutput is the listBuckets response.
type ListBucketsOutput struct {
	Buckets []Bucket `json:"Buckets"`
}

func listBuckets(_ context.Context, c *Client, _ struct{}) (interface{}, error) {
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()

	out := ListBucketsOutput{Buckets: []Bucket{}}
	for name, b := range c.buckets(false) {
		out.Buckets = append(out.Buckets, Bucket{Name: name, CreationDate: b.created})
	}
	sort.Slice(out.Buckets, func(i, j int) bool { return out.Buckets[i].Name < out.Buckets[j].Name })
	return out, nil
}

// BucketInput names a bucket.
type BucketInput struct {
	Bucket string `json:"Bucket"`
}

// CreateBucketOutput is the createBucket response.
type CreateBucketOutput struct {
	Location string `json:"Location"`
}

func createBucket(_ context.Context, c *Client, in BucketInput) (interface{}, error) {
	if in.Bucket == "" {
		return nil, errors.New("storage: Bucket is required")
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	buckets := c.buckets(true)
	if _, ok := buckets[in.Bucket]; ok {
		return nil, ErrBucketExists
	}
	buckets[in.Bucket] = &bucket{created: time.Now().UTC(), objects: make(map[string]object)}
	return CreateBucketOutput{Location: "/" + in.Bucket}, nil
}

func deleteBucket(_ context.Context, c *Client, in BucketInput) (interface{}, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	buckets := c.buckets(false)
	b, ok := buckets[in.Bucket]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	if len(b.objects) > 0 {
		return nil, ErrBucketNotEmpty
	}
	delete(buckets, in.Bucket)
	return map[string]interface{}{}, nil
}

// PutObjectInput is the putObject request.
type PutObjectInput struct {
	Bucket string `json:"Bucket"`
	Key    string `json:"Key"`
	Body   string `json:"Body"`
}

// PutObjectOutput is the putObject response.
type PutObjectOutput struct {
	ContentLength int `json:"ContentLength"`
}

func putObject(_ context.Context, c *Client, in PutObjectInput) (interface{}, error) {
	if in.Key == "" {
		return nil, errors.New("storage: Key is required")
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	b, ok := c.buckets(false)[in.Bucket]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	b.objects[in.Key] = object{body: in.Body, modified: time.Now().UTC()}
	return PutObjectOutput{ContentLength: len(in.Body)}, nil
}

// ObjectInput names one object.
type ObjectInput struct {
	Bucket string `json:"Bucket"`
	Key    string `json:"Key"`
}

// GetObjectOutput is the getObject response.
type GetObjectOutput struct {
	Body          string    `json:"Body"`
	ContentLength int       `json:"ContentLength"`
	LastModified  time.Time `json:"LastModified"`
}

func getObject(_ context.Context, c *Client, in ObjectInput) (interface{}, error) {
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()

	b, ok := c.buckets(false)[in.Bucket]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	obj, ok := b.objects[in.Key]
	if !ok {
		return nil, ErrNoSuchKey
	}
	return GetObjectOutput{Body: obj.body, ContentLength: len(obj.body), LastModified: obj.modified}, nil
}

func deleteObject(_ context.Context, c *Client, in ObjectInput) (interface{}, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	b, ok := c.buckets(false)[in.Bucket]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	delete(b.objects, in.Key)
	return map[string]interface{}{}, nil
}

// ListObjectsInput is the listObjects request.
type ListObjectsInput struct {
	Bucket string `json:"Bucket"`
	Prefix string `json:"Prefix,omitempty"`
}

// ObjectSummary is one entry of ListObjectsOutput.
type ObjectSummary struct {
	Key          string    `json:"Key"`
	Size         int       `json:"Size"`
	LastModified time.Time `json:"LastModified"`
}

// ListObjectsOutput is the listObjects response.
type ListObjectsOutput struct {
	Contents []ObjectSummary `json:"Contents"`
	KeyCount int             `json:"KeyCount"`
}

func listObjects(_ context.Context, c *Client, in ListObjectsInput) (interface{}, error) {
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()

	b, ok := c.buckets(false)[in.Bucket]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	out := ListObjectsOutput{Contents: []ObjectSummary{}}
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, in.Prefix) {
			continue
		}
		out.Contents = append(out.Contents, ObjectSummary{Key: key, Size: len(obj.body), LastModified: obj.modified})
	}
	sort.Slice(out.Contents, func(i, j int) bool { return out.Contents[i].Key < out.Contents[j].Key })
	out.KeyCount = len(out.Contents)
	return out, nil
}
