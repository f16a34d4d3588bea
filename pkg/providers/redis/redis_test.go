package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/invocation-gateway/pkg/provider"
)

func TestNewClient_ParsesURL(t *testing.T) {
	rdb, err := NewClient("redis://:secret@127.0.0.1:6390/2")
	require.NoError(t, err)
	defer rdb.Close()

	assert.Equal(t, "127.0.0.1:6390", rdb.Options().Addr)
	assert.Equal(t, 2, rdb.Options().DB)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("http://not-redis")
	assert.Error(t, err)
}

func TestProvider_NilClientFailsConstruction(t *testing.T) {
	p := New(nil)
	_, err := p.New(context.Background(), provider.Config{})
	assert.Error(t, err)
}

func TestProvider_DecodeValidation(t *testing.T) {
	p := New(nil)
	assert.Equal(t, []string{"del", "get", "ping", "set"}, p.OperationNames())

	_, err := p.Operations["set"].Decode(map[string]interface{}{"key": "k", "value": "v", "ttlSeconds": 10})
	assert.NoError(t, err)

	_, err = p.Operations["set"].Decode(map[string]interface{}{"key": "k", "expire": 10})
	assert.Error(t, err)

	_, err = p.Operations["del"].Decode(map[string]interface{}{"keys": "not-a-list"})
	assert.Error(t, err)
}

func TestProvider_UnreachableServer(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	p := New(rdb)
	op := p.Operations["ping"]
	in, err := op.Decode(nil)
	require.NoError(t, err)

	client, err := p.New(context.Background(), provider.Config{})
	require.NoError(t, err)

	_, err = op.Call(context.Background(), client, in)
	assert.Error(t, err)
}

func TestProvider_ArgumentChecks(t *testing.T) {
	p := New(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}))
	client, err := p.New(context.Background(), provider.Config{})
	require.NoError(t, err)

	tests := []struct {
		op     string
		params map[string]interface{}
	}{
		{"get", map[string]interface{}{}},
		{"set", map[string]interface{}{"key": "k", "ttlSeconds": -1}},
		{"del", map[string]interface{}{"keys": []interface{}{}}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			in, err := p.Operations[tt.op].Decode(tt.params)
			require.NoError(t, err)
			_, err = p.Operations[tt.op].Call(context.Background(), client, in)
			assert.Error(t, err)
		})
	}
}
