package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationValidator(t *testing.T) {
	v, err := NewModerationValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "full response",
			body: `{"requestId":"run-1-0","riskLevel":"LOW","confidenceScore":0.92,"latencyMs":41,"success":true}`,
		},
		{
			name: "nullable fields",
			body: `{"requestId":"run-1-1","riskLevel":"HIGH","confidenceScore":null,"errorMessage":null}`,
		},
		{
			name:    "unknown risk level",
			body:    `{"requestId":"run-1-2","riskLevel":"SEVERE"}`,
			wantErr: "/riskLevel",
		},
		{
			name:    "missing request id",
			body:    `{"riskLevel":"LOW"}`,
			wantErr: "requestId",
		},
		{
			name:    "latency not an integer",
			body:    `{"requestId":"a","riskLevel":"LOW","latencyMs":1.5}`,
			wantErr: "/latencyMs",
		},
		{
			name:    "confidence out of range",
			body:    `{"requestId":"a","riskLevel":"MEDIUM","confidenceScore":3}`,
			wantErr: "/confidenceScore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %T", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_InvalidJSON(t *testing.T) {
	v, err := NewModerationValidator()
	require.NoError(t, err)

	err = v.Validate([]byte("not json"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid JSON"))
}

func TestValidate_Concurrent(t *testing.T) {
	v, err := NewModerationValidator()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.Validate([]byte(`{"requestId":"x","riskLevel":"LOW"}`)))
		}()
	}
	wg.Wait()
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"object","required":["verdict"]}`), 0644))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, v.Name())

	assert.NoError(t, v.Validate([]byte(`{"verdict":"ok"}`)))
	assert.Error(t, v.Validate([]byte(`{"riskLevel":"LOW"}`)))

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("bad.json", strings.NewReader(`{"type": 12}`))
	assert.Error(t, err)
}

func TestModerationResponse_IsACopy(t *testing.T) {
	doc := ModerationResponse()
	require.NotEmpty(t, doc)
	doc[0] = 'x'
	assert.Equal(t, byte('{'), ModerationResponse()[0])
}
