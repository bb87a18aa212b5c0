package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/installgrid/internal/matrix"
	"github.com/vk/installgrid/internal/report"
)

func sampleReport() *report.RunReport {
	spec := matrix.JobSpec{OS: "ubuntu-22.04", Version: "3.8", Method: "index"}
	return report.Aggregate("run-42", []matrix.JobSpec{spec}, []report.JobResult{
		{Spec: spec, Phase: report.PhaseDone, Status: report.StatusSuccess},
	})
}

func TestPublish_SignedPayloadIsDelivered(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotRunID, gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotRunID = r.Header.Get("X-InstallGrid-Run-ID")
		gotSig = r.Header.Get("X-InstallGrid-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewWebhookPublisher(srv.URL, "s3cret")
	require.NoError(t, p.Publish(context.Background(), sampleReport()))

	assert.Equal(t, "run-42", gotRunID)
	assert.True(t, VerifySignature("s3cret", gotBody, gotSig))
	assert.False(t, VerifySignature("wrong", gotBody, gotSig))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "Success", decoded["overall"])

	results, ok := decoded["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "Done", first["phase"])
	assert.Equal(t, "Success", first["status"])
}

func TestPublish_Non2xxIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewWebhookPublisher(srv.URL, "s3cret")
	err := p.Publish(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
