package commitlog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_MarshalShape(t *testing.T) {
	p := &Payload{
		InstanceCounts: []CountEntry{{TypeLabel: "person", Delta: 3}},
		Castings:       []FixEntry{{Index: "abc", ConceptIDs: []string{"v1", "v2"}}},
	}

	data, err := p.Marshal()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, 3)
	assert.Contains(t, raw, "instance-counts")
	assert.Contains(t, raw, "castings")
	assert.Contains(t, raw, "resources")

	// empty sections serialize as [] rather than null
	assert.Equal(t, "[]", string(raw["resources"]))
}

func TestPayload_RoundTrip(t *testing.T) {
	p := &Payload{
		InstanceCounts: []CountEntry{{TypeLabel: "name", Delta: -1}},
		Resources:      []FixEntry{{Index: "RESOURCE-name-alice", ConceptIDs: []string{"a", "b"}}},
	}
	data, err := p.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, p.InstanceCounts, got.InstanceCounts)
	assert.Equal(t, p.Resources, got.Resources)
}

func TestPayload_Empty(t *testing.T) {
	assert.True(t, (&Payload{}).Empty())
	assert.False(t, (&Payload{Castings: []FixEntry{{Index: "x"}}}).Empty())
}

func TestNewSink_SelectsNoop(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, ok := NewSink(InMemory, log).(NoopSink)
	assert.True(t, ok)
	_, ok = NewSink("", log).(NoopSink)
	assert.True(t, ok)
	_, ok = NewSink("http://localhost:4567", log).(*HTTPSink)
	assert.True(t, ok)
}

func TestHTTPSink_Submit(t *testing.T) {
	var gotPath, gotQuery, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := NewSink(srv.URL, log)

	p := &Payload{Castings: []FixEntry{{Index: "idx", ConceptIDs: []string{"v1"}}}}
	require.NoError(t, sink.Submit(context.Background(), "myks", p))

	assert.Equal(t, "/db/commit-log", gotPath)
	assert.Equal(t, "keyspace=myks", gotQuery)
	assert.Contains(t, gotBody, `"castings"`)
}

func TestHTTPSink_SubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "keyspace unknown", http.StatusNotFound)
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := NewSink(srv.URL, log)

	err := sink.Submit(context.Background(), "nope", &Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
