package core_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/geoimport/internal/ags"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/staging"
	"github.com/JonMunkholm/geoimport/internal/store/memory"
)

func newService(t *testing.T, cfg core.ServiceConfig) (*core.Service, *memory.Store) {
	t.Helper()
	reg, st := newFixture(t)
	stager, err := staging.NewFileStager(t.TempDir(), reg)
	require.NoError(t, err)
	return core.NewService(st, reg, stager, cfg), st
}

func siteBytes(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/site.ags")
	require.NoError(t, err)
	return data
}

func TestService_SummarizeStageCommit(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, core.ServiceConfig{MaxConcurrent: 2})

	summary, err := svc.Summarize(ctx, bytes.NewReader(siteBytes(t)), "p1")
	require.NoError(t, err)
	assert.Zero(t, st.Count("location"))

	staged, err := svc.Run(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, summary.Entries, staged.Entries)

	res, err := svc.Commit(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts["location"].Created)
	assert.Equal(t, 3, st.Count("sample"))

	// A run can only be committed once.
	_, err = svc.Commit(ctx, summary.RunID)
	assert.ErrorIs(t, err, core.ErrRunNotFound)
	assert.Equal(t, "IMP002", core.MapError(err).Code)

	assert.Equal(t, 0, svc.LimiterStatus().Active)
}

func TestService_ParseErrorStopsBeforeStore(t *testing.T) {
	svc, _ := newService(t, core.ServiceConfig{})

	_, err := svc.Summarize(context.Background(), strings.NewReader(`"GROUP","LOCA"
"HEADING","LOCA_ID"
"DATA","BH1"
`), "p1")

	var malformed *ags.MalformedGroupError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "AGS001", core.MapError(err).Code)
}

func TestService_InputLimits(t *testing.T) {
	svc, _ := newService(t, core.ServiceConfig{MaxFileSize: 64})
	ctx := context.Background()

	_, err := svc.Summarize(ctx, bytes.NewReader(siteBytes(t)), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")

	_, err = svc.Summarize(ctx, strings.NewReader("  \n"), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")

	_, err = svc.Summarize(ctx, strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Equal(t, "IMP005", core.MapError(err).Code)
}

func TestService_Inspect(t *testing.T) {
	svc, _ := newService(t, core.ServiceConfig{})

	doc, err := svc.Inspect(bytes.NewReader(siteBytes(t)))
	require.NoError(t, err)
	assert.Equal(t, []string{"GEOL", "LNMC", "LOCA", "PROJ", "SAMP"}, doc.Names())
}
