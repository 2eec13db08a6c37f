package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/history"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/metrics"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/apptest"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

var now = time.Date(2020, 8, 20, 10, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	name  string
	ev    *domain.Evidence
	err   error
	calls int
}

func (f *fakeFetcher) Name() string        { return f.name }
func (f *fakeFetcher) Description() string { return "fake " + f.name }

func (f *fakeFetcher) Fetch(_ context.Context, run *application.Run) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	ev := *f.ev
	return run.Store(&ev, func(ev *domain.Evidence) error {
		return ev.SetJSON(map[string]int{"calls": f.calls})
	})
}

func newEnv(t *testing.T, locker *apptest.MemLocker) application.Environment {
	return application.Environment{
		Config: domain.DefaultConfig(),
		Locker: locker,
		Creds:  apptest.Creds{},
		Now:    locker.Now,
		Log:    zaptest.NewLogger(t),
	}
}

func TestFetchService_FetchStoresAndCommits(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	f := &fakeFetcher{name: "auditree.fake", ev: domain.NewRawEvidence("auditree", "fake.json", domain.Day, "Fake")}
	reg := application.NewRegistry()
	reg.AddFetchers(f)

	report, err := application.NewFetchService(newEnv(t, locker), reg).Fetch(context.Background(), nil, application.FetchOptions{})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, domain.StatusPass, res.Status)
	assert.Equal(t, []string{"raw/auditree/fake.json"}, res.Evidence)
	assert.Equal(t, domain.RunFetch, report.Kind)
	assert.NotEmpty(t, report.ID)
	assert.Len(t, locker.Commits, 1)
	assert.Equal(t, "0000000000000000000000000000000000000001", report.Commit)
	assert.JSONEq(t, `{"calls": 1}`, string(locker.Content("raw/auditree/fake.json")))
}

func TestFetchService_FreshEvidenceIsSkipped(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed("raw/auditree/fake.json", []byte(`{}`), now.Add(-time.Hour), domain.Day)
	f := &fakeFetcher{name: "auditree.fake", ev: domain.NewRawEvidence("auditree", "fake.json", domain.Day, "Fake")}
	reg := application.NewRegistry()
	reg.AddFetchers(f)
	svc := application.NewFetchService(newEnv(t, locker), reg)

	report, err := svc.Fetch(context.Background(), nil, application.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkip, report.Results[0].Status)
	assert.Equal(t, 1, locker.Versions("raw/auditree/fake.json"))
	assert.Empty(t, locker.Commits, "nothing written, nothing committed")

	report, err = svc.Fetch(context.Background(), nil, application.FetchOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, report.Results[0].Status)
	assert.Equal(t, 2, locker.Versions("raw/auditree/fake.json"))
}

func TestFetchService_StaleEvidenceIsRefetched(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	locker.Seed("raw/auditree/fake.json", []byte(`{}`), now.Add(-25*time.Hour), domain.Day)
	f := &fakeFetcher{name: "auditree.fake", ev: domain.NewRawEvidence("auditree", "fake.json", domain.Day, "Fake")}
	reg := application.NewRegistry()
	reg.AddFetchers(f)

	report, err := application.NewFetchService(newEnv(t, locker), reg).Fetch(context.Background(), nil, application.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, report.Results[0].Status)
	assert.Equal(t, 1, f.calls)
}

func TestFetchService_FailureDoesNotStopRun(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	bad := &fakeFetcher{name: "github.bad", err: errors.New("401 Bad credentials")}
	good := &fakeFetcher{name: "auditree.good", ev: domain.NewRawEvidence("auditree", "good.json", domain.Day, "Good")}
	reg := application.NewRegistry()
	reg.AddFetchers(bad, good)

	report, err := application.NewFetchService(newEnv(t, locker), reg).Fetch(context.Background(), nil, application.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, domain.StatusError, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "Bad credentials")
	assert.Equal(t, domain.StatusPass, report.Results[1].Status)
	assert.True(t, report.Failed())
}

func TestFetchService_UnknownName(t *testing.T) {
	reg := application.NewRegistry()
	reg.AddFetchers(&fakeFetcher{name: "auditree.fake"})
	_, err := application.NewFetchService(newEnv(t, apptest.NewMemLocker(now)), reg).
		Fetch(context.Background(), []string{"nope"}, application.FetchOptions{})
	assert.ErrorContains(t, err, `unknown fetcher "nope"`)
}

func TestFetchService_NoCommit(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	reg := application.NewRegistry()
	reg.AddFetchers(&fakeFetcher{name: "auditree.fake", ev: domain.NewRawEvidence("auditree", "fake.json", domain.Day, "Fake")})

	report, err := application.NewFetchService(newEnv(t, locker), reg).Fetch(context.Background(), nil, application.FetchOptions{NoCommit: true})
	require.NoError(t, err)
	assert.Empty(t, locker.Commits)
	assert.Empty(t, report.Commit)
}

func TestFetchService_SpansHistoryAndMetrics(t *testing.T) {
	locker := apptest.NewMemLocker(now)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	rec := metrics.New()
	dir := t.TempDir()

	env := newEnv(t, locker)
	env.Tracer = tp
	env.Recorder = rec
	env.History = history.New()
	env.LockerPath = dir

	reg := application.NewRegistry()
	reg.AddFetchers(
		&fakeFetcher{name: "auditree.one", ev: domain.NewRawEvidence("auditree", "one.json", domain.Day, "One")},
		&fakeFetcher{name: "auditree.two", ev: domain.NewRawEvidence("auditree", "two.json", domain.Day, "Two")},
	)
	report, err := application.NewFetchService(env, reg).Fetch(context.Background(), nil, application.FetchOptions{})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "fetch auditree.one", spans[0].Name())
	assert.Equal(t, "fetch auditree.two", spans[1].Name())

	runs, err := history.New().Load(dir)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.ID, runs[0].ID)

	mfs, err := rec.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
