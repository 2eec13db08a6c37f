package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/azure"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/command"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/config"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/cos"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/github"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/history"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/ibmcloud"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/kube"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/locker"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/metrics"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/pypi"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/report"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/tracing"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/outbound/zenhub"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/checks"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/application/fetchers"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

// app is everything a fetch, check or MCP session runs with.
type app struct {
	env      application.Environment
	registry *application.Registry
	recorder *metrics.Recorder
	locker   *locker.GitLocker
	tracer   *sdktrace.TracerProvider
	log      *zap.Logger
}

func newLogger(w io.Writer, level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	var enc zapcore.Encoder
	if dev {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

// newApp loads the configuration and credentials, opens the locker and
// wires every provider adapter into the registered fetchers.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app, error) {
	log, err := newLogger(cmd.ErrOrStderr(), o.logLevel, o.devLog)
	if err != nil {
		return nil, err
	}

	cfg, err := config.New().Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	creds, err := config.LoadCredentials(o.credsPath)
	if err != nil {
		return nil, err
	}

	lk, err := locker.Open(o.lockerPath, locker.Options{
		RepoURL: cfg.String("locker.repo_url", ""),
		Branch:  cfg.String("locker.default_branch", fetchers.DefaultBranch),
		Logger:  log.Named("locker"),
	})
	if err != nil {
		return nil, err
	}

	deps, err := newDeps(cmd.Context(), cfg, creds, log)
	if err != nil {
		return nil, err
	}
	reg := application.NewRegistry()
	reg.AddFetchers(fetchers.All(deps)...)
	reg.AddChecks(checks.All()...)

	a := &app{
		registry: reg,
		recorder: metrics.New(),
		locker:   lk,
		log:      log,
	}
	a.env = application.Environment{
		Config:     cfg,
		Locker:     lk,
		Creds:      creds,
		LockerPath: o.lockerPath,
		History:    history.New(),
		Recorder:   a.recorder,
		Log:        log,
	}
	if o.trace {
		a.tracer = tracing.NewProvider(log)
		a.env.Tracer = a.tracer
	}
	return a, nil
}

func newDeps(ctx context.Context, cfg domain.Config, creds domain.Credentials, log *zap.Logger) (fetchers.Deps, error) {
	py, err := pypi.New("", log.Named("pypi"))
	if err != nil {
		return fetchers.Deps{}, fmt.Errorf("creating pypi client: %w", err)
	}
	endpoint := cfg.String("org.cos.endpoint_template", cos.EndpointTemplate)
	runner := command.New(log.Named("command"))
	return fetchers.Deps{
		GitHub:             github.Factory(ctx, creds, log.Named("github")),
		Zenhub:             zenhub.Factory(creds, log.Named("zenhub")),
		Azure:              azure.New(log.Named("azure")),
		IBMCloud:           ibmcloud.New(ibmcloud.DefaultEndpoints(), nil, log.Named("ibm_cloud")),
		CLIClusters:        ibmcloud.CLIClusterLister{Runner: runner},
		ClusterCredentials: ibmcloud.ParseClusterConfig,
		Kube:               kube.New(log.Named("kubernetes")),
		COS:                cos.New(nil, log.Named("cos")),
		COSEndpoint:        func(region string) string { return cos.Endpoint(endpoint, region) },
		PyPI:               py,
		Commands:           runner,
	}, nil
}

func (a *app) fetchService() *application.FetchService {
	return application.NewFetchService(a.env, a.registry)
}

func (a *app) checkService() *application.CheckService {
	return application.NewCheckService(a.env, a.registry, report.Renderer{})
}

func (a *app) close(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("shutting down tracer", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// componentNames lists the registered fetcher and check names without
// opening a locker.
func componentNames() (fetcherNames, checkNames []string) {
	for _, f := range fetchers.All(fetchers.Deps{}) {
		fetcherNames = append(fetcherNames, f.Name())
	}
	for _, c := range checks.All() {
		checkNames = append(checkNames, c.Name())
	}
	return fetcherNames, checkNames
}
