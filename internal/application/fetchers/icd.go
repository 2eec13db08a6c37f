package fetchers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const (
	icdAccountsKey = "org.icd.list.accounts"
	// backupTimeFormat is the created_at layout of the databases API.
	backupTimeFormat = "2006-01-02T15:04:05.999999Z"
)

// icdAccount is one entry of the configured account list.
type icdAccount struct {
	Name           string
	ResourceGroups []string
}

func icdAccounts(cfg domain.Config) ([]icdAccount, error) {
	var out []icdAccount
	for i, m := range cfg.Maps(icdAccountsKey) {
		name := cast.ToString(m["account_name"])
		if name == "" {
			return nil, fmt.Errorf("%s[%d] has no account_name", icdAccountsKey, i)
		}
		var groups []string
		switch rg := m["resource_group_id"].(type) {
		case string:
			groups = []string{rg}
		default:
			groups = cast.ToStringSlice(rg)
		}
		out = append(out, icdAccount{Name: name, ResourceGroups: groups})
	}
	return out, nil
}

// DatabasesPath returns the database inventory of an account.
func DatabasesPath(account string) string {
	return RawPath("icd", fmt.Sprintf("databases_%s.json", account))
}

// Databases stores, per account, the database instances of each configured
// resource group.
type Databases struct {
	ibm domain.IBMCloudAPI
}

func (*Databases) Name() string        { return "icd.databases" }
func (*Databases) Description() string { return "IBM Cloud Databases inventory" }

func (f *Databases) Fetch(ctx context.Context, run *application.Run) error {
	accounts, err := icdAccounts(run.Config)
	if err != nil {
		return err
	}
	var errs []error
	for _, acct := range accounts {
		name := fmt.Sprintf("databases_%s.json", acct.Name)
		ev := domain.NewRawEvidence("icd", name, domain.Day, "list of all databases for account")
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			if f.ibm == nil {
				return notConfigured("ibm cloud")
			}
			apiKey, err := domain.AccountIBMCloudAPIKey(run.Creds, acct.Name)
			if err != nil {
				return err
			}
			tokens, err := f.ibm.Tokens(ctx, apiKey)
			if err != nil {
				return err
			}
			pages := []domain.JSONObject{}
			for _, rg := range acct.ResourceGroups {
				page, err := f.ibm.ResourceInstances(ctx, tokens, rg)
				if err != nil {
					return fmt.Errorf("resource group %s: %w", rg, err)
				}
				pages = append(pages, page)
			}
			return ev.SetJSON(pages)
		}))
	}
	return errors.Join(errs...)
}

// Backups stores, per account, the backups taken since the previous fetch
// of every database in the account's inventory.
type Backups struct {
	ibm domain.IBMCloudAPI
}

func (*Backups) Name() string        { return "icd.backups" }
func (*Backups) Description() string { return "IBM Cloud Databases backups" }

func (f *Backups) Fetch(ctx context.Context, run *application.Run) error {
	accounts, err := icdAccounts(run.Config)
	if err != nil {
		return err
	}
	var errs []error
	for _, acct := range accounts {
		name := fmt.Sprintf("backups_%s.json", acct.Name)
		ev := domain.NewRawEvidence("icd", name, domain.Day, "list of database backups for account")
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			start, err := run.LastUpdate(ev.Path())
			if err != nil {
				return err
			}
			if start.IsZero() {
				start = run.Now.Add(-domain.Day)
			}
			backups, err := f.backups(ctx, run, acct.Name, start)
			if err != nil {
				return err
			}
			return ev.SetJSON(backups)
		}))
	}
	return errors.Join(errs...)
}

func (f *Backups) backups(ctx context.Context, run *application.Run, account string, start time.Time) ([]any, error) {
	if f.ibm == nil {
		return nil, notConfigured("ibm cloud")
	}
	dbs, err := run.Evidence(DatabasesPath(account))
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(dbs.Content, &decoded); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", dbs.Path(), err)
	}
	items, ok := decoded.([]any)
	if !ok {
		items = []any{decoded}
	}
	apiKey, err := domain.AccountIBMCloudAPIKey(run.Creds, account)
	if err != nil {
		return nil, err
	}
	tokens, err := f.ibm.Tokens(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, item := range items {
		for _, db := range cast.ToSlice(cast.ToStringMap(item)["resources"]) {
			d := cast.ToStringMap(db)
			crn := cast.ToString(d["crn"])
			resp, err := f.ibm.DatabaseBackups(ctx, tokens, cast.ToString(d["region_id"]), crn)
			if err != nil {
				return nil, fmt.Errorf("backups of %s: %w", crn, err)
			}
			for _, b := range cast.ToSlice(resp["backups"]) {
				created, err := time.Parse(backupTimeFormat, cast.ToString(cast.ToStringMap(b)["created_at"]))
				if err != nil {
					run.Log.Warn("skipping backup with unreadable created_at", zap.String("crn", crn), zap.Error(err))
					continue
				}
				if created.After(start) {
					out = append(out, b)
				}
			}
		}
	}
	return out, nil
}
