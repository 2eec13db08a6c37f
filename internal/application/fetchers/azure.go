package fetchers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/application"
	"github.com/ComplianceAsCode/auditree-arboretum/internal/domain"
)

const (
	azureAccountsKey   = "org.azure_cloud.accounts"
	assessmentsAPI     = "subscriptions/%s/providers/Microsoft.Security/assessmentMetadata?api-version=2020-01-01"
	subAssessmentsAPI  = "subscriptions/%s/providers/Microsoft.Security/subAssessments?api-version=2019-01-01-preview"
	azureAssessmentTTL = 8 * domain.Hour
)

// azureList stores, per configured account, every value listed under one
// Security Center API.
type azureList struct {
	azure  domain.AzureAPI
	api    string
	prefix string
	what   string
}

func (l azureList) fetch(ctx context.Context, run *application.Run) error {
	var errs []error
	for _, account := range run.Config.StringSlice(azureAccountsKey, nil) {
		name := fmt.Sprintf("%s_%s_list.json", l.prefix, account)
		desc := fmt.Sprintf("Azure Cloud %s list for account %s", l.what, account)
		ev := domain.NewRawEvidence("azure_cloud", name, azureAssessmentTTL, desc)
		errs = append(errs, run.Store(ev, func(ev *domain.Evidence) error {
			if l.azure == nil {
				return notConfigured("azure")
			}
			creds, err := domain.AccountAzureCredentials(run.Creds, account)
			if err != nil {
				return err
			}
			values, err := l.azure.ListValues(ctx, creds, fmt.Sprintf(l.api, creds.SubscriptionID))
			if err != nil {
				return err
			}
			out := newObject()
			out.Set(account, orEmpty(values))
			return ev.SetJSON(out)
		}))
	}
	return errors.Join(errs...)
}

// AzureAssessmentsMetadata stores the Security Center assessment metadata
// of each account's subscription.
type AzureAssessmentsMetadata struct {
	azure domain.AzureAPI
}

func (*AzureAssessmentsMetadata) Name() string { return "azure.assessments_metadata" }
func (*AzureAssessmentsMetadata) Description() string {
	return "Azure Cloud assessments metadata"
}

func (f *AzureAssessmentsMetadata) Fetch(ctx context.Context, run *application.Run) error {
	return azureList{azure: f.azure, api: assessmentsAPI, prefix: "assessment_metadata", what: "assessments metadata"}.fetch(ctx, run)
}

// AzureSubAssessments stores the Security Center sub assessments of each
// account's subscription.
type AzureSubAssessments struct {
	azure domain.AzureAPI
}

func (*AzureSubAssessments) Name() string        { return "azure.sub_assessments" }
func (*AzureSubAssessments) Description() string { return "Azure Cloud full sub assessments" }

func (f *AzureSubAssessments) Fetch(ctx context.Context, run *application.Run) error {
	return azureList{azure: f.azure, api: subAssessmentsAPI, prefix: "sub_assessment", what: "full sub assessments"}.fetch(ctx, run)
}
