package runtime

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/embed"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

// ScanLegacy mounts every legacy placeholder not seen before. Calling it again after the document
// changed mounts only the new placeholders.
func (page *Page) ScanLegacy(ctx context.Context) ([]*Instance, error) {
	page.mu.Lock()
	var placeholders []*html.Node
	page.document.Find(placeholderSelector).Each(func(_ int, selection *goquery.Selection) {
		placeholders = append(placeholders, selection.Get(0))
	})
	page.mu.Unlock()

	var instances []*Instance
	var scanErrors []error
	for _, placeholder := range placeholders {
		if !page.claim(placeholder) {
			continue
		}
		instance, err := page.mountPlaceholder(ctx, placeholder)
		if instance != nil {
			instances = append(instances, instance)
		}
		if err != nil {
			scanErrors = append(scanErrors, err)
		}
	}
	return instances, errors.Join(scanErrors...)
}

func (page *Page) mountPlaceholder(ctx context.Context, placeholder *html.Node) (*Instance, error) {
	page.mu.Lock()
	attributes := LegacyAttributesFromSelection(page.document.FindNodes(placeholder))
	page.mu.Unlock()
	if attributes.ProjectID == "" {
		page.logger.Error("widget_missing_project_id")
		return nil, ErrMissingProjectID
	}
	if attributes.Domain == "" {
		attributes.Domain = page.legacyDomain
	}

	container := page.appendInto(placeholder, widget.ContainerID(attributes.ProjectID), widget.LoadingMarkup)
	instance := page.newInstance(embed.LegacyInstanceKey(attributes.ProjectID), attributes.ProjectID, container)
	page.logger.Debug("widget_placeholder_mounted", zap.String("project_id", attributes.ProjectID))
	return instance, page.load(ctx, instance, func(ctx context.Context) (widget.Config, error) {
		return page.resolver.ResolveLegacy(ctx, attributes)
	})
}

// Installation kinds reported by Installations.
const (
	InstallationScript = "script"
	InstallationLegacy = "legacy"
)

// Installation describes one embed found in the document.
type Installation struct {
	Kind       string
	WidgetID   string
	WidgetType string
	BaseURL    string
	Inline     bool
	Mounted    bool
}

// Installations lists every embed script and legacy placeholder in document order without mounting
// or fetching anything.
func (page *Page) Installations() []Installation {
	page.mu.Lock()
	defer page.mu.Unlock()

	var installations []Installation
	page.document.Find(scriptSelector + ", " + placeholderSelector).Each(func(_ int, selection *goquery.Selection) {
		node := selection.Get(0)
		if goquery.NodeName(selection) == "script" {
			attributes := ScriptAttributesFromSelection(selection)
			installations = append(installations, Installation{
				Kind:       InstallationScript,
				WidgetID:   attributes.WidgetID,
				WidgetType: attributes.WidgetType,
				BaseURL:    attributes.ResolvedBaseURL(),
				Inline:     attributes.Config != "",
				Mounted:    page.claimed[node],
			})
			return
		}
		attributes := LegacyAttributesFromSelection(selection)
		domain := attributes.Domain
		if domain == "" {
			domain = page.legacyDomain
		}
		installations = append(installations, Installation{
			Kind:     InstallationLegacy,
			WidgetID: attributes.ProjectID,
			BaseURL:  domain,
			Mounted:  page.claimed[node],
		})
	})
	return installations
}
