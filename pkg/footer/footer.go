// Package footer renders the attribution footer of public share pages.
package footer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const (
	defaultElementID  = "proofflow-footer"
	defaultBaseClass  = "pf-share-footer"
	defaultBrandText  = "Powered by ProofFlow"
	projectLinkPrefix = "More from "
)

// Link is an additional entry rendered after the attribution line.
type Link struct {
	Label string
	URL   string
}

// Config captures the content and style hooks of the footer.
type Config struct {
	ElementID   string
	BaseClass   string
	BrandText   string
	BrandURL    string
	ProjectName string
	ProjectURL  string
	Links       []Link
}

type footerView struct {
	ElementID        string
	BaseClass        string
	BrandText        string
	BrandURL         string
	ProjectLinkLabel string
	ProjectURL       string
	Links            []Link
}

var footerTemplate = template.Must(template.New("footer").Option("missingkey=error").Parse(`<footer id="{{.ElementID}}" class="{{.BaseClass}}">
  <div class="{{.BaseClass}}__inner">
    {{if .BrandURL}}<a class="{{.BaseClass}}__brand" href="{{.BrandURL}}" target="_blank" rel="noopener noreferrer">{{.BrandText}}</a>{{else}}<span class="{{.BaseClass}}__brand">{{.BrandText}}</span>{{end}}
    {{if .ProjectURL}}<a class="{{.BaseClass}}__project" href="{{.ProjectURL}}" target="_blank" rel="noopener noreferrer">{{.ProjectLinkLabel}}</a>{{end}}
    {{range .Links}}<a class="{{$.BaseClass}}__link" href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Label}}</a>{{end}}
  </div>
</footer>`))

// Render returns the footer HTML. Empty identity fields fall back to the ProofFlow defaults; links
// without a URL are skipped.
func Render(config Config) (template.HTML, error) {
	view := footerView{
		ElementID:  orDefault(config.ElementID, defaultElementID),
		BaseClass:  orDefault(config.BaseClass, defaultBaseClass),
		BrandText:  orDefault(config.BrandText, defaultBrandText),
		BrandURL:   strings.TrimSpace(config.BrandURL),
		ProjectURL: strings.TrimSpace(config.ProjectURL),
	}
	if view.ProjectURL != "" {
		projectName := strings.TrimSpace(config.ProjectName)
		if projectName == "" {
			projectName = view.ProjectURL
		}
		view.ProjectLinkLabel = projectLinkPrefix + projectName
	}
	for _, link := range config.Links {
		if strings.TrimSpace(link.URL) == "" {
			continue
		}
		view.Links = append(view.Links, Link{Label: orDefault(link.Label, link.URL), URL: strings.TrimSpace(link.URL)})
	}

	var buffer bytes.Buffer
	if err := footerTemplate.Execute(&buffer, view); err != nil {
		return "", fmt.Errorf("footer: render: %w", err)
	}
	return template.HTML(buffer.String()), nil
}

func orDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
