package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	attributeID        = "id"
	attributeContainer = "data-pf-container"
	attributeAction    = "data-pf-action"
	attributeIndex     = "data-pf-index"

	scriptSelector      = `script[data-widget-id], script[src*="embed-v2.js"]`
	placeholderSelector = "div[data-project-id]"
	actionSelector      = "[" + attributeAction + "]"
	containerSelector   = "[" + attributeContainer + "]"
)

// Interaction names carried by data-pf-action.
const (
	ActionPrev   = "prev"
	ActionNext   = "next"
	ActionGoTo   = "goto"
	ActionExpand = "expand"
	ActionClose  = "close"
)

// ErrElementNotFound indicates an interaction aimed at a selector that matches nothing.
var ErrElementNotFound = errors.New("runtime: element not found")

// PageOptions configures a Page.
type PageOptions struct {
	Clock    Clock
	Resolver *Resolver
	Logger   *zap.Logger
	// LegacyDomain is used for placeholders without data-domain.
	LegacyDomain string
}

// Page is an HTML document hosting widget instances. Every document mutation goes through the page lock.
type Page struct {
	mu           sync.Mutex
	document     *goquery.Document
	claimed      map[*html.Node]bool
	handlers     map[*html.Node]*Instance
	instances    []*Instance
	registry     *Registry
	resolver     *Resolver
	clock        Clock
	logger       *zap.Logger
	legacyDomain string
}

// NewPage wraps a parsed document.
func NewPage(document *goquery.Document, options PageOptions) *Page {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.Clock
	if clock == nil {
		clock = RealClock{}
	}
	resolver := options.Resolver
	if resolver == nil {
		resolver = NewResolver(nil, logger)
	}
	return &Page{
		document:     document,
		claimed:      make(map[*html.Node]bool),
		handlers:     make(map[*html.Node]*Instance),
		registry:     NewRegistry(),
		resolver:     resolver,
		clock:        clock,
		logger:       logger,
		legacyDomain: options.LegacyDomain,
	}
}

// ParsePage parses an HTML document from reader.
func ParsePage(reader io.Reader, options PageOptions) (*Page, error) {
	document, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("runtime: parse page: %w", err)
	}
	return NewPage(document, options), nil
}

// Registry returns the instance registry of the page.
func (page *Page) Registry() *Registry {
	return page.registry
}

// Instances returns every instance mounted and not yet unloaded, including ones whose registry slot
// was taken over by a later instance with the same key.
func (page *Page) Instances() []*Instance {
	page.mu.Lock()
	defer page.mu.Unlock()
	instances := make([]*Instance, len(page.instances))
	copy(instances, page.instances)
	return instances
}

// MountScripts mounts every embed script not mounted before. Mount failures are reported through
// the returned error while the remaining scripts still mount.
func (page *Page) MountScripts(ctx context.Context) ([]*Instance, error) {
	page.mu.Lock()
	var scripts []*html.Node
	page.document.Find(scriptSelector).Each(func(_ int, selection *goquery.Selection) {
		node := selection.Get(0)
		if page.claimed[node] {
			return
		}
		page.claimed[node] = true
		scripts = append(scripts, node)
	})
	page.mu.Unlock()

	var instances []*Instance
	var mountErrors []error
	for _, script := range scripts {
		instance, err := page.mountScript(ctx, script)
		if instance != nil {
			instances = append(instances, instance)
		}
		if err != nil {
			mountErrors = append(mountErrors, err)
		}
	}
	return instances, errors.Join(mountErrors...)
}

// Unload destroys every instance of the page.
func (page *Page) Unload() {
	page.mu.Lock()
	instances := page.instances
	page.instances = nil
	page.mu.Unlock()

	for _, instance := range instances {
		instance.Destroy()
	}
}

// HTML renders the current document.
func (page *Page) HTML() (string, error) {
	page.mu.Lock()
	defer page.mu.Unlock()
	return page.document.Html()
}

// Query runs inspect against the selection matching selector while holding the page lock.
func (page *Page) Query(selector string, inspect func(*goquery.Selection)) {
	page.mu.Lock()
	defer page.mu.Unlock()
	inspect(page.document.Find(selector))
}

// EnsureStyle inserts a style element into the head unless one with the same id exists.
// It reports whether an element was inserted.
func (page *Page) EnsureStyle(styleID string, css string) bool {
	page.mu.Lock()
	defer page.mu.Unlock()
	if page.document.Find("style#"+styleID).Length() > 0 {
		return false
	}
	styleNode := &html.Node{
		Type:     html.ElementNode,
		Data:     atom.Style.String(),
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: attributeID, Val: styleID}},
	}
	styleNode.AppendChild(&html.Node{Type: html.TextNode, Data: css})

	head := page.document.Find("head").First()
	if head.Length() == 0 {
		page.document.Find("html").First().PrependNodes(styleNode)
		return true
	}
	head.AppendNodes(styleNode)
	return true
}

// RemoveStyle deletes the style element with the given id.
func (page *Page) RemoveStyle(styleID string) {
	page.mu.Lock()
	defer page.mu.Unlock()
	page.document.Find("style#" + styleID).Remove()
}

// StyleCount counts the style elements carrying styleID.
func (page *Page) StyleCount(styleID string) int {
	page.mu.Lock()
	defer page.mu.Unlock()
	return page.document.Find("style#" + styleID).Length()
}

// Click dispatches a click on the first element matching selector to the instance owning it.
func (page *Page) Click(selector string) (bool, error) {
	page.mu.Lock()
	target := page.document.Find(selector).First()
	if target.Length() == 0 {
		page.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	actionElement := target.Closest(actionSelector)
	containerElement := target.Closest(containerSelector)
	if actionElement.Length() == 0 || containerElement.Length() == 0 {
		page.mu.Unlock()
		return false, nil
	}
	action := actionElement.AttrOr(attributeAction, "")
	index, indexErr := strconv.Atoi(actionElement.AttrOr(attributeIndex, ""))
	if indexErr != nil {
		index = -1
	}
	instance := page.handlers[containerElement.Get(0)]
	page.mu.Unlock()

	if instance == nil {
		return false, nil
	}
	return instance.HandleAction(action, index), nil
}

// Hover delivers mouseenter (entering true) or mouseleave to the instance owning the container.
func (page *Page) Hover(containerID string, entering bool) bool {
	page.mu.Lock()
	container := page.document.Find("#" + containerID).First()
	var instance *Instance
	if container.Length() > 0 {
		instance = page.handlers[container.Get(0)]
	}
	page.mu.Unlock()

	if instance == nil {
		return false
	}
	if entering {
		return instance.HoverStart()
	}
	return instance.HoverEnd()
}

func newContainerNode(containerID string) *html.Node {
	container := &html.Node{
		Type:     html.ElementNode,
		Data:     atom.Div.String(),
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: attributeID, Val: containerID},
			{Key: attributeContainer, Val: containerID},
		},
	}
	return container
}

// insertAfter places a new container right after anchor and fills it with markup.
func (page *Page) insertAfter(anchor *html.Node, containerID string, markup string) *html.Node {
	page.mu.Lock()
	defer page.mu.Unlock()
	container := newContainerNode(containerID)
	page.document.FindNodes(anchor).AfterNodes(container)
	page.document.FindNodes(container).SetHtml(markup)
	return container
}

// appendInto places a new container as the last child of parent and fills it with markup.
func (page *Page) appendInto(parent *html.Node, containerID string, markup string) *html.Node {
	page.mu.Lock()
	defer page.mu.Unlock()
	container := newContainerNode(containerID)
	page.document.FindNodes(parent).AppendNodes(container)
	page.document.FindNodes(container).SetHtml(markup)
	return container
}

// setContainerHTML replaces the content of container. A container no longer attached to the
// document is left alone.
func (page *Page) setContainerHTML(container *html.Node, markup string) bool {
	page.mu.Lock()
	defer page.mu.Unlock()
	selection := page.document.FindNodes(container)
	if selection.Length() == 0 {
		return false
	}
	selection.SetHtml(markup)
	return true
}

// ContainerHTML returns the inner markup of the container with the given id.
func (page *Page) ContainerHTML(containerID string) (string, bool) {
	page.mu.Lock()
	defer page.mu.Unlock()
	container := page.document.Find("#" + containerID).First()
	if container.Length() == 0 {
		return "", false
	}
	markup, err := container.Html()
	if err != nil {
		return "", false
	}
	return markup, true
}

func (page *Page) track(container *html.Node, instance *Instance) {
	page.mu.Lock()
	defer page.mu.Unlock()
	page.handlers[container] = instance
	page.instances = append(page.instances, instance)
}

func (page *Page) untrack(container *html.Node, instance *Instance) {
	page.mu.Lock()
	defer page.mu.Unlock()
	if page.handlers[container] == instance {
		delete(page.handlers, container)
	}
	for index, tracked := range page.instances {
		if tracked == instance {
			page.instances = append(page.instances[:index], page.instances[index+1:]...)
			break
		}
	}
}

func (page *Page) claim(node *html.Node) bool {
	page.mu.Lock()
	defer page.mu.Unlock()
	if page.claimed[node] {
		return false
	}
	page.claimed[node] = true
	return true
}
