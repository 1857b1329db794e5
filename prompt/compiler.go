// Package prompt compiles rich-text authored templates into canonical model
// prompts. Templates embed two marker element kinds: field references
// (data-ai-field, carrying a dotted field path) and record references
// (data-ai-record-id, carrying a numeric id scoped to a configured comodel).
package prompt

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/fieldwise/fieldwise"
)

const (
	// AttrField marks an inline element as a field reference.
	AttrField = "data-ai-field"

	// AttrRecordID marks an inline element as a record reference.
	AttrRecordID = "data-ai-record-id"
)

// Options configures one compilation.
type Options struct {
	// Comodel is the target model record references resolve against. Record
	// markers are ignored when empty.
	Comodel string

	// NameField overrides the comodel's naming field for display labels.
	NameField string

	// Replace selects resolution mode. When false the compiler runs in
	// validation mode: the template is returned unmodified and the raw sets
	// of referenced paths and cited ids are reported, including ids that do
	// not exist, so callers can raise missing/no-access diagnostics.
	Replace bool

	// Store and Access are consulted in resolution mode to resolve record
	// references. Non-existent or inaccessible records are dropped silently
	// there; stale references must not break authoring.
	Store  fieldwise.Store
	Access fieldwise.AccessChecker
}

// RecordInfo is one record reference resolved during compilation.
type RecordInfo struct {
	ID          int64
	DisplayName string
}

// Compiled is the result of one compilation.
type Compiled struct {
	// Prompt is the canonical plain-text prompt in resolution mode, or the
	// original template in validation mode.
	Prompt string

	// FieldPaths is the deduplicated, sorted set of referenced field paths.
	FieldPaths []string

	// Records lists the resolved record references (resolution mode only),
	// in canonical id order rather than citation order.
	Records []RecordInfo

	// CitedIDs is the raw set of record ids cited in the template
	// (validation mode only), including ids that do not exist.
	CitedIDs []int64
}

// Compile walks the template's markup tree, extracts field and record
// references, and produces the canonical prompt per Options.Replace.
func Compile(ctx context.Context, template string, opts Options) (*Compiled, error) {
	root, err := html.Parse(strings.NewReader(template))
	if err != nil {
		return nil, err
	}

	c := &compiler{ctx: ctx, opts: opts, paths: map[string]bool{}, cited: map[int64]bool{}}
	if err := c.walk(root); err != nil {
		return nil, err
	}

	out := &Compiled{
		FieldPaths: sortedPaths(c.paths),
	}

	if opts.Replace {
		out.Prompt = strings.TrimSpace(c.text.String())
		out.Records = c.records()
	} else {
		out.Prompt = template
		out.CitedIDs = sortedIDs(c.cited)
	}

	return out, nil
}

type compiler struct {
	ctx   context.Context
	opts  Options
	text  strings.Builder
	paths map[string]bool
	cited map[int64]bool

	resolved map[int64]string // id -> display name, existing records only
}

func (c *compiler) walk(n *html.Node) error {
	switch n.Type {
	case html.TextNode:
		c.text.WriteString(n.Data)
		return nil

	case html.ElementNode:
		if path, ok := attr(n, AttrField); ok {
			// A marker with no path is noise; delete rather than leave a
			// dangling placeholder.
			if path = strings.TrimSpace(path); path == "" {
				return nil
			}
			c.paths[path] = true
			if c.opts.Replace {
				c.text.WriteString("{{" + path + "}}")
				return nil
			}
			return c.walkChildren(n)
		}

		if raw, ok := attr(n, AttrRecordID); ok && c.opts.Comodel != "" {
			return c.visitRecordMarker(raw)
		}

		if err := c.walkChildren(n); err != nil {
			return err
		}
		if isBlock(n.Data) {
			c.text.WriteString("\n")
		}
		return nil
	}

	return c.walkChildren(n)
}

func (c *compiler) walkChildren(n *html.Node) error {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := c.walk(child); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) visitRecordMarker(raw string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		// Malformed id attribute, treated the same as a stale reference.
		return nil
	}
	c.cited[id] = true

	if !c.opts.Replace {
		return nil
	}

	name, ok, err := c.resolve(id)
	if err != nil {
		return err
	}
	if !ok {
		// Non-existent or inaccessible: marker dropped silently.
		return nil
	}
	c.text.WriteString(name)
	return nil
}

// resolve returns the display name of an existing, readable record of the
// comodel. ok is false for missing or access-denied records.
func (c *compiler) resolve(id int64) (name string, ok bool, err error) {
	if c.resolved == nil {
		c.resolved = map[int64]string{}
	}
	if name, hit := c.resolved[id]; hit {
		return name, true, nil
	}

	rec := fieldwise.Record{Model: c.opts.Comodel, ID: id}
	exists, err := c.opts.Store.Exists(c.ctx, rec)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}
	if c.opts.Access != nil && !c.opts.Access.CanRead(c.ctx, rec) {
		return "", false, nil
	}

	name, err = c.opts.Store.DisplayName(c.ctx, rec, c.opts.NameField)
	if err != nil {
		return "", false, err
	}
	c.resolved[id] = name
	return name, true, nil
}

func (c *compiler) records() []RecordInfo {
	ids := make([]int64, 0, len(c.resolved))
	for id := range c.resolved {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	infos := make([]RecordInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, RecordInfo{ID: id, DisplayName: c.resolved[id]})
	}
	return infos
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// isBlock reports whether an element breaks the line in the plain-text
// rendering of the template.
func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"tr", "table", "blockquote", "pre":
		return true
	}
	return false
}

func sortedPaths(set map[string]bool) []string {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
