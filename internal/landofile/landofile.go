package landofile

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FileName is the Lando app definition inside a site directory.
const FileName = ".lando.yml"

const (
	keyName     = "name"
	keyRecipe   = "recipe"
	keyConfig   = "config"
	keyServices = "services"

	PhpMyAdmin      = "phpmyadmin"
	DefaultDatabase = "database"
)

var ErrNotMapping = errors.New("landofile: top level is not a mapping")

// File is a parsed Landofile. Mutations work on the YAML node tree so keys
// the caller does not touch keep their order and comments.
type File struct {
	doc *yaml.Node
}

// Parse reads a Landofile. Empty input yields an empty mapping.
func Parse(data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("landofile: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &File{doc: emptyDoc()}, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	return &File{doc: &doc}, nil
}

// Config holds the settings written under "config" for a new site.
type Config struct {
	Webroot  string
	PHP      string
	Database string
}

// New builds the Landofile for a freshly created site.
func New(name, recipe string, cfg Config) *File {
	f := &File{doc: emptyDoc()}
	root := f.root()
	setKey(root, keyName, scalar(name))
	setKey(root, keyRecipe, scalar(recipe))
	webroot := cfg.Webroot
	if webroot == "" {
		webroot = "."
	}
	php := cfg.PHP
	if php == "" {
		php = "8.1"
	}
	f.SetString(webroot, keyConfig, "webroot")
	f.SetPHP(php)
	if cfg.Database != "" {
		f.SetDatabase(cfg.Database)
	}
	return f
}

// Bytes serializes the file with two-space indentation.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *File) Name() string {
	v, _ := f.String(keyName)
	return v
}

func (f *File) Recipe() string {
	v, _ := f.String(keyRecipe)
	return v
}

// String returns the scalar at path.
func (f *File) String(path ...string) (string, bool) {
	n := f.root()
	for _, k := range path {
		if n.Kind != yaml.MappingNode {
			return "", false
		}
		_, n = lookup(n, k)
		if n == nil {
			return "", false
		}
	}
	if n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// SetString sets a scalar at path, creating intermediate mappings.
func (f *File) SetString(value string, path ...string) {
	f.set(scalar(value), path...)
}

// SetPHP sets config.php. The version is quoted so "8.0" is not read back as a number.
func (f *File) SetPHP(version string) {
	n := scalar(version)
	n.Style = yaml.SingleQuotedStyle
	f.set(n, keyConfig, "php")
}

// SetDatabase sets config.database, e.g. "mysql:8.0".
func (f *File) SetDatabase(spec string) {
	f.SetString(spec, keyConfig, "database")
}

// AddPhpMyAdmin declares a phpMyAdmin service bound to dbService.
func (f *File) AddPhpMyAdmin(dbService string) {
	if dbService == "" {
		dbService = DefaultDatabase
	}
	svc := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setKey(svc, "type", scalar(PhpMyAdmin))
	hosts := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{scalar(dbService)}}
	setKey(svc, "hosts", hosts)
	f.set(svc, keyServices, PhpMyAdmin)
}

// HasService reports whether services.<name> exists.
func (f *File) HasService(name string) bool {
	_, services := lookup(f.root(), keyServices)
	if services == nil || services.Kind != yaml.MappingNode {
		return false
	}
	_, svc := lookup(services, name)
	return svc != nil
}

// RemoveService deletes services.<name> and drops "services" when nothing is
// left in it. It reports whether anything was removed.
func (f *File) RemoveService(name string) bool {
	root := f.root()
	_, services := lookup(root, keyServices)
	if services == nil || services.Kind != yaml.MappingNode {
		return false
	}
	if !removeKey(services, name) {
		return false
	}
	if len(services.Content) == 0 {
		removeKey(root, keyServices)
	}
	return true
}

// TopLevelKeys lists the root keys in file order.
func (f *File) TopLevelKeys() []string {
	root := f.root()
	keys := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys
}

func (f *File) root() *yaml.Node { return f.doc.Content[0] }

func (f *File) set(value *yaml.Node, path ...string) {
	n := f.root()
	for i, k := range path {
		if i == len(path)-1 {
			setKey(n, k, value)
			return
		}
		_, child := lookup(n, k)
		if child == nil || child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setKey(n, k, child)
		}
		n = child
	}
}

func emptyDoc() *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func lookup(m *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i], m.Content[i+1]
		}
	}
	return nil, nil
}

func setKey(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			// keep comments attached to the old value
			value.HeadComment = m.Content[i+1].HeadComment
			value.LineComment = m.Content[i+1].LineComment
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalar(key), value)
}

func removeKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}
