package classifier

import (
	"path/filepath"
	"strings"
	"sync"
)

// Strategy selects how a file is cut into chunks
type Strategy int

const (
	// StrategyObject splits a file into syntax-level units using a grammar parser
	StrategyObject Strategy = iota + 1
	// StrategyWholeFile treats the entire file as a single chunk
	StrategyWholeFile
)

func (s Strategy) String() string {
	switch s {
	case StrategyObject:
		return "object"
	case StrategyWholeFile:
		return "whole-file"
	default:
		return "unknown"
	}
}

// Language identifies a file's format. It picks the grammar for object-level
// extraction and tags the code fence in the embedding text.
type Language string

const (
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangMarkdown   Language = "markdown"
	LangTOML       Language = "toml"
	LangYAML       Language = "yaml"
	LangJSON       Language = "json"
	LangText       Language = "text"
)

// Rule is the result of classifying a path
type Rule struct {
	Strategy Strategy
	Language Language
}

// Classifier maps file extensions to extraction rules
type Classifier struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// New creates a Classifier with the default registrations
func New() *Classifier {
	c := &Classifier{rules: make(map[string]Rule)}

	c.Register(".go", StrategyObject, LangGo)
	c.Register(".rs", StrategyObject, LangRust)
	c.Register(".py", StrategyObject, LangPython)
	c.Register(".js", StrategyObject, LangJavaScript)
	c.Register(".mjs", StrategyObject, LangJavaScript)
	c.Register(".cjs", StrategyObject, LangJavaScript)

	c.Register(".md", StrategyWholeFile, LangMarkdown)
	c.Register(".markdown", StrategyWholeFile, LangMarkdown)
	c.Register(".toml", StrategyWholeFile, LangTOML)
	c.Register(".yaml", StrategyWholeFile, LangYAML)
	c.Register(".yml", StrategyWholeFile, LangYAML)
	c.Register(".json", StrategyWholeFile, LangJSON)
	c.Register(".txt", StrategyWholeFile, LangText)

	return c
}

// Register adds or replaces the rule for a file extension
func (c *Classifier) Register(ext string, strategy Strategy, lang Language) {
	ext = normalizeExt(ext)
	if ext == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[ext] = Rule{Strategy: strategy, Language: lang}
}

// Classify returns the rule for path. The second result is false for
// unrecognized extensions, which callers skip.
func (c *Classifier) Classify(path string) (Rule, bool) {
	ext := normalizeExt(filepath.Ext(path))
	if ext == "" {
		return Rule{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	rule, ok := c.rules[ext]
	return rule, ok
}

// Extensions returns the registered extensions
func (c *Classifier) Extensions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	exts := make([]string, 0, len(c.rules))
	for ext := range c.rules {
		exts = append(exts, ext)
	}
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
