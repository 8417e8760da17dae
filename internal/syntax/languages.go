package syntax

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Extension is the default source file extension.
const Extension = ".rs"

// The grammar is initialized lazily on first use via sync.Once.
var (
	rustGrammar *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Rust grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		rustGrammar = rust.GetLanguage()
	})
	return rustGrammar
}

// IsSourceFile reports whether path has the given extension, compared
// case-insensitively. An empty ext means Extension.
func IsSourceFile(path, ext string) bool {
	if ext == "" {
		ext = Extension
	}
	return strings.EqualFold(filepath.Ext(path), ext)
}
