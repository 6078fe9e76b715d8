// Package lang identifies the source language of a scanned file so the right
// front-end grammar can be picked. Detection is by extension only; ambiguous
// or unknown files stay Unknown and are skipped upstream
package lang

import (
	"path/filepath"
	"strings"
)

// Language is a recognized source language
type Language string

const (
	Unknown    Language = ""
	Go         Language = "go"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
)

// All lists the languages a scan can visit, in display order
func All() []Language {
	return []Language{Go, JavaScript, TypeScript, Python}
}

// Known reports whether l is a recognized language
func (l Language) Known() bool { return l != Unknown }

var byExt = map[string]Language{
	".go":  Go,
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".tsx": TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
	".py":  Python,
	".pyi": Python,
}

// Detect maps a file path to its language. Declaration-only TypeScript
// (.d.ts) still reports TypeScript; callers filter by policy, not here
func Detect(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := byExt[ext]; ok {
		return l
	}
	return Unknown
}
