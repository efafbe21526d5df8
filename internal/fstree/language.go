package fstree

import "strings"

var languageByExt = map[string]string{
	"py":   "python",
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"go":   "go",
	"java": "java",
	"c":    "c",
	"h":    "c",
	"cpp":  "c++",
	"cc":   "c++",
	"hpp":  "c++",
	"cs":   "csharp",
	"rs":   "rust",
	"rb":   "ruby",
	"php":  "php",
	"kt":   "kotlin",
	"swift": "swift",
	"sh":   "bash",
	"lua":  "lua",
	"pl":   "perl",
	"r":    "r",
}

// LanguageFor infers the execution language from a file name's extension.
// Unknown extensions map to "plaintext".
func LanguageFor(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return "plaintext"
	}
	ext := strings.ToLower(name[idx+1:])
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "plaintext"
}
