package bot

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// helpDoc mirrors the static help document shipped next to the binary.
type helpDoc struct {
	Message  string            `json:"message"`
	Commands map[string]string `json:"commands"`
}

// LoadHelp reads and renders the help document into the reply text.
// Commands are listed one per line as "/name: description".
func LoadHelp(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = "help.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("help: read %s: %w", path, err)
	}
	var doc helpDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("help: parse %s: %w", path, err)
	}

	names := make([]string, 0, len(doc.Commands))
	for name := range doc.Commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(doc.Message)
	b.WriteString("\n\n")
	for _, name := range names {
		b.WriteString("/")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(doc.Commands[name])
		b.WriteString("\n")
	}
	return b.String(), nil
}
