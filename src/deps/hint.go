package deps

import "strings"

type packageManager struct {
	label  string
	prefix string
	rename func(string) string
}

var managers = []packageManager{
	{label: "# Ubuntu/Debian:", prefix: "sudo apt update && sudo apt install", rename: func(p string) string { return p }},
	{label: "# Fedora:", prefix: "sudo dnf install", rename: fedoraName},
	{label: "# Arch Linux:", prefix: "sudo pacman -S", rename: archName},
}

// InstallHint renders install commands for every missing package, one block
// per package manager. Empty when the report is ready.
func InstallHint(r Report) string {
	pkgs := r.Packages()
	if len(pkgs) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(managers))
	for _, m := range managers {
		blocks = append(blocks, m.label+"\n"+m.prefix+" "+strings.Join(mapUnique(pkgs, m.rename), " "))
	}
	return strings.Join(blocks, "\n\n")
}

func mapUnique(pkgs []string, rename func(string) string) []string {
	seen := make(map[string]bool, len(pkgs))
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		n := rename(p)
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func fedoraName(p string) string {
	switch {
	case p == "tesseract-ocr":
		return "tesseract"
	case strings.HasPrefix(p, "tesseract-ocr-"):
		return "tesseract-langpack-" + strings.TrimPrefix(p, "tesseract-ocr-")
	}
	return p
}

func archName(p string) string {
	switch {
	case p == "tesseract-ocr":
		return "tesseract"
	case strings.HasPrefix(p, "tesseract-ocr-"):
		return "tesseract-data-" + strings.TrimPrefix(p, "tesseract-ocr-")
	}
	return p
}
