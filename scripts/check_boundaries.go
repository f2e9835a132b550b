// Command check_boundaries enforces the layering of the bounded contexts
// under contexts/. Run it from the module root: go run ./scripts
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "savemore"

// thirdPartyAllowlist names the only external packages the inner layers may
// import.
var thirdPartyAllowlist = []string{
	"github.com/shopspring/decimal",
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists the module-relative packages a layer may depend on. Paths
// are joined to the owning service prefix unless they start with "/".
type layerRule struct {
	allowed      []string
	noAdapters   bool
	noInfra      bool
	thirdParties bool
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed:      []string{"domain"},
		noAdapters:   true,
		noInfra:      true,
		thirdParties: true,
	},
	"ports": {
		allowed:      []string{"domain", "ports", "/contracts"},
		noAdapters:   true,
		noInfra:      true,
		thirdParties: true,
	},
	"application": {
		allowed:      []string{"application", "domain", "ports", "/contracts"},
		noAdapters:   true,
		noInfra:      true,
		thirdParties: true,
	},
	"transport": {
		noAdapters: true,
		noInfra:    true,
	},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		servicePrefix := strings.Join([]string{modulePath, "contexts", parts[1], parts[2]}, "/")
		violations = append(violations, validateFile(path, normalized, parts[3], servicePrefix)...)
		return nil
	})
	return violations
}

func validateFile(path string, normalizedPath string, layer string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		report := func(rule string) {
			violations = append(violations, violation{File: normalizedPath, Line: line, Import: importPath, Rule: rule})
		}

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			report("cross-module imports are forbidden")
		}
		for _, rule := range checkLayerImport(layer, importPath, servicePrefix) {
			report(rule)
		}
	}
	return violations
}

// checkLayerImport returns the names of the rules importPath breaks when
// imported from layer. Layers without a rule (adapters, module.go) are free.
func checkLayerImport(layer string, importPath string, servicePrefix string) []string {
	rule, ok := layerRules[layer]
	if !ok {
		return nil
	}

	var broken []string
	if rule.noAdapters && strings.Contains(importPath, "/adapters/") {
		broken = append(broken, layer+" must not import adapters")
	}
	if rule.noInfra && isInfrastructure(importPath) {
		broken = append(broken, layer+" must not import runtime infrastructure")
	}
	if rule.allowed == nil || isStdlib(importPath) {
		return broken
	}

	allowed := make([]string, 0, len(rule.allowed)+len(thirdPartyAllowlist))
	for _, rel := range rule.allowed {
		if strings.HasPrefix(rel, "/") {
			allowed = append(allowed, modulePath+rel)
		} else {
			allowed = append(allowed, servicePrefix+"/"+rel)
		}
	}
	if rule.thirdParties {
		allowed = append(allowed, thirdPartyAllowlist...)
	}
	if !isAllowed(importPath, allowed) {
		broken = append(broken, layer+" import is outside explicit allowlist")
	}
	return broken
}

func validateDomainImport(importPath string, servicePrefix string) []string {
	return checkLayerImport("domain", importPath, servicePrefix)
}

func validateApplicationImport(importPath string, servicePrefix string) []string {
	return checkLayerImport("application", importPath, servicePrefix)
}

func isInfrastructure(importPath string) bool {
	return hasPrefix(importPath, modulePath+"/internal") || hasPrefix(importPath, modulePath+"/cmd")
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
