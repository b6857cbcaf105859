// Command archcheck fails when a package imports from a higher layer.
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "github.com/globomap/acs-driver/"

type Level int

const (
	LevelCmd Level = iota + 1
	LevelOrchestration
	LevelDomain
	LevelCore
	LevelFoundation
)

var packageLevels = map[string]Level{
	"cmd":                 LevelCmd,
	"tools":               LevelCmd,
	"internal/consumer":   LevelOrchestration,
	"internal/sweep":      LevelOrchestration,
	"internal/documents":  LevelDomain,
	"internal/sink":       LevelDomain,
	"internal/queue":      LevelDomain,
	"internal/collectors": LevelDomain,
	"internal/metrics":    LevelDomain,
	"internal/events":     LevelCore,
	"pkg/config":          LevelCore,
	"internal/errors":     LevelFoundation,
	"internal/logger":     LevelFoundation,
	"pkg/types":           LevelFoundation,
}

type Violation struct {
	FromFile    string
	FromPackage string
	FromLevel   Level
	ToPackage   string
	ToLevel     Level
}

// getPackageLevel returns the level of the longest matching prefix
func getPackageLevel(pkgPath string) Level {
	best, level := -1, Level(0)
	for prefix, l := range packageLevels {
		if (pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/")) && len(prefix) > best {
			best, level = len(prefix), l
		}
	}
	return level
}

func getPackageFromPath(filePath string) string {
	dir := filepath.ToSlash(filepath.Dir(filePath))
	dir = strings.TrimPrefix(dir, "./")
	if dir == "." {
		return ""
	}
	return dir
}

func checkFile(filePath string) ([]Violation, error) {
	var violations []Violation

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, content, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	fromPackage := getPackageFromPath(filePath)
	fromLevel := getPackageLevel(fromPackage)
	if fromLevel == 0 {
		return violations, nil
	}

	for _, imp := range node.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		// only packages of this module are layered
		if !strings.HasPrefix(importPath, modulePath) {
			continue
		}
		importPath = strings.TrimPrefix(importPath, modulePath)

		toLevel := getPackageLevel(importPath)
		if toLevel == 0 {
			continue
		}

		if toLevel < fromLevel {
			violations = append(violations, Violation{
				FromFile:    filePath,
				FromPackage: fromPackage,
				FromLevel:   fromLevel,
				ToPackage:   importPath,
				ToLevel:     toLevel,
			})
		}
	}

	return violations, nil
}

func walkGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root && (strings.HasPrefix(info.Name(), "_") || strings.HasPrefix(info.Name(), ".") || info.Name() == "vendor") {
			return filepath.SkipDir
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func levelName(l Level) string {
	switch l {
	case LevelCmd:
		return "CMD (Level 1)"
	case LevelOrchestration:
		return "ORCHESTRATION (Level 2)"
	case LevelDomain:
		return "DOMAIN (Level 3)"
	case LevelCore:
		return "CORE (Level 4)"
	case LevelFoundation:
		return "FOUNDATION (Level 5)"
	default:
		return "UNKNOWN"
	}
}

func main() {
	fmt.Println("globomap-acs architecture level checker")
	fmt.Println()
	fmt.Println("  Level 1 (CMD):           cmd/, tools/")
	fmt.Println("  Level 2 (ORCHESTRATION): internal/consumer, sweep")
	fmt.Println("  Level 3 (DOMAIN):        internal/documents, sink, queue, collectors, metrics")
	fmt.Println("  Level 4 (CORE):          internal/events, pkg/config")
	fmt.Println("  Level 5 (FOUNDATION):    internal/errors, logger, pkg/types")
	fmt.Println()

	files, err := walkGoFiles(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking files: %v\n", err)
		os.Exit(1)
	}

	var allViolations []Violation
	for _, file := range files {
		violations, err := checkFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking %s: %v\n", file, err)
			continue
		}
		allViolations = append(allViolations, violations...)
	}

	fmt.Printf("Checked %d Go files\n", len(files))

	if len(allViolations) == 0 {
		fmt.Println("No architectural level violations found")
		os.Exit(0)
	}

	sort.Slice(allViolations, func(i, j int) bool {
		return allViolations[i].FromFile < allViolations[j].FromFile
	})

	fmt.Printf("Found %d architectural level violations:\n\n", len(allViolations))
	for _, v := range allViolations {
		fmt.Printf("  %s: %s imports %s (%s -> %s)\n",
			v.FromFile, v.FromPackage, v.ToPackage, levelName(v.FromLevel), levelName(v.ToLevel))
	}

	os.Exit(1)
}
