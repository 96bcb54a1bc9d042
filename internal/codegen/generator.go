package codegen

import (
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	mkdirPerm = 0755
	filePerm  = 0644
)

var packageIDRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// reservedNames are identifiers declared by processor.go.
var reservedNames = map[string]bool{
	"Name":          true,
	"OptionPackage": true,
	"PackageID":     true,
	"Processor":     true,
	"New":           true,
}

// Generator generates a processor package from Move event declarations.
type Generator struct {
	Name       string   // Processor name (e.g., "Lending")
	Package    string   // Go package name (e.g., "lending")
	PackageID  string   // Move package id the events belong to
	Events     []string // Event declarations
	OutputDir  string   // Output directory path
	ImportPath string   // Go import path of the generated package
	Force      bool     // Overwrite existing files
	DryRun     bool     // Don't write files, just show what would be generated
}

// GeneratedFiles represents the files that were generated.
type GeneratedFiles struct {
	ProcessorFile string // Path to processor.go
	ModelsFile    string // Path to models.go
	TestFile      string // Path to processor_test.go
	ReadmeFile    string // Path to README.md
}

// Generate renders and writes all processor files.
func (g *Generator) Generate() (*GeneratedFiles, error) {
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	events, err := g.parseEvents()
	if err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	if g.Package == "" {
		g.Package = strings.ToLower(g.Name)
	}
	if g.OutputDir == "" {
		g.OutputDir = filepath.Join(".", "processors", g.Package)
	}
	if g.ImportPath == "" {
		modulePath, err := getModulePath()
		if err != nil {
			g.ImportPath = "yourproject/processors/" + g.Package
		} else {
			cleanPath := filepath.ToSlash(strings.TrimPrefix(filepath.Clean(g.OutputDir), "./"))
			g.ImportPath = modulePath + "/" + cleanPath
		}
	}

	data := &TemplateData{
		Name:          g.Name,
		Package:       g.Package,
		PackageID:     strings.ToLower(g.PackageID),
		ImportPath:    g.ImportPath,
		FrameworkPath: FrameworkPath,
		Events:        events,
	}

	if !g.Force {
		if _, err := os.Stat(g.OutputDir); err == nil {
			return nil, fmt.Errorf("output directory already exists: %s (use --force to overwrite)", g.OutputDir)
		}
	}
	if !g.DryRun {
		if err := os.MkdirAll(g.OutputDir, mkdirPerm); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	type fileGen struct {
		path     *string
		render   func(*TemplateData) (string, error)
		filename string
		desc     string
	}

	files := &GeneratedFiles{}
	fileGens := []fileGen{
		{&files.ModelsFile, RenderModels, "models.go", "models"},
		{&files.ProcessorFile, RenderProcessor, "processor.go", "processor"},
		{&files.TestFile, RenderTest, "processor_test.go", "test"},
		{&files.ReadmeFile, RenderReadme, "README.md", "readme"},
	}

	for _, fg := range fileGens {
		content, err := fg.render(data)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", fg.desc, err)
		}

		if strings.HasSuffix(fg.filename, ".go") {
			formatted, err := format.Source([]byte(content))
			if err != nil {
				return nil, fmt.Errorf("generated %s does not parse: %w", fg.desc, err)
			}
			content = string(formatted)
		}

		*fg.path = filepath.Join(g.OutputDir, fg.filename)
		if err := g.writeFile(*fg.path, content); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// validate validates the generator configuration.
func (g *Generator) validate() error {
	if g.Name == "" {
		return fmt.Errorf("processor name is required")
	}
	if len(g.Events) == 0 {
		return fmt.Errorf("at least one event declaration is required")
	}
	if !structRe.MatchString(g.Name) {
		return fmt.Errorf("processor name should be PascalCase: %s", g.Name)
	}
	pkg := g.Package
	if pkg == "" {
		pkg = strings.ToLower(g.Name)
	}
	if !identRe.MatchString(pkg) || token.IsKeyword(pkg) {
		return fmt.Errorf("invalid package name: %s", pkg)
	}
	if !packageIDRe.MatchString(g.PackageID) {
		return fmt.Errorf("invalid Move package id: %q", g.PackageID)
	}
	return nil
}

// parseEvents parses the event declarations. Struct names must be unique.
func (g *Generator) parseEvents() ([]*EventSignature, error) {
	events := make([]*EventSignature, 0, len(g.Events))
	names := make(map[string]bool)

	for i, sig := range g.Events {
		event, err := ParseEventSignature(sig)
		if err != nil {
			return nil, fmt.Errorf("invalid event declaration #%d '%s': %w", i+1, sig, err)
		}

		if reservedNames[event.Name] {
			return nil, fmt.Errorf("event name %s clashes with a generated identifier", event.Name)
		}
		if names[event.Name] {
			return nil, fmt.Errorf("duplicate event name: %s", event.Name)
		}
		names[event.Name] = true

		events = append(events, event)
	}

	return events, nil
}

// writeFile writes content to a file, respecting DryRun and Force flags.
func (g *Generator) writeFile(path, content string) error {
	if g.DryRun {
		fmt.Printf("Would create: %s\n", path)
		return nil
	}

	if !g.Force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	fmt.Printf("Generated: %s\n", path)
	return nil
}

// getModulePath reads the module path from go.mod file.
func getModulePath() (string, error) {
	data, err := os.ReadFile("go.mod")
	if err != nil {
		return "", err
	}

	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module")), nil
		}
	}

	return "", fmt.Errorf("module directive not found in go.mod")
}

// PrintSummary prints a summary of what was generated.
func (g *Generator) PrintSummary(files *GeneratedFiles) {
	fmt.Println("\n✓ Successfully generated processor!")
	fmt.Printf("\nProcessor: %s\n", g.Name)
	fmt.Printf("Package:   %s\n", g.Package)
	fmt.Printf("Output:    %s\n", g.OutputDir)
	fmt.Printf("Events:    %d\n", len(g.Events))

	fmt.Println("\nGenerated files:")
	fmt.Printf("  • %s\n", files.ProcessorFile)
	fmt.Printf("  • %s\n", files.ModelsFile)
	fmt.Printf("  • %s\n", files.TestFile)
	fmt.Printf("  • %s\n", files.ReadmeFile)

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Review the generated code")
	fmt.Println("  2. Import it in cmd/indexer/main.go:")
	fmt.Printf("     import _ \"%s\"\n", g.ImportPath)
	fmt.Println("  3. Select it in your config:")
	fmt.Printf("     events:\n")
	fmt.Printf("       processor:\n")
	fmt.Printf("         name: %s\n", strings.ToLower(g.Name))
	fmt.Printf("       filters:\n")
	fmt.Printf("         - package: \"%s\"\n", strings.ToLower(g.PackageID))
	fmt.Println("\nFor more information, see the generated README.md")
}
