package codegen

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/processor.go.tmpl
var processorTemplate string

//go:embed templates/models.go.tmpl
var modelsTemplate string

//go:embed templates/processor_test.go.tmpl
var testTemplate string

//go:embed templates/README.md.tmpl
var readmeTemplate string

// FrameworkPath is the import path of the indexer module generated code builds on.
const FrameworkPath = "github.com/longcipher/sui-indexer"

// TemplateData represents the data passed to templates.
type TemplateData struct {
	Name          string            // Processor name (PascalCase, e.g., "Lending")
	Package       string            // Go package name (lowercase, e.g., "lending")
	PackageID     string            // Move package id
	ImportPath    string            // Full import path for the generated package
	FrameworkPath string            // Import path of the indexer module
	Events        []*EventSignature // Events to generate code for
}

// RegistryName is the name the processor registers under.
func (d *TemplateData) RegistryName() string {
	return strings.ToLower(d.Name)
}

// ModelImports lists the packages models.go needs.
func (d *TemplateData) ModelImports() []string {
	var rawJSON, sprint bool
	for _, ev := range d.Events {
		for _, f := range ev.Fields {
			if strings.Contains(GoTypeName(f.Type), rawJSONType) {
				rawJSON = true
			}
			if IsScalar(f.Type) && GoTypeName(f.Type) != stringType {
				sprint = true
			}
		}
	}

	var imports []string
	if rawJSON {
		imports = append(imports, "encoding/json")
	}
	if sprint {
		imports = append(imports, "fmt")
	}
	return imports
}

// RenderProcessor generates the processor.go file content.
func RenderProcessor(data *TemplateData) (string, error) {
	return renderTemplate("processor", processorTemplate, data)
}

// RenderModels generates the models.go file content.
func RenderModels(data *TemplateData) (string, error) {
	return renderTemplate("models", modelsTemplate, data)
}

// RenderTest generates the processor_test.go file content.
func RenderTest(data *TemplateData) (string, error) {
	return renderTemplate("test", testTemplate, data)
}

// RenderReadme generates the README.md file content.
func RenderReadme(data *TemplateData) (string, error) {
	return renderTemplate("readme", readmeTemplate, data)
}

// renderTemplate renders a template with the given data.
func renderTemplate(name, tmplStr string, data *TemplateData) (string, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// templateFuncs returns the functions available in templates.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"GoTypeName":    GoTypeName,
		"GoFieldName":   GoFieldName,
		"AttributeExpr": AttributeExpr,
		"ToSnakeCase":   ToSnakeCase,
	}
}
