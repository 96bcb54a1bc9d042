package codegen

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPackageID = "0xd899cf7d2b5db716bd2cf55599fb0d5ee38a3061e7b6bb6eebf73fa5bc4c81ca"

func lendingGenerator(outputDir string) *Generator {
	return &Generator{
		Name:      "Lending",
		PackageID: testPackageID,
		Events: []string{
			"pool::DepositEvent(amount: u64, owner: address, coin_type: 0x1::ascii::String, decimals: u8)",
			"pool::BorrowEvent(amount: u64, owner: address, rates: vector<u64>, config: 0x2::bag::Bag)",
			"incentive::Paused",
		},
		OutputDir:  outputDir,
		ImportPath: "example.com/app/processors/lending",
	}
}

func TestGenerator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		gen     *Generator
		wantErr bool
	}{
		{
			name:    "valid configuration",
			gen:     &Generator{Name: "Lending", PackageID: "0x2", Events: []string{"pool::DepositEvent"}},
			wantErr: false,
		},
		{
			name:    "missing name",
			gen:     &Generator{PackageID: "0x2", Events: []string{"pool::DepositEvent"}},
			wantErr: true,
		},
		{
			name:    "missing events",
			gen:     &Generator{Name: "Lending", PackageID: "0x2"},
			wantErr: true,
		},
		{
			name:    "invalid name - lowercase",
			gen:     &Generator{Name: "lending", PackageID: "0x2", Events: []string{"pool::DepositEvent"}},
			wantErr: true,
		},
		{
			name:    "invalid package id",
			gen:     &Generator{Name: "Lending", PackageID: "lending", Events: []string{"pool::DepositEvent"}},
			wantErr: true,
		},
		{
			name:    "package name is a keyword",
			gen:     &Generator{Name: "Map", PackageID: "0x2", Events: []string{"pool::DepositEvent"}},
			wantErr: true,
		},
		{
			name: "invalid go package",
			gen: &Generator{
				Name: "Lending", Package: "my-pkg", PackageID: "0x2", Events: []string{"pool::DepositEvent"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gen.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerator_ParseEvents(t *testing.T) {
	tests := []struct {
		name      string
		events    []string
		wantCount int
		wantErr   bool
	}{
		{name: "single event", events: []string{"pool::DepositEvent(amount: u64)"}, wantCount: 1},
		{name: "multiple modules", events: []string{"pool::DepositEvent", "incentive::Paused"}, wantCount: 2},
		{name: "duplicate struct name", events: []string{"pool::Paused", "incentive::Paused"}, wantErr: true},
		{name: "reserved name", events: []string{"pool::Processor"}, wantErr: true},
		{name: "invalid declaration", events: []string{"Deposit(amount: u64)"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Generator{Events: tt.events}
			events, err := g.parseEvents()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, events, tt.wantCount)
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "lending")
	g := lendingGenerator(outputDir)

	files, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, "lending", g.Package)

	for _, path := range []string{files.ProcessorFile, files.ModelsFile, files.TestFile, files.ReadmeFile} {
		assert.FileExists(t, path)
	}

	fset := token.NewFileSet()
	for _, path := range []string{files.ProcessorFile, files.ModelsFile, files.TestFile} {
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		require.NoError(t, err, path)
		assert.Equal(t, "lending", f.Name.Name)
	}

	processorSrc, err := os.ReadFile(files.ProcessorFile)
	require.NoError(t, err)
	assert.Contains(t, string(processorSrc), `const Name = "lending"`)
	assert.Contains(t, string(processorSrc), `DepositEventType = "pool::DepositEvent"`)
	assert.Contains(t, string(processorSrc), `PausedType`)
	assert.Contains(t, string(processorSrc), FrameworkPath+"/pkg/processor")

	modelsSrc, err := os.ReadFile(files.ModelsFile)
	require.NoError(t, err)
	models := string(modelsSrc)
	assert.Contains(t, models, "type DepositEvent struct")
	assert.Contains(t, models, "CoinType")
	assert.Contains(t, models, `json:"coin_type"`)
	assert.Contains(t, models, "[]string")
	assert.Contains(t, models, "json.RawMessage")
	assert.Contains(t, models, "fmt.Sprint(e.Decimals)")
	assert.Contains(t, models, `"event": "paused"`)

	readme, err := os.ReadFile(files.ReadmeFile)
	require.NoError(t, err)
	assert.Contains(t, string(readme), `import _ "example.com/app/processors/lending"`)
}

func TestGenerator_ExistingDirectory(t *testing.T) {
	outputDir := t.TempDir()

	_, err := lendingGenerator(outputDir).Generate()
	require.ErrorContains(t, err, "already exists")

	g := lendingGenerator(outputDir)
	g.Force = true
	_, err = g.Generate()
	require.NoError(t, err)
}

func TestGenerator_DryRun(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "lending")
	g := lendingGenerator(outputDir)
	g.DryRun = true

	files, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "processor.go"), files.ProcessorFile)
	assert.NoDirExists(t, outputDir)
}

func TestTemplateData_ModelImports(t *testing.T) {
	parse := func(sigs ...string) []*EventSignature {
		out := make([]*EventSignature, 0, len(sigs))
		for _, s := range sigs {
			ev, err := ParseEventSignature(s)
			require.NoError(t, err)
			out = append(out, ev)
		}
		return out
	}

	tests := []struct {
		name   string
		events []*EventSignature
		want   []string
	}{
		{name: "strings only", events: parse("pool::A(amount: u64, owner: address)"), want: nil},
		{name: "numbers", events: parse("pool::A(decimals: u8)"), want: []string{"fmt"}},
		{name: "raw json", events: parse("pool::A(bytes: vector<u8>)"), want: []string{"encoding/json"}},
		{name: "both", events: parse("pool::A(ok: bool)", "pool::B(cfg: 0x2::bag::Bag)"), want: []string{"encoding/json", "fmt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &TemplateData{Events: tt.events}
			assert.Equal(t, tt.want, d.ModelImports())
		})
	}
}
