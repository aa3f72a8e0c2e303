package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"

	"tfdoc/internal/build"
	"tfdoc/internal/config"
	"tfdoc/internal/hclscan"
	"tfdoc/internal/modules"
	"tfdoc/internal/registry"
	"tfdoc/internal/slogutil"
	"tfdoc/internal/testutil"
)

func fixtureBuild(t *testing.T) (*build.Result, string) {
	t.Helper()
	root := testutil.FixtureRoot(t, "platform")
	cfg, err := config.LoadConfig(root)
	if err != nil {
		t.Fatal(err)
	}
	res, err := build.New(cfg, slogutil.NewDiscardLogger()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res, root
}

func TestSnapshot(t *testing.T) {
	res, root := fixtureBuild(t)
	usage := map[string][]string{"live/resource-aws_s3_bucket.artifacts": {"index", "storage"}}
	e := NewExporter(Options{Root: root, Usage: usage}, slogutil.NewDiscardLogger())
	snap := e.Snapshot(res)

	if snap.Metadata.ModuleCount != 4 || snap.Metadata.DefinitionCount != 11 {
		t.Errorf("metadata = %+v", snap.Metadata)
	}
	if snap.Modules[0].Fullname != "edge" || snap.Modules[2].Parent != "live" {
		t.Errorf("modules out of tree order: %+v", snap.Modules)
	}

	var bucket *Definition
	for _, m := range snap.Modules {
		for _, f := range m.Files {
			for i := range f.Definitions {
				if f.Definitions[i].Name == "aws_s3_bucket.artifacts" {
					bucket = &f.Definitions[i]
					if f.Path != "live/main.tf" {
						t.Errorf("file path = %s", f.Path)
					}
				}
			}
		}
	}
	if bucket == nil {
		t.Fatal("bucket missing from snapshot")
	}
	if bucket.Markup != "markdown" || len(bucket.ReferencedBy) != 2 || bucket.Attributes["bucket"] != "live-artifacts" {
		t.Errorf("bucket = %+v", bucket)
	}
}

func TestSnapshot_SkipsUndocumented(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"main.tf": "# Documented.\nvariable \"a\" {}\n\nvariable \"b\" {}\n",
	})
	cfg := config.DefaultConfig()
	cfg.RepoRoot = root
	res, err := build.New(cfg, slogutil.NewDiscardLogger()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		undocumented bool
		want         int
	}{
		{false, 1},
		{true, 2},
	}
	for _, tt := range tests {
		snap := NewExporter(Options{Root: root, Undocumented: tt.undocumented}, slogutil.NewDiscardLogger()).Snapshot(res)
		if snap.Metadata.DefinitionCount != tt.want {
			t.Errorf("undocumented=%v: %d definitions, want %d", tt.undocumented, snap.Metadata.DefinitionCount, tt.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	res, root := fixtureBuild(t)

	for _, compress := range []bool{false, true} {
		e := NewExporter(Options{Root: root, Compress: compress}, slogutil.NewDiscardLogger())
		var buf bytes.Buffer
		if err := e.WriteJSON(&buf, e.Snapshot(res)); err != nil {
			t.Fatalf("compress=%v: WriteJSON failed: %v", compress, err)
		}
		if got := isZstd(buf.Bytes()); got != compress {
			t.Errorf("compress=%v: zstd frame = %v", compress, got)
		}

		snap, err := ReadJSON(&buf)
		if err != nil {
			t.Fatalf("compress=%v: ReadJSON failed: %v", compress, err)
		}
		if snap.Metadata.BuildID != res.BuildID || len(snap.Modules) != 4 {
			t.Errorf("compress=%v: decoded %+v", compress, snap.Metadata)
		}
	}
}

func TestFormatText(t *testing.T) {
	res, root := fixtureBuild(t)
	e := NewExporter(Options{Root: root}, slogutil.NewDiscardLogger())
	text := e.FormatText(e.Snapshot(res))

	for _, want := range []string{
		"# Terraform: platform",
		"## live/network (modules/network)",
		"  ! outputs.tf",
		"$ resource aws_s3_bucket.artifacts",
		"# variable cidr",
		"Legend:",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text lacks %q:\n%s", want, text)
		}
	}
}

func TestOrganize(t *testing.T) {
	res, root := fixtureBuild(t)
	usage := map[string][]string{
		"edge/data-aws_ami.ubuntu":   {"a", "b"},
		"edge/resource-aws_vpc.main": {"a"},
	}
	snap := NewExporter(Options{Root: root, Usage: usage}, slogutil.NewDiscardLogger()).Snapshot(res)
	org := NewOrganizer(snap).Organize()

	if org.TotalModules != 4 || org.TotalDefinitions != 11 {
		t.Errorf("totals = %d modules, %d definitions", org.TotalModules, org.TotalDefinitions)
	}
	if org.ModuleMap[0].Fullname != "live" || org.ModuleMap[0].DefinitionCount != 5 {
		t.Errorf("largest module = %+v", org.ModuleMap[0])
	}

	var edge ModuleSummary
	for _, m := range org.ModuleMap {
		if m.Fullname == "edge" {
			edge = m
		}
	}
	if len(edge.TopDefinitions) != 2 || edge.TopDefinitions[0] != "data aws_ami.ubuntu" {
		t.Errorf("edge top = %v", edge.TopDefinitions)
	}

	want := []ModuleBridge{
		{FromModule: "live", ToModule: "live/network", Origin: "call"},
		{FromModule: "live/network", ToModule: "live/network/subnets", Origin: "nested"},
	}
	if len(org.Bridges) != len(want) {
		t.Fatalf("bridges = %+v", org.Bridges)
	}
	for i := range want {
		if org.Bridges[i] != want[i] {
			t.Errorf("bridge %d = %+v, want %+v", i, org.Bridges[i], want[i])
		}
	}

	text := FormatOrganizedText(org)
	if !strings.Contains(text, "- live → live/network (call)") || !strings.Contains(text, "Total: 4 modules") {
		t.Errorf("organized text:\n%s", text)
	}
	if NewOrganizer(nil).Organize().TotalModules != 0 {
		t.Error("nil snapshot should organize to nothing")
	}
}

func TestSymbolFor(t *testing.T) {
	live := modules.NewRoot("live", "/src/live")
	net := live.AddChild("network", "/src/net", modules.OriginCall)
	nested := net.AddChild("zones/private", "/src/net/zones/private", modules.OriginNested)

	tests := []struct {
		module *modules.Module
		kind   hclscan.Kind
		labels []string
		want   string
	}{
		{live, hclscan.KindResource, []string{"aws_s3_bucket", "artifacts"}, "tfdoc terraform live . resource/aws_s3_bucket#artifacts."},
		{net, hclscan.KindVariable, []string{"cidr"}, "tfdoc terraform live . network/variable/cidr."},
		{live, hclscan.KindModuleCall, []string{"network"}, "tfdoc terraform live . module/network/"},
		{nested, hclscan.KindOutput, []string{"zone.id"}, "tfdoc terraform live . network/zones/private/output/`zone.id`."},
	}
	for _, tt := range tests {
		d := &registry.Definition{Module: tt.module, Kind: tt.kind, Labels: tt.labels}
		if got := SymbolFor(d); got != tt.want {
			t.Errorf("SymbolFor(%s) = %q, want %q", d.Identifier(), got, tt.want)
		}
	}
}

func TestSCIP(t *testing.T) {
	res, root := fixtureBuild(t)
	e := NewExporter(Options{Root: root}, slogutil.NewDiscardLogger())

	path := filepath.Join(t.TempDir(), "index.scip")
	if err := e.WriteSCIP(res, path); err != nil {
		t.Fatalf("WriteSCIP failed: %v", err)
	}
	index, err := LoadSCIP(path)
	if err != nil {
		t.Fatalf("LoadSCIP failed: %v", err)
	}

	if index.Metadata.ToolInfo.Name != "tfdoc" || len(index.Documents) != len(res.Registry.Files()) {
		t.Fatalf("index metadata = %+v, %d documents", index.Metadata, len(index.Documents))
	}

	var doc *scippb.Document
	for _, d := range index.Documents {
		if d.RelativePath == "live/main.tf" {
			doc = d
		}
	}
	if doc == nil {
		t.Fatal("live/main.tf missing from index")
	}
	if len(doc.Occurrences) != 3 || len(doc.Symbols) != 3 {
		t.Errorf("occurrences = %d, symbols = %d", len(doc.Occurrences), len(doc.Symbols))
	}
	first := doc.Occurrences[0]
	if first.Symbol != "tfdoc terraform live . module/network/" || first.SymbolRoles&int32(scippb.SymbolRole_Definition) == 0 {
		t.Errorf("first occurrence = %+v", first)
	}
	if first.Range[0] != 7 {
		t.Errorf("module network header should start on zero-based line 7, got %v", first.Range)
	}

	if _, err := LoadSCIP(filepath.Join(t.TempDir(), "missing.scip")); err == nil {
		t.Error("missing index should fail")
	}
}
