package modules

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"tfdoc/internal/config"
	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
	"tfdoc/internal/slogutil"
	"tfdoc/internal/testutil"
)

func newTestBuilder(nested bool) *Builder {
	opts := Options{DiscoverNested: nested, Ignore: []string{".terraform"}}
	return NewBuilder(opts, ScanFunc(hclscan.ScanFile), slogutil.NewDiscardLogger())
}

func fullnames(tree *Tree) []string {
	var out []string
	for _, m := range tree.All() {
		out = append(out, m.Fullname)
	}
	return out
}

func TestBuild_ModuleCalls(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"live/main.tf": `
module "network" {
  source = "./modules/network"
}

module "vpc" {
  source = "terraform-aws-modules/vpc/aws"
}

module "dynamic" {
  source = "./modules/${var.flavor}"
}
`,
		"live/modules/network/main.tf": `
module "subnets" {
  source = "../subnets"
}
`,
		"live/modules/subnets/main.tf": `variable "cidr" {}`,
	})

	res, err := newTestBuilder(false).Build(context.Background(), []config.RootSource{
		{Name: "live", Path: filepath.Join(root, "live")},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := "live,live/network,live/network/subnets"
	if got := strings.Join(fullnames(res.Tree), ","); got != want {
		t.Errorf("modules = %s, want %s", got, want)
	}

	sub := res.Tree.Lookup("live/network/subnets")
	if sub == nil {
		t.Fatal("subnets module missing")
	}
	if sub.Parent == nil || sub.Parent.Fullname != "live/network" {
		t.Errorf("subnets parent = %v", sub.Parent)
	}
	if sub.Root().Name != "live" || sub.Depth() != 2 {
		t.Errorf("root/depth = %s/%d", sub.Root().Name, sub.Depth())
	}
	if len(sub.Files) != 1 || filepath.Base(sub.Files[0]) != "main.tf" {
		t.Errorf("files = %v", sub.Files)
	}
	if len(res.Problems) != 0 {
		t.Errorf("unexpected problems: %v", res.Problems)
	}
}

func TestBuild_NestedDiscovery(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"main.tf":                     `module "db" { source = "./components/db" }`,
		"components/db/main.tf":       `resource "aws_db_instance" "main" {}`,
		"components/cache/main.tf":    `resource "aws_elasticache_cluster" "main" {}`,
		"envs/README.md":              "no terraform here",
		".terraform/modules/x/mod.tf": `variable "ignored" {}`,
		".hidden/main.tf":             `variable "hidden" {}`,
	})

	res, err := newTestBuilder(true).Build(context.Background(), []config.RootSource{{Name: "infra", Path: root}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := "infra,infra/db,infra/components/cache"
	if got := strings.Join(fullnames(res.Tree), ","); got != want {
		t.Errorf("modules = %s, want %s", got, want)
	}
	if m := res.Tree.Lookup("infra/components/cache"); m == nil || m.Origin != OriginNested {
		t.Errorf("cache module = %+v", m)
	}
	if m := res.Tree.Lookup("infra/db"); m == nil || m.Origin != OriginCall {
		t.Errorf("db module = %+v", m)
	}
}

func TestBuild_MultipleRoots(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"b/main.tf":        `variable "x" {}`,
		"a/main.tf":        `module "shared" { source = "../shared" }`,
		"shared/shared.tf": `output "o" { value = 1 }`,
	})

	res, err := newTestBuilder(false).Build(context.Background(), []config.RootSource{
		{Name: "b", Path: filepath.Join(root, "b")},
		{Name: "a", Path: filepath.Join(root, "a")},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := strings.Join(fullnames(res.Tree), ","); got != "a,a/shared,b" {
		t.Errorf("modules = %s", got)
	}
	if res.Tree.Root("b") == nil || res.Tree.Root("missing") != nil {
		t.Error("Root lookup mismatch")
	}
	if mods := res.Tree.ForDir(filepath.Join(root, "shared")); len(mods) != 1 {
		t.Errorf("ForDir(shared) = %v", mods)
	}
}

func TestBuild_DuplicateModule(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"main.tf":         `module "net" { source = "./other" }`,
		"other/main.tf":   `variable "a" {}`,
		"net/main.tf":     `variable "b" {}`,
		"unrelated/x.txt": "",
	})

	_, err := newTestBuilder(true).Build(context.Background(), []config.RootSource{{Name: "r", Path: root}})
	if !errors.HasCode(err, errors.DuplicateModule) {
		t.Fatalf("err = %v, want DUPLICATE_MODULE", err)
	}
	if !errors.IsFatal(errors.CodeOf(err)) {
		t.Error("duplicate module must be fatal")
	}
}

func TestBuild_CyclePruned(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"a/main.tf": `module "b" { source = "../b" }`,
		"b/main.tf": `module "a" { source = "../a" }`,
	})

	res, err := newTestBuilder(false).Build(context.Background(), []config.RootSource{{Name: "a", Path: filepath.Join(root, "a")}})
	if err != nil {
		t.Fatalf("cycle must not be fatal: %v", err)
	}
	if got := strings.Join(fullnames(res.Tree), ","); got != "a,a/b" {
		t.Errorf("modules = %s", got)
	}
	if !res.HasCycles() {
		t.Fatalf("expected a MODULE_CYCLE problem, got %v", res.Problems)
	}
}

func TestBuild_MissingSources(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"main.tf": `module "gone" { source = "./gone" }`,
	})

	res, err := newTestBuilder(false).Build(context.Background(), []config.RootSource{{Name: "r", Path: root}})
	if err != nil {
		t.Fatalf("missing call target must not be fatal: %v", err)
	}
	if len(res.Problems) != 1 || res.Problems[0].Code != errors.SourceNotFound {
		t.Errorf("problems = %v", res.Problems)
	}

	_, err = newTestBuilder(false).Build(context.Background(), []config.RootSource{{Name: "x", Path: filepath.Join(root, "nope")}})
	if !errors.HasCode(err, errors.SourceNotFound) {
		t.Errorf("missing root err = %v", err)
	}
}

func TestBuild_Canceled(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{"main.tf": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestBuilder(false).Build(ctx, []config.RootSource{{Name: "r", Path: root}}); err == nil {
		t.Error("expected context error")
	}
}

func TestIsLocalSource(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"./mod", true},
		{"../mod", true},
		{"..", true},
		{"git::https://example.com/vpc.git", false},
		{"hashicorp/consul/aws", false},
		{"/abs/path", false},
	}
	for _, tt := range tests {
		if got := IsLocalSource(tt.source); got != tt.want {
			t.Errorf("IsLocalSource(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}
