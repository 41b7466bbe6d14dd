// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rcellroot

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

const licenseHeader = "// Copyright (c) rcell.dev AUTHORS\n// SPDX-License-Identifier: BSD-3-Clause\n"

// sourceFiles returns the .go files of the module, skipping directories the
// go tool ignores.
func sourceFiles(c *qt.C) []string {
	var files []string
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && strings.ContainsAny(d.Name()[:1], "._") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.Not(qt.HasLen), 0)
	return files
}

func TestLicenseHeaders(t *testing.T) {
	c := qt.New(t)
	for _, name := range sourceFiles(c) {
		b, err := os.ReadFile(name)
		c.Assert(err, qt.IsNil)
		if !strings.HasPrefix(string(b), licenseHeader) {
			c.Errorf("%s: missing license header", name)
		}
	}
}

func TestPackageDocs(t *testing.T) {
	c := qt.New(t)

	docs := map[string][]*ast.File{} // dir => files carrying a package doc
	for _, name := range sourceFiles(c) {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(token.NewFileSet(), name, nil, parser.PackageClauseOnly|parser.ParseComments)
		c.Assert(err, qt.IsNil)
		dir := filepath.Dir(name)
		if _, ok := docs[dir]; !ok {
			docs[dir] = nil
		}
		if f.Doc == nil {
			continue
		}
		docs[dir] = append(docs[dir], f)

		txt := f.Doc.Text()
		if strings.Contains(txt, "SPDX-License-Identifier") {
			c.Errorf("%s: license header is attached to the package clause; add a blank line", name)
			continue
		}
		want := "Package " + f.Name.Name + " "
		if f.Name.Name == "main" {
			want = "The " + filepath.Base(dir) + " command "
		}
		if !strings.HasPrefix(txt, want) {
			c.Errorf("%s: package doc should start with %q, got %q", name, want, strings.SplitN(txt, "\n", 2)[0])
		}
	}
	for dir, files := range docs {
		switch len(files) {
		case 0:
			c.Errorf("no package doc in %s", dir)
		case 1:
		default:
			c.Errorf("%d files with a package doc in %s", len(files), dir)
		}
	}
}
