package aas

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Package is the content read from an AASX file.
type Package struct {
	Environment *Node
	// Thumbnail is the part name of the package thumbnail, if any.
	Thumbnail string
}

// ReadPackage reads the JSON environment part of an AASX package. XML-only
// packages are rejected with ErrUnsupportedFormat.
func ReadPackage(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	pkg := &Package{}
	var envPart *zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		switch {
		case envPart == nil && strings.HasSuffix(name, ".json") && !strings.HasPrefix(path.Base(name), "["):
			envPart = f
		case pkg.Thumbnail == "" && isImage(name) && !strings.Contains(strings.TrimPrefix(name, "/"), "/"):
			pkg.Thumbnail = f.Name
		}
	}
	if envPart == nil {
		return nil, fmt.Errorf("%w: no JSON environment part", ErrUnsupportedFormat)
	}

	rc, err := envPart.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	env, err := ParseEnvironment(data)
	if err != nil {
		return nil, err
	}
	pkg.Environment = env
	if pkg.Thumbnail == "" {
		if shell := env.FirstShell(); shell != nil {
			pkg.Thumbnail = shell.Thumbnail
		}
	}
	return pkg, nil
}

func isImage(name string) bool {
	switch path.Ext(name) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return true
	}
	return false
}
