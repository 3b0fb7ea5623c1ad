package archive

// reader.go — Replay Source sobre archives del feed.
//
// Los archives son el mismo stream de envelopes, una línea por envelope,
// tal cual lo publica el exchange. Descompresión transparente por
// extensión (.gz, .bz2). EachLine es restartable: cada llamada abre el
// archivo desde cero y no guarda estado entre archivos.

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Las definiciones con cientos de runners caben de sobra en 4 MiB.
const maxLineBytes = 4 << 20

// EachLine llama fn con cada línea del archivo, en orden. Si fn devuelve
// error la iteración se corta y el error se propaga.
func EachLine(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive.EachLine: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("archive.EachLine: gzip %q: %w", path, err)
		}
		defer zr.Close()
		r = zr
	case ".bz2":
		r = bzip2.NewReader(f)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("archive.EachLine: read %q: %w", path, err)
	}
	return nil
}

// Expand resuelve los paths de entrada: los patterns glob se expanden y
// los paths literales pasan tal cual. El resultado sale ordenado y sin
// duplicados.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("archive.Expand: bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
