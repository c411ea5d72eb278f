package ruby

import (
	"archive/tar"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/strataforge/strata/env"
)

// rubyArchive builds a minimal ruby distribution tarball in memory.
func rubyArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		header := &tar.Header{
			Name: name,
			Mode: 0755,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("failed to write tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write tar content: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestInstallRubyURL(t *testing.T) {
	layer := &InstallRubyLayer{Version: "3.2.1", Stack: "heroku-22"}
	want := DefaultRubyBaseURL + "/heroku-22/ruby-3.2.1.tgz"
	if layer.URL() != want {
		t.Errorf("URL() = %s, want %s", layer.URL(), want)
	}

	layer.BaseURL = "http://mirror.test"
	if layer.URL() != "http://mirror.test/heroku-22/ruby-3.2.1.tgz" {
		t.Errorf("unexpected URL with custom base: %s", layer.URL())
	}
}

func TestInstallRubyCreateDownloadsAndUnpacks(t *testing.T) {
	archive := rubyArchive(t, map[string]string{
		"bin/ruby":       "#!/bin/true\n",
		"lib/libruby.so": "elf",
	})

	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write(archive)
	}))
	defer server.Close()

	layer := &InstallRubyLayer{
		Version: "3.2.1",
		Stack:   "heroku-22",
		BaseURL: server.URL,
		Client:  server.Client(),
	}
	layerPath := t.TempDir()

	result, err := layer.Create(buildContext(nil), layerPath)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if requestedPath != "/heroku-22/ruby-3.2.1.tgz" {
		t.Errorf("unexpected request path %s", requestedPath)
	}

	content, err := os.ReadFile(filepath.Join(layerPath, "bin", "ruby"))
	if err != nil {
		t.Fatalf("expected unpacked ruby binary: %v", err)
	}
	if string(content) != "#!/bin/true\n" {
		t.Errorf("unexpected binary content %q", content)
	}

	applied := result.Env.Apply(env.ScopeLaunch, env.FromMap(map[string]string{"PATH": "/usr/bin"}))
	if v, _ := applied.Get("PATH"); v != filepath.Join(layerPath, "bin")+":/usr/bin" {
		t.Errorf("expected ruby bin prepended to PATH, got %q", v)
	}
	if v, _ := applied.Get("LD_LIBRARY_PATH"); v != filepath.Join(layerPath, "lib") {
		t.Errorf("expected LD_LIBRARY_PATH set, got %q", v)
	}
}

func TestInstallRubyCreateRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	layer := &InstallRubyLayer{
		Version: "9.9.9",
		Stack:   "heroku-22",
		BaseURL: server.URL,
		Client:  server.Client(),
	}

	if _, err := layer.Create(buildContext(nil), t.TempDir()); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestUntarGzRejectsPathEscape(t *testing.T) {
	archive := rubyArchive(t, map[string]string{
		"../outside": "nope",
	})

	err := untarGz(bytes.NewReader(archive), t.TempDir())
	if err == nil {
		t.Fatal("expected error for escaping archive entry")
	}
}
