package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":       true,
		"b.JPEG":      true,
		"c.png":       true,
		"d.webp":      true,
		"e.tif":       true,
		"notes.txt":   false,
		"noextension": false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	got := GenerateOutputFilename("/in/lot:7.png", "out", "", "_bounded", "jpg")
	want := filepath.Join("out", "lot_7_bounded.jpg")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	got = GenerateOutputFilename("photo", "out", "p_", "", "")
	if got != filepath.Join("out", "p_photo.jpg") {
		t.Errorf("Expected jpg fallback, got %s", got)
	}
}

func TestListAndExpand(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := EnsureDir(sub); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	for _, name := range []string{"b.jpg", "a.png", "skip.txt", filepath.Join("sub", "c.webp")} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 images, got %d: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "a.png" {
		t.Errorf("Expected sorted output, got %v", files)
	}

	single := filepath.Join(dir, "b.jpg")
	expanded, err := ExpandInputs([]string{single, sub})
	if err != nil {
		t.Fatalf("ExpandInputs failed: %v", err)
	}
	if len(expanded) != 2 {
		t.Errorf("Expected 2 inputs, got %v", expanded)
	}

	if _, err := ExpandInputs([]string{filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0644)

	if !FileExists(file) || FileExists(dir) {
		t.Error("FileExists gave wrong answer")
	}
	if !DirExists(dir) || DirExists(file) {
		t.Error("DirExists gave wrong answer")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" a/b:c. "); got != "a_b_c" {
		t.Errorf("Expected a_b_c, got %q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		1024:            "1.0 KB",
		1536:            "1.5 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %s, expected %s", size, got, want)
		}
	}
}
