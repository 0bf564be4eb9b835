package validate

import (
	"errors"
	"path/filepath"
	"testing"
)

// TestEntryPathSafePaths tests that legitimate paths pass validation
func TestEntryPathSafePaths(t *testing.T) {
	safePaths := []string{
		"file.txt",
		"dir/file.txt",
		"dir/subdir/",
		"edge_case_dots/sample../test.txt",
		"edge_case_dots/ending_dots..",
		"edge_case_dots/internal_dots..txt",
		"..hidden",
		"a/../b.txt",
		"./file.txt",
		"ünïcödé/名前.txt",
	}

	for _, path := range safePaths {
		t.Run("safe_"+path, func(t *testing.T) {
			if err := EntryPath(path); err != nil {
				t.Errorf("Expected path %q to be safe, but got error: %v", path, err)
			}
		})
	}
}

// TestEntryPathTraversal tests rejection of escaping and absolute paths
func TestEntryPathTraversal(t *testing.T) {
	unsafePaths := []string{
		"../escape.txt",
		"..",
		"a/../../escape.txt",
		"dir/../../../etc/passwd",
		"/etc/passwd",
		"C:/Windows/system32",
		"\\\\server\\share",
	}

	for _, path := range unsafePaths {
		t.Run("unsafe_"+path, func(t *testing.T) {
			err := EntryPath(path)
			if err == nil {
				t.Fatalf("Expected path %q to be rejected", path)
			}
			if !errors.Is(err, ErrEscape) {
				t.Errorf("Expected ErrEscape for %q, got %v", path, err)
			}
		})
	}
}

// TestEntryPathEmpty tests rejection of empty and NUL-containing paths
func TestEntryPathEmpty(t *testing.T) {
	for _, path := range []string{"", "   ", "\t", "file\x00name.txt"} {
		if err := EntryPath(path); err == nil {
			t.Errorf("Expected path %q to be rejected", path)
		}
	}
}

// TestWithin tests separator-aware containment
func TestWithin(t *testing.T) {
	root := filepath.FromSlash("/tmp/dist")

	cases := []struct {
		path string
		want bool
	}{
		{"/tmp/dist", true},
		{"/tmp/dist/", true},
		{"/tmp/dist/file.txt", true},
		{"/tmp/dist/a/b/c", true},
		{"/tmp/dist2", false},
		{"/tmp/dist2/file.txt", false},
		{"/tmp", false},
		{"/tmp/dist/../etc", false},
	}

	for _, tc := range cases {
		if got := Within(root, filepath.FromSlash(tc.path)); got != tc.want {
			t.Errorf("Within(%q, %q) = %t, want %t", root, tc.path, got, tc.want)
		}
	}

	if !Within(string(filepath.Separator), filepath.FromSlash("/anything")) {
		t.Errorf("Expected every absolute path to be within the filesystem root")
	}
}

// TestJoin tests joining entry paths onto a root
func TestJoin(t *testing.T) {
	root := t.TempDir()

	got, err := Join(root, "dir/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "dir", "file.txt"); got != want {
		t.Errorf("Join() = %q, want %q", got, want)
	}

	if _, err := Join(root, "../outside.txt"); !errors.Is(err, ErrEscape) {
		t.Errorf("Expected ErrEscape, got %v", err)
	}
}

// TestLinkTarget tests symlink target resolution relative to the link directory
func TestLinkTarget(t *testing.T) {
	root := t.TempDir()

	resolved, err := LinkTarget(root, filepath.Join(root, "a", "link"), "../file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(root, "file.txt"); resolved != want {
		t.Errorf("LinkTarget() = %q, want %q", resolved, want)
	}

	escaping := []string{
		"../outside",
		"../../etc/passwd",
		"/etc/passwd",
	}
	for _, target := range escaping {
		if _, err := LinkTarget(root, filepath.Join(root, "link"), target); !errors.Is(err, ErrEscape) {
			t.Errorf("Expected ErrEscape for target %q, got %v", target, err)
		}
	}

	if _, err := LinkTarget(root, filepath.Join(root, "link"), ""); err == nil {
		t.Errorf("Expected empty target to be rejected")
	}
}

// TestIsAbs tests absolute path detection across platforms
func TestIsAbs(t *testing.T) {
	absolute := []string{"/etc/passwd", "C:\\Windows", "c:/temp", "\\\\server\\share"}
	for _, path := range absolute {
		if !IsAbs(path) {
			t.Errorf("Expected %q to be absolute", path)
		}
	}

	relative := []string{"file.txt", "dir/file", "./file", "..", "sample../test.txt"}
	for _, path := range relative {
		if IsAbs(path) {
			t.Errorf("Expected %q to be relative", path)
		}
	}
}
