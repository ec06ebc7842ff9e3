package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
employees:
  - name: Alice
    email: alice@example.com
    department: Ops
    photo: photos/alice.jpg
  - name: Bob
    email: bob@example.com
    photo: /srv/photos/bob.png
`)
	m, err := loadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Employees) != 2 {
		t.Fatalf("entries = %d", len(m.Employees))
	}
	if want := filepath.Join(filepath.Dir(path), "photos", "alice.jpg"); m.Employees[0].Photo != want {
		t.Errorf("relative photo = %q, want %q", m.Employees[0].Photo, want)
	}
	if m.Employees[1].Photo != "/srv/photos/bob.png" {
		t.Errorf("absolute photo = %q", m.Employees[1].Photo)
	}
	if m.Employees[0].Department != "Ops" {
		t.Errorf("department = %q", m.Employees[0].Department)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":         "employees: []\n",
		"missing photo": "employees:\n  - name: Alice\n    email: alice@example.com\n",
		"missing email": "employees:\n  - name: Alice\n    photo: a.jpg\n",
		"not yaml":      "employees: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadManifest(writeManifest(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := loadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImport_RejectsZeroWorkers(t *testing.T) {
	prev := importWorkers
	t.Cleanup(func() { importWorkers = prev })

	for _, n := range []int{0, -2} {
		importWorkers = n
		err := importCmd.RunE(importCmd, []string{writeManifest(t, "employees: []\n")})
		if err == nil || !strings.Contains(err.Error(), "--workers") {
			t.Errorf("workers=%d: err = %v", n, err)
		}
	}
}
