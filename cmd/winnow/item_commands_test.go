package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"winnow/internal/api"
	"winnow/internal/testsupport"
)

func TestCLIScanListShow(t *testing.T) {
	env := setupCLITestEnv(t)

	root := env.cfg.Library.Roots[0]
	testsupport.WriteFile(t, filepath.Join(root, "Heat (1995)", "Heat.mkv"), 4096)
	testsupport.WriteFile(t, filepath.Join(root, "The Wire", "Season 01", "e01.mkv"), 2048)

	out, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Scanned 1 root(s): 2 items seen, 2 new, 0 swept gone")

	out, _, err = runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Heat (1995)")
	requireContains(t, out, "The Wire Season 1")

	out, _, err = runCLI(t, []string{"list", "movies"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	requireContains(t, out, "Heat (1995)")
	if strings.Contains(out, "The Wire") {
		t.Fatalf("movies listing should exclude TV seasons, got:\n%s", out)
	}

	id := itemIDByTitle(t, env.store, "Heat")
	out, _, err = runCLI(t, []string{"show", strconv.FormatInt(id, 10)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Heat (1995)")
	requireContains(t, out, "Active")
	requireContains(t, out, filepath.Join(root, "Heat (1995)"))
}

func TestCLIListEmptyScopes(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Catalog is empty")

	out, _, err = runCLI(t, []string{"list", "trash"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list trash: %v", err)
	}
	requireContains(t, out, "Trash is empty")

	_, _, err = runCLI(t, []string{"list", "music"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown list scope") {
		t.Fatalf("expected unknown scope error, got %v", err)
	}
}

func TestCLIListJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	root := env.cfg.Library.Roots[0]
	testsupport.WriteFile(t, filepath.Join(root, "Alien (1979)", "Alien.mkv"), 1024)
	if _, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}

	out, _, err := runCLI(t, []string{"list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}

	var payload struct {
		Items []api.Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("unmarshal items: %v\noutput:\n%s", err, out)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(payload.Items))
	}
	if payload.Items[0].Label != "Alien (1979)" {
		t.Fatalf("label = %q, want %q", payload.Items[0].Label, "Alien (1979)")
	}
}

func TestCLIMarkQuorumRescueFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.SeedUser(t, env.store, "alice")
	testsupport.SeedUser(t, env.store, "bob")

	root := env.cfg.Library.Roots[0]
	itemDir := filepath.Join(root, "Heat (1995)")
	testsupport.WriteFile(t, filepath.Join(itemDir, "Heat.mkv"), 4096)

	if _, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}
	id := strconv.FormatInt(itemIDByTitle(t, env.store, "Heat"), 10)

	out, _, err := runCLI(t, []string{"mark", id, "--user", "alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("mark alice: %v", err)
	}
	requireContains(t, out, `Marked "Heat (1995)" for deletion (1/2 votes)`)

	out, _, err = runCLI(t, []string{"unmark", id, "--user", "alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("unmark alice: %v", err)
	}
	requireContains(t, out, "(0/2 votes)")

	if _, _, err := runCLI(t, []string{"mark", id, "--user", "alice"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("re-mark alice: %v", err)
	}
	out, _, err = runCLI(t, []string{"mark", id, "--user", "bob"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("mark bob: %v", err)
	}
	requireContains(t, out, "All users agree; item moved to trash")

	trashPath := filepath.Join(filepath.Dir(root), filepath.Base(root)+"_trash", "Heat (1995)")
	if _, err := os.Stat(trashPath); err != nil {
		t.Fatalf("expected item under trash sibling: %v", err)
	}
	if _, err := os.Stat(itemDir); !os.IsNotExist(err) {
		t.Fatalf("expected item gone from library, stat err = %v", err)
	}

	out, _, err = runCLI(t, []string{"list", "trash"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list trash: %v", err)
	}
	requireContains(t, out, "Heat (1995)")

	out, _, err = runCLI(t, []string{"rescue", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rescue: %v", err)
	}
	requireContains(t, out, `Rescued "Heat (1995)" back to the library`)
	if _, err := os.Stat(itemDir); err != nil {
		t.Fatalf("expected item back in library: %v", err)
	}
}

func TestCLIPersistAndUnpersist(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.SeedUser(t, env.store, "carol")

	root := env.cfg.Library.Roots[0]
	itemDir := filepath.Join(root, "Alien (1979)")
	testsupport.WriteFile(t, filepath.Join(itemDir, "Alien.mkv"), 4096)

	if _, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}
	id := strconv.FormatInt(itemIDByTitle(t, env.store, "Alien"), 10)

	out, _, err := runCLI(t, []string{"persist", id, "--user", "carol"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	requireContains(t, out, `Moved "Alien (1979)" to permanent storage (owner: carol)`)

	permanentPath := filepath.Join(filepath.Dir(root), filepath.Base(root)+"_permanent", "Alien (1979)")
	if _, err := os.Stat(permanentPath); err != nil {
		t.Fatalf("expected item under permanent sibling: %v", err)
	}

	out, _, err = runCLI(t, []string{"show", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Permanent")
	requireContains(t, out, "carol")

	out, _, err = runCLI(t, []string{"unpersist", id, "--user", "carol"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("unpersist: %v", err)
	}
	requireContains(t, out, `Returned "Alien (1979)" to the shared library`)
	if _, err := os.Stat(itemDir); err != nil {
		t.Fatalf("expected item back in library: %v", err)
	}
}

func TestCLIReconcileSweepsMissingItems(t *testing.T) {
	env := setupCLITestEnv(t)

	root := env.cfg.Library.Roots[0]
	itemDir := filepath.Join(root, "Heat (1995)")
	testsupport.WriteFile(t, filepath.Join(itemDir, "Heat.mkv"), 1024)

	if _, _, err := runCLI(t, []string{"scan"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}
	id := strconv.FormatInt(itemIDByTitle(t, env.store, "Heat"), 10)

	if err := os.RemoveAll(itemDir); err != nil {
		t.Fatalf("remove item dir: %v", err)
	}

	out, _, err := runCLI(t, []string{"reconcile"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "finished in")
	requireContains(t, out, "1 swept gone")

	out, _, err = runCLI(t, []string{"show", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Gone")
}

func TestCLIShowRejectsBadIDs(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"show", "abc"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid item id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"show", "9999"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for unknown item")
	}
}

func TestCLIHealth(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "media_items table present: yes")
	requireContains(t, out, "Missing columns: none")
	requireContains(t, out, "Integrity check: yes")
}
