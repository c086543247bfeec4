package cmd

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/k3nlo/Jatalog/flags"
	"github.com/k3nlo/Jatalog/testutil"
)

func writeConfig(t *testing.T, name, s string) string {
	t.Helper()

	err := testutil.CleanDir("testdata", nil)
	if err != nil {
		t.Fatal(err)
	}
	fn := filepath.Join("testdata", name)
	err = ioutil.WriteFile(fn, []byte(s), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestLoadConfig(t *testing.T) {
	defer func(ll, st string) {
		logLevel = ll
		store = st
		flgs = flags.Default()
		cfg = map[string]interface{}{}
	}(logLevel, store)

	fn := writeConfig(t, "jatalog.hcl", `
log-level = "debug"
store = "bbolt"
format = "yaml"
semi_naive = false
accounts = [
    {user = "alice", password = "secret"},
    {user = "bob", password = "hunter2"},
]
`)

	err := loadConfig(fn, map[string]struct{}{"format": {}})
	if err != nil {
		t.Fatalf("loadConfig(%s) failed with %s", fn, err)
	}
	if logLevel != "debug" {
		t.Errorf("loadConfig(%s) log-level got %s want debug", fn, logLevel)
	}
	if store != "bbolt" {
		t.Errorf("loadConfig(%s) store got %s want bbolt", fn, store)
	}
	if format != "text" {
		t.Errorf("loadConfig(%s) format got %s want text", fn, format)
	}
	if flgs.GetFlag(flags.SemiNaive) {
		t.Errorf("loadConfig(%s) semi_naive got true want false", fn)
	}

	accounts := userAccounts()
	if len(accounts) != 2 || accounts["alice"] != "secret" || accounts["bob"] != "hunter2" {
		t.Errorf("userAccounts() got %v", accounts)
	}
}

func TestLoadConfigFails(t *testing.T) {
	defer func() {
		flgs = flags.Default()
		cfg = map[string]interface{}{}
	}()

	cases := []string{
		`not_a_variable = 10`,
		`semi_naive = "yes"`,
		`store = `,
	}
	for _, c := range cases {
		cfg = map[string]interface{}{}
		fn := writeConfig(t, "bad.hcl", c)
		if err := loadConfig(fn, map[string]struct{}{}); err == nil {
			t.Errorf("loadConfig(%q) did not fail", c)
		}
	}

	_, err := os.Stat(filepath.Join("testdata", "missing.hcl"))
	if !os.IsNotExist(err) {
		t.Fatalf("Stat(missing.hcl) got %v", err)
	}
	err = loadConfig(filepath.Join("testdata", "missing.hcl"), nil)
	if !os.IsNotExist(err) {
		t.Errorf("loadConfig(missing.hcl) got %v want not exist", err)
	}
}

func TestSetFlags(t *testing.T) {
	defer func() {
		flgs = flags.Default()
	}()

	err := setFlags([]string{"semi_naive=false", "LOG_QUERIES=true"})
	if err != nil {
		t.Fatalf("setFlags() failed with %s", err)
	}
	if flgs.GetFlag(flags.SemiNaive) || !flgs.GetFlag(flags.LogQueries) {
		t.Errorf("setFlags() got %v", flgs)
	}

	for _, arg := range []string{"semi_naive", "unknown=true", "semi_naive=maybe"} {
		if err := setFlags([]string{arg}); err == nil {
			t.Errorf("setFlags(%q) did not fail", arg)
		}
	}
}

func TestConfigValues(t *testing.T) {
	defer func() {
		flgs = flags.Default()
	}()
	flgs.SetFlag(flags.LogQueries, true)

	m := map[string]configValue{}
	for _, cv := range configValues() {
		m[cv.name] = cv
	}
	if cv, ok := m["store"]; !ok || cv.by != "default" || cv.val != "memory" {
		t.Errorf("configValues() store got %v", cv)
	}
	if cv, ok := m["log_queries"]; !ok || cv.by != "set" || cv.val != "true" {
		t.Errorf("configValues() log_queries got %v", cv)
	}
	if cv, ok := m["semi_naive"]; !ok || cv.by != "default" || cv.val != "true" {
		t.Errorf("configValues() semi_naive got %v", cv)
	}
	if _, ok := m["accounts"]; ok {
		t.Error("configValues() listed accounts")
	}
}
