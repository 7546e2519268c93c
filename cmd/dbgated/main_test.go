package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"dbgate/internal/env"
	"dbgate/internal/services/web"
)

func setCompleteEnv(t *testing.T) {
	t.Helper()
	for _, n := range env.All() {
		tag := n.Tag()
		t.Setenv(tag+"_DB_HOST", n.String()+".db.internal")
		t.Setenv(tag+"_DB_USER", "svc")
		t.Setenv(tag+"_DB_PASSWORD", "hunter2")
		t.Setenv(tag+"_DB_NAME", "yamibuy_im")
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	for _, k := range []string{"DEFAULT_ENVIRONMENT", "PORT", "APP_ENV", "QUERY_TIMEOUT", "QUERY_READ_ONLY", "RATELIMIT_RPS"} {
		t.Setenv(k, "")
	}

	st, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings err=%v", err)
	}
	if st.Default != env.GQC || st.Port != 3000 || st.Mode != web.Production {
		t.Fatalf("settings=%+v", st)
	}
	if st.QueryTimeout != 30*time.Second || st.ReadOnly || st.RateRPS != 50 {
		t.Fatalf("settings=%+v", st)
	}
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_ENVIRONMENT", "uat")
	t.Setenv("APP_ENV", "development")
	t.Setenv("QUERY_TIMEOUT", "0")
	t.Setenv("QUERY_READ_ONLY", "true")

	st, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings err=%v", err)
	}
	if st.Default != env.UAT || st.Mode != web.Development || st.QueryTimeout != 0 || !st.ReadOnly {
		t.Fatalf("settings=%+v", st)
	}
}

func TestLoadSettings_UnknownDefault(t *testing.T) {
	t.Setenv("DEFAULT_ENVIRONMENT", "staging")
	if _, err := loadSettings(); err == nil {
		t.Fatalf("expected error for unknown DEFAULT_ENVIRONMENT")
	}
}

func TestLoadConfigs_NamesEveryIncompleteEnvironment(t *testing.T) {
	setCompleteEnv(t)
	t.Setenv("DEV_DB_PASSWORD", "")
	t.Setenv("PRD_DB_HOST", "")

	_, err := loadConfigs()
	var inc *env.IncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("err=%v, want *env.IncompleteError", err)
	}
	if len(inc.Envs) != 2 || inc.Envs[0] != env.Dev || inc.Envs[1] != env.PRD {
		t.Fatalf("Envs=%v, want [dev prd]", inc.Envs)
	}
}

func TestEnvsCommand_RedactsPasswords(t *testing.T) {
	setCompleteEnv(t)
	t.Setenv("GQC_DB_PORT", "3307")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"envs"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("envs err=%v", err)
	}
	got := out.String()
	if strings.Contains(got, "hunter2") {
		t.Fatalf("password leaked:\n%s", got)
	}
	for _, want := range []string{"gqc.db.internal", "3307", "****", "skip-verify", "prd"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}
